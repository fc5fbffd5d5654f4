// test/mock/audit.go
package mock

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/permsync/permsync/api/audit"
)

// MockAuditService is a mock implementation of audit.Service
type MockAuditService struct {
	mock.Mock
}

func (m *MockAuditService) LogEvent(ctx context.Context, log audit.ReconcileLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *MockAuditService) QueryLogs(ctx context.Context, from, to time.Time, account, resourceID string) ([]audit.ReconcileLog, error) {
	args := m.Called(ctx, from, to, account, resourceID)
	return args.Get(0).([]audit.ReconcileLog), args.Error(1)
}
