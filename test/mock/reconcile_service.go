// test/mock/reconcile_service.go
package mock

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/permsync/permsync/api/audit"
	"github.com/permsync/permsync/api/model"
)

// MockReconcileService is a mock implementation of service.IReconcileService
type MockReconcileService struct {
	mock.Mock
}

func (m *MockReconcileService) RunPass(ctx context.Context, mode string, userID string) (*model.ReconcileRun, error) {
	args := m.Called(ctx, mode, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ReconcileRun), args.Error(1)
}

func (m *MockReconcileService) RunTemplate(ctx context.Context, name string, mode string, userID string) (*model.ReconcileRun, error) {
	args := m.Called(ctx, name, mode, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ReconcileRun), args.Error(1)
}

// MockAccessService is a mock implementation of service.IAccessService
type MockAccessService struct {
	mock.Mock
}

func (m *MockAccessService) GetAccountAccess(ctx context.Context, accountID string) ([]model.AccessEntry, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.AccessEntry), args.Error(1)
}

func (m *MockAccessService) QueryAuditLogs(ctx context.Context, from, to time.Time, account, resourceID string) ([]audit.ReconcileLog, error) {
	args := m.Called(ctx, from, to, account, resourceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]audit.ReconcileLog), args.Error(1)
}
