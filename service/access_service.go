// api/service/access_service.go
package service

import (
	"context"
	"time"

	"github.com/permsync/permsync/api/audit"
	"github.com/permsync/permsync/api/dao"
	permsync_errors "github.com/permsync/permsync/api/errors"
	"github.com/permsync/permsync/api/model"
)

// IAccessService defines the read-side queries over the projected access
// graph and the audit trail.
type IAccessService interface {
	GetAccountAccess(ctx context.Context, accountID string) ([]model.AccessEntry, error)
	QueryAuditLogs(ctx context.Context, from, to time.Time, account, resourceID string) ([]audit.ReconcileLog, error)
}

type AccessService struct {
	assignmentDAO *dao.AssignmentDAO
	auditService  audit.Service
}

var _ IAccessService = &AccessService{}

// NewAccessService creates a new instance of AccessService. The
// assignmentDAO may be nil when the access graph is disabled.
func NewAccessService(assignmentDAO *dao.AssignmentDAO, auditService audit.Service) *AccessService {
	return &AccessService{
		assignmentDAO: assignmentDAO,
		auditService:  auditService,
	}
}

func (s *AccessService) GetAccountAccess(ctx context.Context, accountID string) ([]model.AccessEntry, error) {
	if s.assignmentDAO == nil {
		return nil, permsync_errors.ErrGraphUnavailable
	}
	return s.assignmentDAO.GetAccountAccess(ctx, accountID)
}

func (s *AccessService) QueryAuditLogs(ctx context.Context, from, to time.Time, account, resourceID string) ([]audit.ReconcileLog, error) {
	return s.auditService.QueryLogs(ctx, from, to, account, resourceID)
}
