// api/service/template_service.go
package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/permsync/permsync/api/audit"
	"github.com/permsync/permsync/api/dao"
	permsync_errors "github.com/permsync/permsync/api/errors"
	logger "github.com/permsync/permsync/api/logging"
	"github.com/permsync/permsync/api/model"
	"github.com/permsync/permsync/api/store"
	"github.com/permsync/permsync/api/util"
)

// ITemplateService defines the interface for template operations
type ITemplateService interface {
	CreateTemplate(ctx context.Context, template model.Template, userID string) (*model.Template, error)
	UpdateTemplate(ctx context.Context, template model.Template, userID string) (*model.Template, error)
	DeleteTemplate(ctx context.Context, name string, userID string) error
	GetTemplate(ctx context.Context, name string) (*model.Template, error)
	ListTemplates(ctx context.Context) ([]*model.Template, error)
}

// TemplateService handles business logic for template operations
type TemplateService struct {
	templateStore   store.TemplateStore
	auditService    audit.Service
	validationUtil  *util.ValidationUtil
	cacheService    *util.CacheService
	notificationSvc *util.NotificationService
	eventBus        *util.EventBus
	assignmentDAO   *dao.AssignmentDAO
}

var _ ITemplateService = &TemplateService{}

// NewTemplateService creates a new instance of TemplateService. The
// assignmentDAO may be nil when the access graph is disabled.
func NewTemplateService(
	templateStore store.TemplateStore,
	auditService audit.Service,
	validationUtil *util.ValidationUtil,
	cacheService *util.CacheService,
	notificationSvc *util.NotificationService,
	eventBus *util.EventBus,
	assignmentDAO *dao.AssignmentDAO,
) *TemplateService {
	service := &TemplateService{
		templateStore:   templateStore,
		auditService:    auditService,
		validationUtil:  validationUtil,
		cacheService:    cacheService,
		notificationSvc: notificationSvc,
		eventBus:        eventBus,
		assignmentDAO:   assignmentDAO,
	}

	// Set up event subscriptions
	eventBus.Subscribe("template.created", service.handleTemplateCreated)
	eventBus.Subscribe("template.updated", service.handleTemplateUpdated)
	eventBus.Subscribe("template.deleted", service.handleTemplateDeleted)

	return service
}

func (s *TemplateService) handleTemplateCreated(ctx context.Context, event util.Event) error {
	template := event.Payload.(model.Template)
	logger.Info("Template created event received", zap.String("template", template.ResourceID()))

	if err := s.notificationSvc.NotifyTemplateChange(ctx, "created", template); err != nil {
		logger.Warn("Failed to send template creation notification", zap.Error(err), zap.String("template", template.ResourceID()))
	}
	return nil
}

func (s *TemplateService) handleTemplateUpdated(ctx context.Context, event util.Event) error {
	template := event.Payload.(model.Template)
	logger.Info("Template updated event received", zap.String("template", template.ResourceID()))

	// A stale cached copy would feed the next pass outdated desired state
	if err := s.cacheService.DeleteTemplate(ctx, template.ResourceID()); err != nil {
		logger.Error("Failed to invalidate template cache", zap.Error(err), zap.String("template", template.ResourceID()))
	}
	if err := s.notificationSvc.NotifyTemplateChange(ctx, "updated", template); err != nil {
		logger.Warn("Failed to send template update notification", zap.Error(err), zap.String("template", template.ResourceID()))
	}
	return nil
}

func (s *TemplateService) handleTemplateDeleted(ctx context.Context, event util.Event) error {
	name := event.Payload.(string)
	logger.Info("Template deleted event received", zap.String("template", name))

	if err := s.cacheService.DeleteTemplate(ctx, name); err != nil {
		logger.Error("Failed to invalidate template cache", zap.Error(err), zap.String("template", name))
	}
	if err := s.notificationSvc.NotifyTemplateChange(ctx, "deleted", model.Template{Properties: model.Properties{Name: name}}); err != nil {
		logger.Warn("Failed to send template deletion notification", zap.Error(err), zap.String("template", name))
	}
	return nil
}

// CreateTemplate validates and stores a new template
func (s *TemplateService) CreateTemplate(ctx context.Context, template model.Template, userID string) (*model.Template, error) {
	if err := s.validationUtil.ValidateTemplate(template); err != nil {
		logger.Warn("Invalid template data", zap.Error(err))
		return nil, permsync_errors.ErrInvalidTemplateData
	}

	if _, err := s.templateStore.Get(ctx, template.ResourceID()); err == nil {
		return nil, permsync_errors.ErrTemplateExists
	} else if !errors.Is(err, permsync_errors.ErrTemplateNotFound) {
		return nil, err
	}

	template.Normalize()
	if err := s.templateStore.Save(ctx, &template); err != nil {
		logger.Error("Failed to save template", zap.Error(err), zap.String("template", template.ResourceID()))
		return nil, err
	}

	s.logAudit(ctx, "CREATE_TEMPLATE", template.ResourceID(), userID, &template)
	s.eventBus.Publish(ctx, "template.created", template)

	logger.Info("Template created successfully", zap.String("template", template.ResourceID()))
	return &template, nil
}

// UpdateTemplate validates and replaces an existing template
func (s *TemplateService) UpdateTemplate(ctx context.Context, template model.Template, userID string) (*model.Template, error) {
	if err := s.validationUtil.ValidateTemplate(template); err != nil {
		logger.Warn("Invalid template data", zap.Error(err))
		return nil, permsync_errors.ErrInvalidTemplateData
	}

	existing, err := s.templateStore.Get(ctx, template.ResourceID())
	if err != nil {
		return nil, err
	}
	template.FilePath = existing.FilePath

	template.Normalize()
	if err := s.templateStore.Save(ctx, &template); err != nil {
		logger.Error("Failed to save template", zap.Error(err), zap.String("template", template.ResourceID()))
		return nil, err
	}

	s.logAudit(ctx, "UPDATE_TEMPLATE", template.ResourceID(), userID, &template)
	s.eventBus.Publish(ctx, "template.updated", template)

	logger.Info("Template updated successfully", zap.String("template", template.ResourceID()))
	return &template, nil
}

// DeleteTemplate removes a template from the store. The permission sets it
// managed are removed from the provider by the next executed pass of a
// template marked deleted, not by this endpoint.
func (s *TemplateService) DeleteTemplate(ctx context.Context, name string, userID string) error {
	if err := s.templateStore.Delete(ctx, name); err != nil {
		return err
	}

	// The graph would keep serving the deleted set's grants otherwise.
	if s.assignmentDAO != nil {
		if err := s.assignmentDAO.DeleteProjection(ctx, name); err != nil {
			logger.Error("Failed to remove access graph projection", zap.Error(err), zap.String("template", name))
		}
	}

	s.logAudit(ctx, "DELETE_TEMPLATE", name, userID, nil)
	s.eventBus.Publish(ctx, "template.deleted", name)

	logger.Info("Template deleted successfully", zap.String("template", name))
	return nil
}

// GetTemplate fetches one template, preferring the cache
func (s *TemplateService) GetTemplate(ctx context.Context, name string) (*model.Template, error) {
	cached, err := s.cacheService.GetTemplate(ctx, name)
	if err != nil {
		logger.Warn("Template cache read failed", zap.Error(err), zap.String("template", name))
	} else if cached != nil {
		return cached, nil
	}

	template, err := s.templateStore.Get(ctx, name)
	if err != nil {
		return nil, err
	}

	if err := s.cacheService.SetTemplate(ctx, *template); err != nil {
		logger.Warn("Template cache write failed", zap.Error(err), zap.String("template", name))
	}
	return template, nil
}

// ListTemplates returns every stored template
func (s *TemplateService) ListTemplates(ctx context.Context) ([]*model.Template, error) {
	return s.templateStore.List(ctx)
}

func (s *TemplateService) logAudit(ctx context.Context, action, resourceID, userID string, template *model.Template) {
	var details json.RawMessage
	if template != nil {
		details, _ = json.Marshal(template)
	}
	auditLog := audit.ReconcileLog{
		Timestamp:     time.Now(),
		UserID:        userID,
		Action:        action,
		ResourceID:    resourceID,
		Success:       true,
		ChangeDetails: details,
	}
	if err := s.auditService.LogEvent(ctx, auditLog); err != nil {
		logger.Error("Failed to create audit log", zap.Error(err))
	}
}
