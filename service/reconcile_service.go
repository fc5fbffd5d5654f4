// api/service/reconcile_service.go
package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/permsync/permsync/api/audit"
	"github.com/permsync/permsync/api/dao"
	"github.com/permsync/permsync/api/db"
	permsync_errors "github.com/permsync/permsync/api/errors"
	logger "github.com/permsync/permsync/api/logging"
	"github.com/permsync/permsync/api/model"
	"github.com/permsync/permsync/api/provider"
	"github.com/permsync/permsync/api/ratelimit"
	"github.com/permsync/permsync/api/reconcile"
	"github.com/permsync/permsync/api/resolver"
	"github.com/permsync/permsync/api/store"
	"github.com/permsync/permsync/api/util"
)

const passLockTTL = 30 * time.Minute

// IReconcileService defines the interface for reconciliation operations
type IReconcileService interface {
	RunPass(ctx context.Context, mode string, userID string) (*model.ReconcileRun, error)
	RunTemplate(ctx context.Context, name string, mode string, userID string) (*model.ReconcileRun, error)
}

// ReconcileService runs reconciliation passes and fans the results out to
// the audit trail, the access graph, and notifications.
type ReconcileService struct {
	client          provider.Client
	source          provider.DirectorySource
	templateStore   store.TemplateStore
	invoker         *ratelimit.Invoker
	assignmentDAO   *dao.AssignmentDAO
	auditService    audit.Service
	cacheService    *util.CacheService
	notificationSvc *util.NotificationService
	eventBus        *util.EventBus

	defaultMode reconcile.Mode
	retryOpts   ratelimit.Options
	concurrency int
	useLock     bool
}

var _ IReconcileService = &ReconcileService{}

// ReconcileOptions carries the pass tuning read from configuration.
type ReconcileOptions struct {
	DefaultMode reconcile.Mode
	MaxRetries  int
	RetryWait   time.Duration
	Concurrency int
	// UseLock guards passes with the shared Redis lock so multiple replicas
	// don't double-apply.
	UseLock bool
}

// NewReconcileService creates a new instance of ReconcileService. The
// assignmentDAO may be nil when the access graph is disabled.
func NewReconcileService(
	client provider.Client,
	source provider.DirectorySource,
	templateStore store.TemplateStore,
	invoker *ratelimit.Invoker,
	assignmentDAO *dao.AssignmentDAO,
	auditService audit.Service,
	cacheService *util.CacheService,
	notificationSvc *util.NotificationService,
	eventBus *util.EventBus,
	opts ReconcileOptions,
) *ReconcileService {
	return &ReconcileService{
		client:          client,
		source:          source,
		templateStore:   templateStore,
		invoker:         invoker,
		assignmentDAO:   assignmentDAO,
		auditService:    auditService,
		cacheService:    cacheService,
		notificationSvc: notificationSvc,
		eventBus:        eventBus,
		defaultMode:     opts.DefaultMode,
		retryOpts: ratelimit.Options{
			MaxAttempts: opts.MaxRetries,
			Wait:        opts.RetryWait,
		},
		concurrency: opts.Concurrency,
		useLock:     opts.UseLock,
	}
}

// RunPass executes one reconciliation pass. An empty mode uses the
// configured default.
func (s *ReconcileService) RunPass(ctx context.Context, mode string, userID string) (*model.ReconcileRun, error) {
	passMode, err := s.resolveMode(mode)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, passMode, userID, "")
}

// RunTemplate reconciles a single template. Plan and apply endpoints come
// through here with an explicit mode.
func (s *ReconcileService) RunTemplate(ctx context.Context, name string, mode string, userID string) (*model.ReconcileRun, error) {
	passMode, err := s.resolveMode(mode)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, passMode, userID, name)
}

func (s *ReconcileService) resolveMode(mode string) (reconcile.Mode, error) {
	if mode == "" {
		return s.defaultMode, nil
	}
	parsed, ok := reconcile.ParseMode(mode)
	if !ok {
		return "", permsync_errors.ErrInvalidTemplateData
	}
	return parsed, nil
}

// run executes a pass over every template, or over the one named template
// when templateName is set.
func (s *ReconcileService) run(ctx context.Context, passMode reconcile.Mode, userID, templateName string) (*model.ReconcileRun, error) {
	if s.useLock {
		locked, err := db.LockResource(ctx, "reconcile-pass", passLockTTL)
		if err != nil {
			return nil, err
		}
		if !locked {
			return nil, permsync_errors.ErrReconcileInProgress
		}
		defer func() {
			if err := db.UnlockResource(ctx, "reconcile-pass"); err != nil {
				logger.Error("Failed to release pass lock", zap.Error(err))
			}
		}()
	}

	runID := uuid.New().String()
	started := time.Now()
	logger.Info("Reconciliation pass requested",
		zap.String("runId", runID),
		zap.String("mode", string(passMode)),
		zap.String("template", templateName),
		zap.String("userId", userID))

	action, resourceID := "RECONCILE_PASS", "reconcile-pass"
	if templateName != "" {
		action, resourceID = "RECONCILE_TEMPLATE", templateName
	}

	account := reconcile.NewAccountReconciler(s.client, s.invoker, passMode, s.retryOpts)
	orchestrator := reconcile.NewOrchestrator(s.templateStore, s.directorySource(), account, passMode, s.concurrency)

	var results []model.TemplateChangeDetails
	var err error
	if templateName != "" {
		results, err = orchestrator.RunTemplate(ctx, templateName)
	} else {
		results, err = orchestrator.Run(ctx)
	}
	if err != nil {
		s.logAudit(ctx, runID, userID, string(passMode), action, resourceID, false, nil)
		return nil, err
	}

	run := &model.ReconcileRun{
		RunID:      runID,
		Mode:       string(passMode),
		StartedAt:  started,
		FinishedAt: time.Now(),
		Results:    results,
	}

	s.logAudit(ctx, runID, userID, string(passMode), action, resourceID, true, results)
	s.eventBus.Publish(ctx, "reconcile.completed", *run)

	if err := s.notificationSvc.NotifyReconcileOutcome(ctx, string(passMode), results); err != nil {
		logger.Warn("Failed to send reconcile notifications", zap.Error(err), zap.String("runId", runID))
	}

	if s.assignmentDAO != nil {
		s.projectGraph(ctx, runID, results)
	}

	logger.Info("Reconciliation pass finished",
		zap.String("runId", runID),
		zap.Duration("duration", run.FinishedAt.Sub(run.StartedAt)),
		zap.Int("templates", len(results)))
	return run, nil
}

// directorySource wraps the provider's directory listing with the shared
// cache so back-to-back report passes reuse one snapshot.
func (s *ReconcileService) directorySource() provider.DirectorySource {
	return directorySourceFunc(func(ctx context.Context) ([]model.AccountDirectory, error) {
		cached, err := s.cacheService.GetDirectories(ctx)
		if err != nil {
			logger.Warn("Directory cache read failed", zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}

		directories, err := s.source.Directories(ctx)
		if err != nil {
			return nil, err
		}
		if err := s.cacheService.SetDirectories(ctx, directories); err != nil {
			logger.Warn("Directory cache write failed", zap.Error(err))
		}
		return directories, nil
	})
}

type directorySourceFunc func(ctx context.Context) ([]model.AccountDirectory, error)

func (f directorySourceFunc) Directories(ctx context.Context) ([]model.AccountDirectory, error) {
	return f(ctx)
}

// projectGraph refreshes the access graph from the templates as stored after
// the pass. Templates the pass removed from the store get their projection
// deleted so the graph stops serving their grants.
func (s *ReconcileService) projectGraph(ctx context.Context, runID string, results []model.TemplateChangeDetails) {
	templates, err := s.templateStore.List(ctx)
	if err != nil {
		logger.Error("Failed to list templates for graph projection", zap.Error(err))
		return
	}
	directories, err := s.source.Directories(ctx)
	if err != nil {
		logger.Error("Failed to load directories for graph projection", zap.Error(err))
		return
	}

	stored := make(map[string]bool, len(templates))
	for _, t := range templates {
		stored[t.ResourceID()] = true
	}
	for _, res := range results {
		if stored[res.ResourceID] {
			continue
		}
		if err := s.assignmentDAO.DeleteProjection(ctx, res.ResourceID); err != nil {
			logger.Error("Failed to remove access graph projection",
				zap.Error(err),
				zap.String("template", res.ResourceID))
		}
	}

	now := time.Now()
	for _, t := range templates {
		var assignments []model.ResolvedAssignment
		for _, d := range directories {
			if !resolver.TemplateAppliesTo(t, d) {
				continue
			}
			assignments = append(assignments, resolver.Resolve(t.AccessRules, d, now)...)
		}
		if err := s.assignmentDAO.ProjectAssignments(ctx, runID, t.ResourceID(), assignments); err != nil {
			logger.Error("Failed to project template into access graph",
				zap.Error(err),
				zap.String("template", t.ResourceID()))
		}
	}
}

func (s *ReconcileService) logAudit(ctx context.Context, runID, userID, mode, action, resourceID string, success bool, results []model.TemplateChangeDetails) {
	var details json.RawMessage
	if results != nil {
		details, _ = json.Marshal(results)
	}
	auditLog := audit.ReconcileLog{
		Timestamp:     time.Now(),
		RunID:         runID,
		UserID:        userID,
		Action:        action,
		ResourceID:    resourceID,
		Mode:          mode,
		Success:       success,
		ChangeDetails: details,
	}
	if err := s.auditService.LogEvent(ctx, auditLog); err != nil {
		logger.Error("Failed to create audit log", zap.Error(err))
	}
}
