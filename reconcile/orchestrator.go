// api/reconcile/orchestrator.go
package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	permsync_errors "github.com/permsync/permsync/api/errors"
	logger "github.com/permsync/permsync/api/logging"
	"github.com/permsync/permsync/api/model"
	"github.com/permsync/permsync/api/provider"
	"github.com/permsync/permsync/api/resolver"
	"github.com/permsync/permsync/api/store"
)

const defaultConcurrency = 8

// Orchestrator runs a full pass: every stored template against every account
// its scope matches, fanned out across a bounded worker pool. At most one
// pass runs at a time; a second Run while one is in flight fails fast with
// ErrReconcileInProgress.
type Orchestrator struct {
	store       store.TemplateStore
	source      provider.DirectorySource
	account     *AccountReconciler
	mode        Mode
	concurrency int
	now         func() time.Time

	mu      sync.Mutex
	running bool
}

// NewOrchestrator wires a pass runner. Concurrency <= 0 uses the default.
func NewOrchestrator(templates store.TemplateStore, source provider.DirectorySource, account *AccountReconciler, mode Mode, concurrency int) *Orchestrator {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Orchestrator{
		store:       templates,
		source:      source,
		account:     account,
		mode:        mode,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// Run executes one pass and returns per-template change details, sorted by
// resource id. The pass itself never fails on provider errors; those surface
// as exceptions inside the results. Run fails only when the template store
// or account directory source is unavailable, or a pass is already running.
func (o *Orchestrator) Run(ctx context.Context) ([]model.TemplateChangeDetails, error) {
	if !o.acquire() {
		return nil, permsync_errors.ErrReconcileInProgress
	}
	defer o.release()

	templates, err := o.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return o.runTemplates(ctx, templates)
}

// RunTemplate reconciles a single template against every account its scope
// matches. It shares the single-flight guard with Run, so a per-template
// plan cannot overlap a full pass.
func (o *Orchestrator) RunTemplate(ctx context.Context, name string) ([]model.TemplateChangeDetails, error) {
	if !o.acquire() {
		return nil, permsync_errors.ErrReconcileInProgress
	}
	defer o.release()

	t, err := o.store.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	return o.runTemplates(ctx, []*model.Template{t})
}

func (o *Orchestrator) acquire() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return false
	}
	o.running = true
	return true
}

func (o *Orchestrator) release() {
	o.mu.Lock()
	o.running = false
	o.mu.Unlock()
}

func (o *Orchestrator) runTemplates(ctx context.Context, templates []*model.Template) ([]model.TemplateChangeDetails, error) {
	directories, err := o.source.Directories(ctx)
	if err != nil {
		return nil, fmt.Errorf("load account directories: %w", err)
	}

	logger.Info("Starting reconciliation pass",
		zap.String("mode", string(o.mode)),
		zap.Int("templates", len(templates)),
		zap.Int("accounts", len(directories)))

	results := make([]model.TemplateChangeDetails, len(templates))
	accountResults := make([][]model.AccountChangeDetails, len(templates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)

	for i, t := range templates {
		i, t := i, t
		results[i] = model.TemplateChangeDetails{
			ResourceID:   t.ResourceID(),
			ResourceType: t.ResourceType(),
			TemplatePath: t.FilePath,
		}

		accounts := o.matchingAccounts(t, directories)
		accountResults[i] = make([]model.AccountChangeDetails, len(accounts))
		for j, d := range accounts {
			j, d := j, d
			g.Go(func() error {
				accountResults[i][j] = o.account.Reconcile(gctx, t, d)
				return nil
			})
		}
	}
	// Workers record outcomes rather than returning errors.
	_ = g.Wait()

	for i, t := range templates {
		o.partition(&results[i], accountResults[i])
		o.writeBack(ctx, t, &results[i])
	}

	sort.SliceStable(results, func(a, b int) bool {
		return results[a].ResourceID < results[b].ResourceID
	})
	return results, nil
}

// matchingAccounts filters the directory list down to the accounts the
// template's scope covers. A template deleted for an account still matches
// here so the delete gets reconciled.
func (o *Orchestrator) matchingAccounts(t *model.Template, directories []model.AccountDirectory) []model.AccountDirectory {
	var out []model.AccountDirectory
	for _, d := range directories {
		if resolver.TemplateAppliesTo(t, d) {
			out = append(out, d)
		}
	}
	return out
}

func (o *Orchestrator) partition(result *model.TemplateChangeDetails, accountResults []model.AccountChangeDetails) {
	for _, r := range accountResults {
		if r.HasChanges() {
			result.ProposedChanges = append(result.ProposedChanges, r)
		}
		if r.HasExceptions() {
			result.ExceptionsSeen = append(result.ExceptionsSeen, r)
		}
	}
}

// writeBack persists pass outcomes to the template store after an executed
// pass: fully deleted templates are removed, and templates whose expired
// sub-resources were purged are rewritten without them. Report and import
// passes never touch the store.
func (o *Orchestrator) writeBack(ctx context.Context, t *model.Template, result *model.TemplateChangeDetails) {
	if o.mode != ModeExecute || len(result.ExceptionsSeen) > 0 {
		return
	}

	now := o.now()
	work := t.Clone()
	work.Normalize()
	work.PurgeExpired(now)

	if work.IsDeleted() {
		if err := o.store.Delete(ctx, t.ResourceID()); err != nil {
			logger.Error("Failed to remove deleted template",
				zap.Error(err),
				zap.String("template", t.ResourceID()))
		}
		return
	}
	if bodyChanged(t, work) {
		if err := o.store.Save(ctx, work); err != nil {
			logger.Error("Failed to write back purged template",
				zap.Error(err),
				zap.String("template", t.ResourceID()))
		}
	}
}

func bodyChanged(before, after *model.Template) bool {
	a, errA := json.Marshal(before)
	b, errB := json.Marshal(after)
	if errA != nil || errB != nil {
		return false
	}
	return string(a) != string(b)
}
