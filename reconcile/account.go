// api/reconcile/account.go

// Package reconcile drives templates toward the provider's live state. The
// account reconciler handles one template on one account; the orchestrator
// fans a pass out across every template and matching account.
package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/permsync/permsync/api/differ"
	permsync_errors "github.com/permsync/permsync/api/errors"
	logger "github.com/permsync/permsync/api/logging"
	"github.com/permsync/permsync/api/model"
	"github.com/permsync/permsync/api/provider"
	"github.com/permsync/permsync/api/ratelimit"
	"github.com/permsync/permsync/api/resolver"
)

// Mode selects what a pass is allowed to do. Report computes changes without
// touching the provider, execute applies them, import records the observed
// current state of an existing set and stops without proposing anything.
type Mode string

const (
	ModeReport  Mode = "report"
	ModeExecute Mode = "execute"
	ModeImport  Mode = "import"
)

// ParseMode validates a configured mode string.
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case ModeReport, ModeExecute, ModeImport:
		return Mode(s), true
	}
	return "", false
}

const (
	provisionAttempts = 20
	provisionInterval = time.Second
)

// retryableErrors are the provider failures worth retrying through the
// shared backoff slot.
var retryableErrors = []error{
	permsync_errors.ErrThrottled,
	permsync_errors.ErrTimeout,
}

// AccountReconciler reconciles one template against one account. Safe for
// concurrent use; the orchestrator shares one instance across its workers.
type AccountReconciler struct {
	client  provider.Client
	invoker *ratelimit.Invoker
	mode    Mode

	invokeOpts   ratelimit.Options
	now          func() time.Time
	pollInterval time.Duration
	sleep        func(context.Context, time.Duration) error
}

// NewAccountReconciler wires a reconciler over a provider client and the
// shared rate-limited invoker. The zero Options value uses the invoker's
// defaults; Retryable is always the provider throttle/timeout set.
func NewAccountReconciler(client provider.Client, invoker *ratelimit.Invoker, mode Mode, opts ratelimit.Options) *AccountReconciler {
	opts.Retryable = retryableErrors
	return &AccountReconciler{
		client:     client,
		invoker:    invoker,
		mode:       mode,
		invokeOpts: opts,
		now:          time.Now,
		pollInterval: provisionInterval,
		sleep: func(ctx context.Context, d time.Duration) error {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
				return nil
			}
		},
	}
}

func (r *AccountReconciler) executing() bool {
	return r.mode == ModeExecute
}

// Reconcile runs one template against one account and returns the account's
// change details. Provider failures never abort the pass; they are recorded
// as exceptions on the change that caused them.
func (r *AccountReconciler) Reconcile(ctx context.Context, t *model.Template, d model.AccountDirectory) model.AccountChangeDetails {
	now := r.now()
	work := t.Clone()
	work.Normalize()
	work.PurgeExpired(now)

	details := model.AccountChangeDetails{
		OrgID:        d.OrgID,
		Account:      d.Label(),
		ResourceID:   work.ResourceID(),
		ResourceType: work.ResourceType(),
	}

	desired := differ.DesiredState(work, d)
	deleted := work.DeletedForAccount(func(s model.AccessScope) bool {
		return resolver.AppliesTo(s, d)
	})

	handle, current, err := r.getCurrent(ctx, work.ResourceID())
	if err != nil {
		change := model.ProposedChange{
			Type:         model.ChangeUpdate,
			ResourceID:   work.ResourceID(),
			ResourceType: work.ResourceType(),
		}
		change.AddException(err)
		collect(&details, change)
		return details
	}

	if current != nil {
		details.CurrentValue = toMap(current)
		// Import only observes: record the live state and propose nothing.
		if r.mode == ModeImport {
			return details
		}
	}
	if !deleted {
		details.NewValue = toMap(&desired)
	}

	if deleted {
		r.reconcileDelete(ctx, &details, handle, current)
		return details
	}

	if current == nil {
		created, createdHandle := r.reconcileCreate(ctx, &details, desired)
		if created == nil {
			return details
		}
		handle, current = createdHandle, created
	} else {
		r.reconcileScalars(ctx, &details, desired, *current, handle)
	}

	desiredAssignments := resolver.Resolve(work.AccessRules, d, now)
	currentAssignments, err := r.listAssignments(ctx, handle)
	if err != nil {
		change := model.ProposedChange{
			Type:         model.ChangeUpdate,
			ResourceID:   work.ResourceID(),
			ResourceType: work.ResourceType(),
		}
		change.AddException(err)
		collect(&details, change)
		return details
	}

	r.reconcileSubResources(ctx, &details, desired, *current, handle, desiredAssignments, currentAssignments)

	if r.executing() && details.HasChanges() {
		r.provision(ctx, &details, handle)
	}
	return details
}

// getCurrent fetches the live permission set, mapping "not found" to a nil
// result.
func (r *AccountReconciler) getCurrent(ctx context.Context, name string) (string, *provider.PermissionSetDetails, error) {
	var handle string
	var current *provider.PermissionSetDetails
	err := r.invoke(ctx, "GetPermissionSet", func(ctx context.Context) error {
		var err error
		handle, current, err = r.client.GetPermissionSet(ctx, name)
		return err
	})
	if err != nil {
		if isNotFound(err) {
			return "", nil, nil
		}
		return "", nil, err
	}
	return handle, current, nil
}

func (r *AccountReconciler) listAssignments(ctx context.Context, handle string) ([]model.ResolvedAssignment, error) {
	if handle == "" {
		return nil, nil
	}
	var assignments []model.ResolvedAssignment
	err := r.invoke(ctx, "ListAssignments", func(ctx context.Context) error {
		var err error
		assignments, err = r.client.ListAssignments(ctx, handle)
		return err
	})
	return assignments, err
}

// reconcileDelete handles the deletion branch: one DELETE change for the
// whole resource, executed with the current context so the provider adapter
// can clean up dependent assignments first.
func (r *AccountReconciler) reconcileDelete(ctx context.Context, details *model.AccountChangeDetails, handle string, current *provider.PermissionSetDetails) {
	changes := differ.Diff(nil, current, true)
	if len(changes) == 0 {
		return
	}
	change := changes[0]
	if r.executing() {
		assignments, err := r.listAssignments(ctx, handle)
		if err == nil {
			err = r.invoke(ctx, "DeletePermissionSet", func(ctx context.Context) error {
				return r.client.DeletePermissionSet(ctx, handle, current, assignments)
			})
		}
		change.AddException(err)
	}
	collect(details, change)
}

// reconcileCreate handles the creation branch. In report mode it records the
// single CREATE and stops; when executing it creates the set and returns the
// resulting state so sub-resource reconciliation continues against it.
func (r *AccountReconciler) reconcileCreate(ctx context.Context, details *model.AccountChangeDetails, desired provider.PermissionSetDetails) (*provider.PermissionSetDetails, string) {
	change := model.ProposedChange{
		Type:         model.ChangeCreate,
		ResourceID:   desired.Name,
		ResourceType: model.ResourceTypePermissionSet,
	}
	if !r.executing() {
		collect(details, change)
		return nil, ""
	}

	var handle string
	err := r.invoke(ctx, "CreatePermissionSet", func(ctx context.Context) error {
		var err error
		handle, err = r.client.CreatePermissionSet(ctx, provider.CreateInput{
			Name:            desired.Name,
			Description:     desired.Description,
			SessionDuration: desired.SessionDuration,
			RelayState:      desired.RelayState,
			Tags:            desired.Tags,
		})
		return err
	})
	change.AddException(err)
	collect(details, change)
	if err != nil {
		return nil, ""
	}
	return &provider.PermissionSetDetails{
		Name:            desired.Name,
		Description:     desired.Description,
		SessionDuration: desired.SessionDuration,
		RelayState:      desired.RelayState,
		Tags:            desired.Tags,
	}, handle
}

// reconcileScalars diffs the tags and then the mutable scalar fields, in
// that order. Changed scalar fields are batched into a single update call.
func (r *AccountReconciler) reconcileScalars(ctx context.Context, details *model.AccountChangeDetails, desired, current provider.PermissionSetDetails, handle string) {
	toSet, toRemove, tagChanges := differ.DiffTags(desired.Tags, current.Tags, desired.Name)
	if r.executing() {
		var setErr, removeErr error
		if len(toSet) > 0 {
			setErr = r.invoke(ctx, "TagPermissionSet", func(ctx context.Context) error {
				return r.client.TagPermissionSet(ctx, handle, toSet)
			})
		}
		if len(toRemove) > 0 {
			removeErr = r.invoke(ctx, "UntagPermissionSet", func(ctx context.Context) error {
				return r.client.UntagPermissionSet(ctx, handle, toRemove)
			})
		}
		for i := range tagChanges {
			if tagChanges[i].Type == model.ChangeDelete {
				tagChanges[i].AddException(removeErr)
			} else {
				tagChanges[i].AddException(setErr)
			}
		}
	}
	collect(details, tagChanges...)

	in, fieldChanges := differ.DiffUpdatableFields(desired, current)
	if len(fieldChanges) > 0 && r.executing() {
		err := r.invoke(ctx, "UpdatePermissionSet", func(ctx context.Context) error {
			return r.client.UpdatePermissionSet(ctx, handle, in)
		})
		for i := range fieldChanges {
			fieldChanges[i].AddException(err)
		}
	}
	collect(details, fieldChanges...)
}

// reconcileSubResources applies the four attached-resource groups
// concurrently, then reconciles the assignment set strictly after every
// group has finished. Each group is independent on the provider side, so
// failures stay isolated to their own changes; the assignment calls are
// kept apart because they count against their own provider request limit.
func (r *AccountReconciler) reconcileSubResources(
	ctx context.Context,
	details *model.AccountChangeDetails,
	desired, current provider.PermissionSetDetails,
	handle string,
	desiredAssignments, currentAssignments []model.ResolvedAssignment,
) {
	var mu sync.Mutex
	add := func(changes ...model.ProposedChange) {
		mu.Lock()
		defer mu.Unlock()
		collect(details, changes...)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		attach, detach := differ.DiffStringSet(desired.ManagedPolicyARNs, current.ManagedPolicyARNs)
		changes := differ.ManagedPolicyChanges(attach, detach)
		if r.executing() {
			i := 0
			for _, arn := range attach {
				arn := arn
				changes[i].AddException(r.invoke(gctx, "AttachManagedPolicy", func(ctx context.Context) error {
					return r.client.AttachManagedPolicy(ctx, handle, arn)
				}))
				i++
			}
			for _, arn := range detach {
				arn := arn
				changes[i].AddException(r.invoke(gctx, "DetachManagedPolicy", func(ctx context.Context) error {
					return r.client.DetachManagedPolicy(ctx, handle, arn)
				}))
				i++
			}
		}
		add(changes...)
		return nil
	})

	g.Go(func() error {
		attach, detach := differ.DiffPolicyReferences(desired.CustomerManagedPolicyReferences, current.CustomerManagedPolicyReferences)
		changes := differ.PolicyReferenceChanges(attach, detach)
		if r.executing() {
			i := 0
			for _, ref := range attach {
				ref := ref
				changes[i].AddException(r.invoke(gctx, "AttachCustomerManagedPolicy", func(ctx context.Context) error {
					return r.client.AttachCustomerManagedPolicy(ctx, handle, ref)
				}))
				i++
			}
			for _, ref := range detach {
				ref := ref
				changes[i].AddException(r.invoke(gctx, "DetachCustomerManagedPolicy", func(ctx context.Context) error {
					return r.client.DetachCustomerManagedPolicy(ctx, handle, ref)
				}))
				i++
			}
		}
		add(changes...)
		return nil
	})

	g.Go(func() error {
		change := differ.InlinePolicyChange(desired.InlinePolicy, current.InlinePolicy, desired.Name)
		if change == nil {
			return nil
		}
		if r.executing() {
			var err error
			if change.Type == model.ChangeDelete {
				err = r.invoke(gctx, "DeleteInlinePolicy", func(ctx context.Context) error {
					return r.client.DeleteInlinePolicy(ctx, handle)
				})
			} else {
				err = r.invoke(gctx, "PutInlinePolicy", func(ctx context.Context) error {
					return r.client.PutInlinePolicy(ctx, handle, desired.InlinePolicy)
				})
			}
			change.AddException(err)
		}
		add(*change)
		return nil
	})

	g.Go(func() error {
		change := differ.BoundaryChange(desired.PermissionsBoundary, current.PermissionsBoundary, desired.Name)
		if change == nil {
			return nil
		}
		if r.executing() {
			var err error
			if change.Type == model.ChangeDelete {
				err = r.invoke(gctx, "DeletePermissionsBoundary", func(ctx context.Context) error {
					return r.client.DeletePermissionsBoundary(ctx, handle)
				})
			} else {
				err = r.invoke(gctx, "PutPermissionsBoundary", func(ctx context.Context) error {
					return r.client.PutPermissionsBoundary(ctx, handle, *desired.PermissionsBoundary)
				})
			}
			change.AddException(err)
		}
		add(*change)
		return nil
	})

	// Workers only record outcomes, they never return errors.
	_ = g.Wait()

	create, remove := differ.DiffAssignments(desiredAssignments, currentAssignments)
	changes := differ.AssignmentChanges(create, remove)
	if r.executing() {
		i := 0
		for _, a := range create {
			a := a
			changes[i].AddException(r.invoke(ctx, "CreateAssignment", func(ctx context.Context) error {
				return r.client.CreateAssignment(ctx, handle, a)
			}))
			i++
		}
		for _, a := range remove {
			a := a
			changes[i].AddException(r.invoke(ctx, "DeleteAssignment", func(ctx context.Context) error {
				return r.client.DeleteAssignment(ctx, handle, a)
			}))
			i++
		}
	}
	collect(details, changes...)
}

// provision kicks off provider-side provisioning and polls until it leaves
// the in-progress state. Exhausting the poll budget is not an error; the
// next pass observes the final state.
func (r *AccountReconciler) provision(ctx context.Context, details *model.AccountChangeDetails, handle string) {
	var requestID string
	err := r.invoke(ctx, "Provision", func(ctx context.Context) error {
		var err error
		requestID, err = r.client.Provision(ctx, handle)
		return err
	})
	if err != nil {
		change := model.ProposedChange{
			Type:         model.ChangeUpdate,
			ResourceID:   details.ResourceID,
			ResourceType: details.ResourceType,
			Attribute:    "Provision",
		}
		change.AddException(err)
		collect(details, change)
		return
	}

	for attempt := 0; attempt < provisionAttempts; attempt++ {
		var status provider.ProvisionStatus
		err := r.invoke(ctx, "ProvisionStatus", func(ctx context.Context) error {
			var err error
			status, err = r.client.ProvisionStatus(ctx, requestID)
			return err
		})
		if err != nil {
			logger.Warn("Provision status check failed",
				zap.Error(err),
				zap.String("requestId", requestID))
			return
		}
		if status != provider.ProvisionInProgress {
			if status == provider.ProvisionFailed {
				change := model.ProposedChange{
					Type:         model.ChangeUpdate,
					ResourceID:   details.ResourceID,
					ResourceType: details.ResourceType,
					Attribute:    "Provision",
				}
				change.AddException(permsync_errors.ErrProviderOperation)
				collect(details, change)
			}
			return
		}
		if err := r.sleep(ctx, r.pollInterval); err != nil {
			return
		}
	}
}

func (r *AccountReconciler) invoke(ctx context.Context, identifier string, op func(context.Context) error) error {
	opts := r.invokeOpts
	opts.Identifier = identifier
	return r.invoker.Invoke(ctx, op, opts)
}

func collect(details *model.AccountChangeDetails, changes ...model.ProposedChange) {
	for _, c := range changes {
		details.ProposedChanges = append(details.ProposedChanges, c)
		if c.Failed() {
			details.ExceptionsSeen = append(details.ExceptionsSeen, c)
		}
	}
}

func isNotFound(err error) bool {
	return err != nil && errors.Is(err, permsync_errors.ErrPermissionSetNotFound)
}

func toMap(d *provider.PermissionSetDetails) map[string]interface{} {
	data, err := json.Marshal(d)
	if err != nil {
		return nil
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}
