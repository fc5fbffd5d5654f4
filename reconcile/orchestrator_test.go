// api/reconcile/orchestrator_test.go
package reconcile_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	permsync_errors "github.com/permsync/permsync/api/errors"
	"github.com/permsync/permsync/api/model"
	"github.com/permsync/permsync/api/provider"
	"github.com/permsync/permsync/api/reconcile"
	"github.com/permsync/permsync/api/store"
)

func newOrchestrator(t *testing.T, mem *provider.Memory, mode reconcile.Mode) (*reconcile.Orchestrator, *store.FileStore) {
	t.Helper()
	s, err := store.NewFileStore(t.TempDir())
	assert.NoError(t, err)
	return reconcile.NewOrchestrator(s, mem, newReconciler(mem, mode), mode, 4), s
}

func TestOrchestratorRun(t *testing.T) {
	ctx := context.Background()

	t.Run("PassCoversEveryMatchingAccount", func(t *testing.T) {
		mem := provider.NewMemory()
		mem.SetDirectories([]model.AccountDirectory{
			prodDirectory(),
			{
				OrgID:       "org-1",
				AccountID:   "222222222222",
				AccountName: "Staging",
				Users:       map[string]string{"alice": "u-alice"},
			},
		})

		orch, s := newOrchestrator(t, mem, reconcile.ModeReport)
		assert.NoError(t, s.Save(ctx, adminTemplate()))

		results, err := orch.Run(ctx)
		assert.NoError(t, err)
		assert.Len(t, results, 1)
		assert.Equal(t, "AdminAccess", results[0].ResourceID)
		// Both accounts propose the missing set.
		assert.Len(t, results[0].ProposedChanges, 2)
		assert.Empty(t, results[0].ExceptionsSeen)
	})

	t.Run("TemplateScopeFiltersAccounts", func(t *testing.T) {
		mem := provider.NewMemory()
		mem.SetDirectories([]model.AccountDirectory{
			prodDirectory(),
			{OrgID: "org-1", AccountID: "222222222222", AccountName: "Staging"},
		})

		orch, s := newOrchestrator(t, mem, reconcile.ModeReport)
		tmpl := adminTemplate()
		tmpl.AccessScope = model.AccessScope{IncludedAccounts: []string{"prod"}}
		assert.NoError(t, s.Save(ctx, tmpl))

		results, err := orch.Run(ctx)
		assert.NoError(t, err)
		assert.Len(t, results[0].ProposedChanges, 1)
		assert.Equal(t, "111111111111 (Prod)", results[0].ProposedChanges[0].Account)
	})

	t.Run("ResultsSortByResourceID", func(t *testing.T) {
		mem := provider.NewMemory()
		mem.SetDirectories([]model.AccountDirectory{prodDirectory()})

		orch, s := newOrchestrator(t, mem, reconcile.ModeReport)
		zulu := adminTemplate()
		zulu.Properties.Name = "ZuluAccess"
		assert.NoError(t, s.Save(ctx, zulu))
		assert.NoError(t, s.Save(ctx, adminTemplate()))

		results, err := orch.Run(ctx)
		assert.NoError(t, err)
		assert.Len(t, results, 2)
		assert.Equal(t, "AdminAccess", results[0].ResourceID)
		assert.Equal(t, "ZuluAccess", results[1].ResourceID)
	})

	t.Run("ExecutedDeleteRemovesTheTemplateFile", func(t *testing.T) {
		mem := provider.NewMemory()
		mem.SetDirectories([]model.AccountDirectory{prodDirectory()})
		mem.Seed(provider.PermissionSetDetails{Name: "AdminAccess"})

		orch, s := newOrchestrator(t, mem, reconcile.ModeExecute)
		tmpl := adminTemplate()
		tmpl.MarkDeleted()
		assert.NoError(t, s.Save(ctx, tmpl))

		_, err := orch.Run(ctx)
		assert.NoError(t, err)

		_, _, err = mem.GetPermissionSet(ctx, "AdminAccess")
		assert.Error(t, err)
		_, err = os.Stat(tmpl.FilePath)
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("ExecutedPassPurgesExpiredEntriesFromTheFile", func(t *testing.T) {
		mem := provider.NewMemory()
		mem.SetDirectories([]model.AccountDirectory{prodDirectory()})

		orch, s := newOrchestrator(t, mem, reconcile.ModeExecute)
		past := time.Now().Add(-time.Hour)
		tmpl := adminTemplate()
		tmpl.Properties.Tags = append(tmpl.Properties.Tags, model.Tag{
			ExpiryModel: model.ExpiryModel{ExpiresAt: &past},
			Key:         "temporary",
			Value:       "gone",
		})
		assert.NoError(t, s.Save(ctx, tmpl))

		_, err := orch.Run(ctx)
		assert.NoError(t, err)

		got, err := s.Get(ctx, "AdminAccess")
		assert.NoError(t, err)
		assert.Len(t, got.Properties.Tags, 1)
		assert.Equal(t, "team", got.Properties.Tags[0].Key)
	})

	t.Run("ReportPassNeverTouchesTheStore", func(t *testing.T) {
		mem := provider.NewMemory()
		mem.SetDirectories([]model.AccountDirectory{prodDirectory()})

		orch, s := newOrchestrator(t, mem, reconcile.ModeReport)
		past := time.Now().Add(-time.Hour)
		tmpl := adminTemplate()
		tmpl.Properties.Tags = append(tmpl.Properties.Tags, model.Tag{
			ExpiryModel: model.ExpiryModel{ExpiresAt: &past},
			Key:         "temporary",
			Value:       "gone",
		})
		assert.NoError(t, s.Save(ctx, tmpl))

		_, err := orch.Run(ctx)
		assert.NoError(t, err)

		got, err := s.Get(ctx, "AdminAccess")
		assert.NoError(t, err)
		assert.Len(t, got.Properties.Tags, 2)
	})

	t.Run("SecondConcurrentRunFailsFast", func(t *testing.T) {
		mem := provider.NewMemory()
		mem.SetDirectories([]model.AccountDirectory{prodDirectory()})

		_, s := newOrchestrator(t, mem, reconcile.ModeReport)
		assert.NoError(t, s.Save(ctx, adminTemplate()))

		release := make(chan struct{})
		blocking := &blockingSource{
			Memory:  mem,
			entered: make(chan struct{}),
			release: release,
		}
		blocked := reconcile.NewOrchestrator(
			newSlowStore(t), blocking, newReconciler(mem, reconcile.ModeReport), reconcile.ModeReport, 4)

		done := make(chan struct{})
		go func() {
			defer close(done)
			_, _ = blocked.Run(ctx)
		}()
		<-blocking.entered

		_, err := blocked.Run(ctx)
		assert.ErrorIs(t, err, permsync_errors.ErrReconcileInProgress)

		close(release)
		<-done
	})

	t.Run("SingleTemplateRunLeavesOthersAlone", func(t *testing.T) {
		mem := provider.NewMemory()
		mem.SetDirectories([]model.AccountDirectory{prodDirectory()})

		orch, s := newOrchestrator(t, mem, reconcile.ModeExecute)
		other := adminTemplate()
		other.Properties.Name = "ReadOnlyAccess"
		assert.NoError(t, s.Save(ctx, adminTemplate()))
		assert.NoError(t, s.Save(ctx, other))

		results, err := orch.RunTemplate(ctx, "AdminAccess")
		assert.NoError(t, err)
		assert.Len(t, results, 1)
		assert.Equal(t, "AdminAccess", results[0].ResourceID)

		_, _, err = mem.GetPermissionSet(ctx, "AdminAccess")
		assert.NoError(t, err)
		_, _, err = mem.GetPermissionSet(ctx, "ReadOnlyAccess")
		assert.Error(t, err)
	})

	t.Run("SingleTemplateRunUnknownName", func(t *testing.T) {
		mem := provider.NewMemory()
		orch, _ := newOrchestrator(t, mem, reconcile.ModeReport)

		_, err := orch.RunTemplate(ctx, "NoSuchTemplate")
		assert.ErrorIs(t, err, permsync_errors.ErrTemplateNotFound)
	})

	t.Run("EmptyStoreYieldsEmptyResults", func(t *testing.T) {
		mem := provider.NewMemory()
		orch, _ := newOrchestrator(t, mem, reconcile.ModeReport)

		results, err := orch.Run(ctx)
		assert.NoError(t, err)
		assert.Empty(t, results)
	})
}

// blockingSource parks the first Directories call until released so a pass
// can be held in flight.
type blockingSource struct {
	*provider.Memory
	entered chan struct{}
	release chan struct{}
	once    bool
}

func (b *blockingSource) Directories(ctx context.Context) ([]model.AccountDirectory, error) {
	if !b.once {
		b.once = true
		close(b.entered)
		<-b.release
	}
	return b.Memory.Directories(ctx)
}

func newSlowStore(t *testing.T) *store.FileStore {
	t.Helper()
	s, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return s
}
