// api/differ/differ_test.go
package differ_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/permsync/permsync/api/differ"
	"github.com/permsync/permsync/api/model"
	"github.com/permsync/permsync/api/provider"
)

func TestDiff(t *testing.T) {
	t.Run("MissingCurrentYieldsSingleCreate", func(t *testing.T) {
		desired := &provider.PermissionSetDetails{Name: "Admin"}
		changes := differ.Diff(desired, nil, false)

		assert.Len(t, changes, 1)
		assert.Equal(t, model.ChangeCreate, changes[0].Type)
		assert.Equal(t, "Admin", changes[0].ResourceID)
	})

	t.Run("DeletedOverExistingYieldsSingleDelete", func(t *testing.T) {
		current := &provider.PermissionSetDetails{
			Name:            "Admin",
			Description:     "stale",
			SessionDuration: "PT1H",
		}
		changes := differ.Diff(nil, current, true)

		assert.Len(t, changes, 1)
		assert.Equal(t, model.ChangeDelete, changes[0].Type)
	})

	t.Run("DeletedAndAbsentYieldsNothing", func(t *testing.T) {
		assert.Empty(t, differ.Diff(nil, nil, true))
	})

	t.Run("IdenticalStatesYieldNothing", func(t *testing.T) {
		details := provider.PermissionSetDetails{
			Name:            "Admin",
			Description:     "admin access",
			SessionDuration: "PT1H",
		}
		assert.Empty(t, differ.Diff(&details, &details, false))
	})
}

func TestDiffUpdatableFields(t *testing.T) {
	t.Run("SingleChangedField", func(t *testing.T) {
		desired := provider.PermissionSetDetails{Name: "Admin", SessionDuration: "PT2H"}
		current := provider.PermissionSetDetails{Name: "Admin", SessionDuration: "PT1H"}

		in, changes := differ.DiffUpdatableFields(desired, current)

		assert.Len(t, changes, 1)
		assert.Equal(t, model.ChangeUpdate, changes[0].Type)
		assert.Equal(t, "SessionDuration", changes[0].Attribute)
		assert.Equal(t, "PT1H", changes[0].OldValue)
		assert.Equal(t, "PT2H", changes[0].NewValue)

		assert.Nil(t, in.Description)
		if assert.NotNil(t, in.SessionDuration) {
			assert.Equal(t, "PT2H", *in.SessionDuration)
		}
	})

	t.Run("MultipleChangesBatchIntoOneInput", func(t *testing.T) {
		desired := provider.PermissionSetDetails{
			Name:            "Admin",
			Description:     "new text",
			SessionDuration: "PT4H",
			RelayState:      "https://console.example.com",
		}
		current := provider.PermissionSetDetails{
			Name:            "Admin",
			Description:     "old text",
			SessionDuration: "PT1H",
		}

		in, changes := differ.DiffUpdatableFields(desired, current)

		assert.Len(t, changes, 3)
		assert.NotNil(t, in.Description)
		assert.NotNil(t, in.SessionDuration)
		assert.NotNil(t, in.RelayState)
	})

	t.Run("EmptyDesiredValueIsNotADrift", func(t *testing.T) {
		desired := provider.PermissionSetDetails{Name: "Admin"}
		current := provider.PermissionSetDetails{Name: "Admin", Description: "kept"}

		_, changes := differ.DiffUpdatableFields(desired, current)
		assert.Empty(t, changes)
	})
}

func TestDiffTags(t *testing.T) {
	t.Run("SetNewAndChangedRemoveStale", func(t *testing.T) {
		desired := []provider.KV{
			{Key: "team", Value: "platform"},
			{Key: "env", Value: "prod"},
		}
		current := []provider.KV{
			{Key: "team", Value: "infra"},
			{Key: "owner", Value: "nobody"},
		}

		toSet, toRemove, changes := differ.DiffTags(desired, current, "Admin")

		assert.ElementsMatch(t, desired, toSet)
		assert.Equal(t, []string{"owner"}, toRemove)
		assert.Len(t, changes, 3)
	})

	t.Run("NewTagIsCreateChangedTagIsUpdate", func(t *testing.T) {
		desired := []provider.KV{
			{Key: "team", Value: "platform"},
			{Key: "env", Value: "prod"},
		}
		current := []provider.KV{{Key: "team", Value: "infra"}}

		_, _, changes := differ.DiffTags(desired, current, "Admin")

		byKey := map[string]model.ProposedChange{}
		for _, c := range changes {
			for k := range c.NewValue.(map[string]string) {
				byKey[k] = c
			}
		}
		assert.Equal(t, model.ChangeUpdate, byKey["team"].Type)
		assert.Equal(t, map[string]string{"team": "infra"}, byKey["team"].OldValue)
		assert.Equal(t, model.ChangeCreate, byKey["env"].Type)
		assert.Nil(t, byKey["env"].OldValue)
	})

	t.Run("Agreement", func(t *testing.T) {
		tags := []provider.KV{{Key: "team", Value: "platform"}}
		toSet, toRemove, changes := differ.DiffTags(tags, tags, "Admin")
		assert.Empty(t, toSet)
		assert.Empty(t, toRemove)
		assert.Empty(t, changes)
	})
}

func TestDiffStringSet(t *testing.T) {
	attach, detach := differ.DiffStringSet(
		[]string{"arn:a", "arn:b"},
		[]string{"arn:b", "arn:c"},
	)
	assert.Equal(t, []string{"arn:a"}, attach)
	assert.Equal(t, []string{"arn:c"}, detach)
}

func TestDiffPolicyReferences(t *testing.T) {
	keep := provider.PolicyReference{Path: "/", Name: "Keep"}
	add := provider.PolicyReference{Path: "/team/", Name: "Add"}
	drop := provider.PolicyReference{Path: "/", Name: "Drop"}

	attach, detach := differ.DiffPolicyReferences(
		[]provider.PolicyReference{keep, add},
		[]provider.PolicyReference{keep, drop},
	)
	assert.Equal(t, []provider.PolicyReference{add}, attach)
	assert.Equal(t, []provider.PolicyReference{drop}, detach)
}

func TestDiffAssignments(t *testing.T) {
	alice := model.ResolvedAssignment{
		AccountID:     "111111111111",
		PrincipalType: model.PrincipalUser,
		PrincipalID:   "u-alice",
	}
	bob := model.ResolvedAssignment{
		AccountID:     "111111111111",
		PrincipalType: model.PrincipalUser,
		PrincipalID:   "u-bob",
	}
	eng := model.ResolvedAssignment{
		AccountID:     "111111111111",
		PrincipalType: model.PrincipalGroup,
		PrincipalID:   "g-eng",
	}

	t.Run("SetDifferenceByIdentity", func(t *testing.T) {
		create, remove := differ.DiffAssignments(
			[]model.ResolvedAssignment{alice, eng},
			[]model.ResolvedAssignment{alice, bob},
		)
		assert.Equal(t, []model.ResolvedAssignment{eng}, create)
		assert.Equal(t, []model.ResolvedAssignment{bob}, remove)
	})

	t.Run("DisplayFieldsDoNotAffectIdentity", func(t *testing.T) {
		renamed := alice
		renamed.PrincipalName = "Alice L."
		renamed.AccountLabel = "111111111111 (Prod)"

		create, remove := differ.DiffAssignments(
			[]model.ResolvedAssignment{renamed},
			[]model.ResolvedAssignment{alice},
		)
		assert.Empty(t, create)
		assert.Empty(t, remove)
	})
}

func TestInlinePolicyChange(t *testing.T) {
	assert.Nil(t, differ.InlinePolicyChange("doc", "doc", "Admin"))

	created := differ.InlinePolicyChange("doc", "", "Admin")
	assert.Equal(t, model.ChangeCreate, created.Type)
	assert.Nil(t, created.OldValue)

	updated := differ.InlinePolicyChange("new", "old", "Admin")
	assert.Equal(t, model.ChangeUpdate, updated.Type)
	assert.Equal(t, "old", updated.OldValue)

	deleted := differ.InlinePolicyChange("", "old", "Admin")
	assert.Equal(t, model.ChangeDelete, deleted.Type)
}

func TestBoundaryChange(t *testing.T) {
	arn := &provider.Boundary{PolicyARN: "arn:aws:iam::aws:policy/Boundary"}

	assert.Nil(t, differ.BoundaryChange(arn, arn, "Admin"))
	assert.Equal(t, model.ChangeCreate, differ.BoundaryChange(arn, nil, "Admin").Type)
	assert.Equal(t, model.ChangeDelete, differ.BoundaryChange(nil, arn, "Admin").Type)

	other := &provider.Boundary{
		CustomerManagedPolicyReference: &provider.PolicyReference{Path: "/", Name: "B"},
	}
	assert.Equal(t, model.ChangeUpdate, differ.BoundaryChange(other, arn, "Admin").Type)
}
