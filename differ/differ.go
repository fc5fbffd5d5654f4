// api/differ/differ.go

// Package differ compares a desired permission set projection against the
// current provider state and yields the ordered list of proposed mutations,
// each carrying the old and new value so the report and audit trail stay
// precise per attribute.
package differ

import (
	"github.com/permsync/permsync/api/model"
	"github.com/permsync/permsync/api/provider"
)

const (
	resourceTypeManagedPolicy  = "iam:managed_policy"
	resourceTypeInlinePolicy   = "sso:inline_policy"
	resourceTypeBoundary       = "sso:permission_boundary"
	resourceTypeAssignment     = "sso:account_assignment"
	attributeTags              = "Tags"
	attributeInlinePolicy      = "InlinePolicy"
	attributeBoundary          = "PermissionsBoundary"
)

type scalarField struct {
	name string
	get  func(provider.PermissionSetDetails) string
	set  func(*provider.UpdateInput, string)
}

// updatableFields is the exhaustive set of mutable scalar attributes. Adding
// a field to PermissionSetDetails means adding it here; the compiler checks
// the accessors against the struct.
var updatableFields = []scalarField{
	{
		name: "Description",
		get:  func(d provider.PermissionSetDetails) string { return d.Description },
		set:  func(in *provider.UpdateInput, v string) { in.Description = &v },
	},
	{
		name: "SessionDuration",
		get:  func(d provider.PermissionSetDetails) string { return d.SessionDuration },
		set:  func(in *provider.UpdateInput, v string) { in.SessionDuration = &v },
	},
	{
		name: "RelayState",
		get:  func(d provider.PermissionSetDetails) string { return d.RelayState },
		set:  func(in *provider.UpdateInput, v string) { in.RelayState = &v },
	},
}

// Diff implements the resource-level contract. An absent current state
// yields a single CREATE for the whole resource; a deleted desired state
// over an existing resource yields a single DELETE and suppresses all other
// diffing; otherwise the tracked scalar fields are diffed one by one.
func Diff(desired, current *provider.PermissionSetDetails, deleted bool) []model.ProposedChange {
	if deleted {
		if current == nil {
			return nil
		}
		return []model.ProposedChange{{
			Type:         model.ChangeDelete,
			ResourceID:   current.Name,
			ResourceType: model.ResourceTypePermissionSet,
		}}
	}
	if current == nil {
		return []model.ProposedChange{{
			Type:         model.ChangeCreate,
			ResourceID:   desired.Name,
			ResourceType: model.ResourceTypePermissionSet,
		}}
	}
	_, changes := DiffUpdatableFields(*desired, *current)
	return changes
}

// DiffUpdatableFields emits one UPDATE per tracked scalar field whose
// desired value is present (non-empty) and differs from the current value,
// and batches the changed fields into a single UpdateInput so the apply step
// performs one combined update call.
func DiffUpdatableFields(desired, current provider.PermissionSetDetails) (provider.UpdateInput, []model.ProposedChange) {
	var in provider.UpdateInput
	var changes []model.ProposedChange
	for _, field := range updatableFields {
		want := field.get(desired)
		have := field.get(current)
		if want == "" || want == have {
			continue
		}
		field.set(&in, want)
		changes = append(changes, model.ProposedChange{
			Type:         model.ChangeUpdate,
			ResourceID:   desired.Name,
			ResourceType: model.ResourceTypePermissionSet,
			Attribute:    field.name,
			OldValue:     have,
			NewValue:     want,
		})
	}
	return in, changes
}

// DiffTags computes the tag mutations: keys present currently but absent
// from the desired set are removed, desired tags whose value differs (or are
// new) are set.
func DiffTags(desired, current []provider.KV, resourceID string) (toSet []provider.KV, toRemove []string, changes []model.ProposedChange) {
	currentByKey := make(map[string]string, len(current))
	for _, kv := range current {
		currentByKey[kv.Key] = kv.Value
	}
	desiredByKey := make(map[string]string, len(desired))
	for _, kv := range desired {
		desiredByKey[kv.Key] = kv.Value
	}

	for _, kv := range current {
		if _, keep := desiredByKey[kv.Key]; !keep {
			toRemove = append(toRemove, kv.Key)
			changes = append(changes, model.ProposedChange{
				Type:         model.ChangeDelete,
				ResourceID:   resourceID,
				ResourceType: model.ResourceTypePermissionSet,
				Attribute:    attributeTags,
				OldValue:     map[string]string{kv.Key: kv.Value},
			})
		}
	}
	for _, kv := range desired {
		have, exists := currentByKey[kv.Key]
		if exists && have == kv.Value {
			continue
		}
		toSet = append(toSet, kv)
		change := model.ProposedChange{
			Type:         model.ChangeUpdate,
			ResourceID:   resourceID,
			ResourceType: model.ResourceTypePermissionSet,
			Attribute:    attributeTags,
			NewValue:     map[string]string{kv.Key: kv.Value},
		}
		if exists {
			change.OldValue = map[string]string{kv.Key: have}
		} else {
			change.Type = model.ChangeCreate
		}
		changes = append(changes, change)
	}
	return toSet, toRemove, changes
}

// DiffStringSet computes the set difference between desired and current,
// preserving desired order for attachments.
func DiffStringSet(desired, current []string) (attach, detach []string) {
	currentSet := make(map[string]struct{}, len(current))
	for _, s := range current {
		currentSet[s] = struct{}{}
	}
	desiredSet := make(map[string]struct{}, len(desired))
	for _, s := range desired {
		desiredSet[s] = struct{}{}
	}
	for _, s := range desired {
		if _, ok := currentSet[s]; !ok {
			attach = append(attach, s)
		}
	}
	for _, s := range current {
		if _, ok := desiredSet[s]; !ok {
			detach = append(detach, s)
		}
	}
	return attach, detach
}

// DiffPolicyReferences is DiffStringSet over customer-managed policy
// references.
func DiffPolicyReferences(desired, current []provider.PolicyReference) (attach, detach []provider.PolicyReference) {
	currentSet := make(map[provider.PolicyReference]struct{}, len(current))
	for _, ref := range current {
		currentSet[ref] = struct{}{}
	}
	desiredSet := make(map[provider.PolicyReference]struct{}, len(desired))
	for _, ref := range desired {
		desiredSet[ref] = struct{}{}
	}
	for _, ref := range desired {
		if _, ok := currentSet[ref]; !ok {
			attach = append(attach, ref)
		}
	}
	for _, ref := range current {
		if _, ok := desiredSet[ref]; !ok {
			detach = append(detach, ref)
		}
	}
	return attach, detach
}

// DiffAssignments partitions the desired and current assignment sets by
// existence: desired-only entries are created, current-only entries are
// deleted. Identity is (account, principal type, principal id).
func DiffAssignments(desired, current []model.ResolvedAssignment) (create, remove []model.ResolvedAssignment) {
	currentSet := make(map[string]struct{}, len(current))
	for _, a := range current {
		currentSet[a.Key()] = struct{}{}
	}
	desiredSet := make(map[string]struct{}, len(desired))
	for _, a := range desired {
		desiredSet[a.Key()] = struct{}{}
	}
	for _, a := range desired {
		if _, ok := currentSet[a.Key()]; !ok {
			create = append(create, a)
		}
	}
	for _, a := range current {
		if _, ok := desiredSet[a.Key()]; !ok {
			remove = append(remove, a)
		}
	}
	return create, remove
}
