// api/differ/subresources.go
package differ

import (
	"reflect"

	"github.com/permsync/permsync/api/model"
	"github.com/permsync/permsync/api/provider"
)

// ManagedPolicyChanges renders managed policy attach/detach pairs as
// proposed changes.
func ManagedPolicyChanges(attach, detach []string) []model.ProposedChange {
	changes := make([]model.ProposedChange, 0, len(attach)+len(detach))
	for _, arn := range attach {
		changes = append(changes, model.ProposedChange{
			Type:         model.ChangeCreate,
			ResourceID:   arn,
			ResourceType: resourceTypeManagedPolicy,
			NewValue:     arn,
		})
	}
	for _, arn := range detach {
		changes = append(changes, model.ProposedChange{
			Type:         model.ChangeDelete,
			ResourceID:   arn,
			ResourceType: resourceTypeManagedPolicy,
			OldValue:     arn,
		})
	}
	return changes
}

// PolicyReferenceChanges renders customer-managed policy reference
// attach/detach pairs as proposed changes.
func PolicyReferenceChanges(attach, detach []provider.PolicyReference) []model.ProposedChange {
	changes := make([]model.ProposedChange, 0, len(attach)+len(detach))
	for _, ref := range attach {
		changes = append(changes, model.ProposedChange{
			Type:         model.ChangeCreate,
			ResourceID:   ref.Path + ref.Name,
			ResourceType: resourceTypeManagedPolicy,
			NewValue:     ref,
		})
	}
	for _, ref := range detach {
		changes = append(changes, model.ProposedChange{
			Type:         model.ChangeDelete,
			ResourceID:   ref.Path + ref.Name,
			ResourceType: resourceTypeManagedPolicy,
			OldValue:     ref,
		})
	}
	return changes
}

// InlinePolicyChange compares inline policy documents. Returns nil when they
// already agree. An empty desired document over an existing one deletes it.
func InlinePolicyChange(desired, current, resourceID string) *model.ProposedChange {
	if desired == current {
		return nil
	}
	if desired == "" {
		return &model.ProposedChange{
			Type:         model.ChangeDelete,
			ResourceID:   resourceID,
			ResourceType: resourceTypeInlinePolicy,
			Attribute:    attributeInlinePolicy,
			OldValue:     current,
		}
	}
	change := &model.ProposedChange{
		Type:         model.ChangeUpdate,
		ResourceID:   resourceID,
		ResourceType: resourceTypeInlinePolicy,
		Attribute:    attributeInlinePolicy,
		OldValue:     current,
		NewValue:     desired,
	}
	if current == "" {
		change.Type = model.ChangeCreate
		change.OldValue = nil
	}
	return change
}

// BoundaryChange compares permission boundaries. Returns nil when they agree.
func BoundaryChange(desired, current *provider.Boundary, resourceID string) *model.ProposedChange {
	if reflect.DeepEqual(desired, current) {
		return nil
	}
	change := &model.ProposedChange{
		Type:         model.ChangeUpdate,
		ResourceID:   resourceID,
		ResourceType: resourceTypeBoundary,
		Attribute:    attributeBoundary,
		OldValue:     current,
		NewValue:     desired,
	}
	switch {
	case desired == nil:
		change.Type = model.ChangeDelete
	case current == nil:
		change.Type = model.ChangeCreate
	}
	return change
}

// AssignmentChanges renders assignment create/delete pairs as proposed
// changes, keyed by the principal for the report.
func AssignmentChanges(create, remove []model.ResolvedAssignment) []model.ProposedChange {
	changes := make([]model.ProposedChange, 0, len(create)+len(remove))
	for _, a := range create {
		changes = append(changes, model.ProposedChange{
			Type:         model.ChangeCreate,
			ResourceID:   a.PrincipalID,
			ResourceType: resourceTypeAssignment,
			NewValue:     a,
		})
	}
	for _, a := range remove {
		changes = append(changes, model.ProposedChange{
			Type:         model.ChangeDelete,
			ResourceID:   a.PrincipalID,
			ResourceType: resourceTypeAssignment,
			OldValue:     a,
		})
	}
	return changes
}
