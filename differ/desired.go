// api/differ/desired.go
package differ

import (
	"github.com/permsync/permsync/api/model"
	"github.com/permsync/permsync/api/provider"
	"github.com/permsync/permsync/api/resolver"
)

// DesiredState reduces a template to the normalized projection for one
// account. Every multi-valued attribute that scopes per account or org
// (description, session duration, tags) is reduced the same way: drop
// entries whose scope misses the account, and for single-valued attributes
// take the first matching variant. Variant lists are already in specificity
// order after Template.Normalize, so "first" means "most specific".
func DesiredState(t *model.Template, d model.AccountDirectory) provider.PermissionSetDetails {
	details := provider.PermissionSetDetails{
		Name:       t.Properties.Name,
		RelayState: t.Properties.RelayState,
	}

	for _, v := range t.Properties.Descriptions {
		if resolver.AppliesTo(v.AccessScope, d) {
			details.Description = v.Text
			break
		}
	}
	for _, v := range t.Properties.SessionDurations {
		if resolver.AppliesTo(v.AccessScope, d) {
			details.SessionDuration = v.Duration
			break
		}
	}

	for _, tag := range t.Properties.Tags {
		if resolver.AppliesTo(tag.AccessScope, d) {
			details.Tags = append(details.Tags, provider.KV{Key: tag.Key, Value: tag.Value})
		}
	}

	for _, mp := range t.Properties.ManagedPolicies {
		details.ManagedPolicyARNs = append(details.ManagedPolicyARNs, mp.ARN)
	}
	for _, ref := range t.Properties.CustomerManagedPolicyReferences {
		details.CustomerManagedPolicyReferences = append(details.CustomerManagedPolicyReferences, provider.PolicyReference{
			Path: ref.Path,
			Name: ref.Name,
		})
	}

	if t.Properties.InlinePolicy != nil {
		details.InlinePolicy = t.Properties.InlinePolicy.Document
	}
	if b := t.Properties.PermissionsBoundary; b != nil {
		boundary := &provider.Boundary{PolicyARN: b.PolicyARN}
		if b.CustomerManagedPolicyReference != nil {
			boundary.CustomerManagedPolicyReference = &provider.PolicyReference{
				Path: b.CustomerManagedPolicyReference.Path,
				Name: b.CustomerManagedPolicyReference.Name,
			}
		}
		details.PermissionsBoundary = boundary
	}

	return details
}
