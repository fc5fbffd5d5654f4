// api/differ/desired_test.go
package differ_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/permsync/permsync/api/differ"
	"github.com/permsync/permsync/api/model"
	"github.com/permsync/permsync/api/provider"
)

func TestDesiredState(t *testing.T) {
	prod := model.AccountDirectory{
		OrgID:       "org-1",
		AccountID:   "111111111111",
		AccountName: "Prod",
	}
	staging := model.AccountDirectory{
		OrgID:       "org-1",
		AccountID:   "222222222222",
		AccountName: "Staging",
	}

	t.Run("ScopedVariantsReduceToFirstMatch", func(t *testing.T) {
		tmpl := &model.Template{
			Properties: model.Properties{
				Name: "Admin",
				Descriptions: model.Descriptions{
					{
						AccessScope: model.AccessScope{IncludedAccounts: []string{"prod"}},
						Text:        "production admin",
					},
					{Text: "admin"},
				},
				SessionDurations: model.SessionDurations{
					{
						AccessScope: model.AccessScope{IncludedAccounts: []string{"prod"}},
						Duration:    "PT1H",
					},
					{Duration: "PT8H"},
				},
			},
		}
		tmpl.Normalize()

		onProd := differ.DesiredState(tmpl, prod)
		assert.Equal(t, "production admin", onProd.Description)
		assert.Equal(t, "PT1H", onProd.SessionDuration)

		onStaging := differ.DesiredState(tmpl, staging)
		assert.Equal(t, "admin", onStaging.Description)
		assert.Equal(t, "PT8H", onStaging.SessionDuration)
	})

	t.Run("ScopedTagsFilterPerAccount", func(t *testing.T) {
		tmpl := &model.Template{
			Properties: model.Properties{
				Name: "Admin",
				Tags: []model.Tag{
					{Key: "env", Value: "prod", AccessScope: model.AccessScope{IncludedAccounts: []string{"prod"}}},
					{Key: "team", Value: "platform"},
				},
			},
		}
		tmpl.Normalize()

		onProd := differ.DesiredState(tmpl, prod)
		assert.ElementsMatch(t, []provider.KV{
			{Key: "env", Value: "prod"},
			{Key: "team", Value: "platform"},
		}, onProd.Tags)

		onStaging := differ.DesiredState(tmpl, staging)
		assert.Equal(t, []provider.KV{{Key: "team", Value: "platform"}}, onStaging.Tags)
	})

	t.Run("PoliciesAndBoundaryCarryOver", func(t *testing.T) {
		tmpl := &model.Template{
			Properties: model.Properties{
				Name: "Admin",
				ManagedPolicies: []model.ManagedPolicyRef{
					{ARN: "arn:aws:iam::aws:policy/AdministratorAccess"},
				},
				CustomerManagedPolicyReferences: []model.CustomerManagedPolicyRef{
					{Path: "/team/", Name: "Extra"},
				},
				InlinePolicy: &model.InlinePolicy{Document: `{"Version":"2012-10-17"}`},
				PermissionsBoundary: &model.PermissionBoundary{
					CustomerManagedPolicyReference: &model.CustomerManagedPolicyRef{Path: "/", Name: "Boundary"},
				},
			},
		}
		tmpl.Normalize()

		got := differ.DesiredState(tmpl, prod)
		assert.Equal(t, []string{"arn:aws:iam::aws:policy/AdministratorAccess"}, got.ManagedPolicyARNs)
		assert.Equal(t, []provider.PolicyReference{{Path: "/team/", Name: "Extra"}}, got.CustomerManagedPolicyReferences)
		assert.Equal(t, `{"Version":"2012-10-17"}`, got.InlinePolicy)
		if assert.NotNil(t, got.PermissionsBoundary) {
			assert.Equal(t, &provider.PolicyReference{Path: "/", Name: "Boundary"}, got.PermissionsBoundary.CustomerManagedPolicyReference)
		}
	})
}
