// api/resolver/resolver_test.go
package resolver_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/permsync/permsync/api/model"
	"github.com/permsync/permsync/api/resolver"
)

func prodDirectory() model.AccountDirectory {
	return model.AccountDirectory{
		OrgID:       "org-1",
		AccountID:   "111111111111",
		AccountName: "Prod",
		Users: map[string]string{
			"alice": "u-alice",
			"bob":   "u-bob",
		},
		Groups: map[string]string{
			"Engineering": "g-eng",
			"Security":    "g-sec",
		},
	}
}

func TestResolve(t *testing.T) {
	now := time.Now()
	d := prodDirectory()

	t.Run("NamedPrincipals", func(t *testing.T) {
		rules := []model.AccessRule{{
			Users:  []string{"alice"},
			Groups: []string{"Security"},
		}}
		got := resolver.Resolve(rules, d, now)

		assert.Len(t, got, 2)
		assert.Equal(t, model.PrincipalUser, got[0].PrincipalType)
		assert.Equal(t, "u-alice", got[0].PrincipalID)
		assert.Equal(t, "alice", got[0].PrincipalName)
		assert.Equal(t, "111111111111 (Prod)", got[0].AccountLabel)
		assert.Equal(t, model.PrincipalGroup, got[1].PrincipalType)
		assert.Equal(t, "g-sec", got[1].PrincipalID)
	})

	t.Run("WildcardExpandsWholeDirectory", func(t *testing.T) {
		rules := []model.AccessRule{{
			Users:  []string{"*"},
			Groups: []string{"*"},
		}}
		got := resolver.Resolve(rules, d, now)
		assert.Len(t, got, 4)
	})

	t.Run("RulesAccumulateAcrossTheList", func(t *testing.T) {
		rules := []model.AccessRule{
			{Users: []string{"alice"}},
			{Users: []string{"bob"}, Groups: []string{"Engineering"}},
		}
		got := resolver.Resolve(rules, d, now)
		assert.Len(t, got, 3)
	})

	t.Run("ScopedRuleSkippedForOtherAccount", func(t *testing.T) {
		rules := []model.AccessRule{
			{
				AccessScope: model.AccessScope{IncludedAccounts: []string{"staging"}},
				Users:       []string{"alice"},
			},
			{
				AccessScope: model.AccessScope{IncludedAccounts: []string{"prod"}},
				Users:       []string{"bob"},
			},
		}
		got := resolver.Resolve(rules, d, now)

		assert.Len(t, got, 1)
		assert.Equal(t, "u-bob", got[0].PrincipalID)
	})

	t.Run("ExclusionOnOneRuleDoesNotRetractAnother", func(t *testing.T) {
		// One rule excludes the account, another includes it. The excluded
		// rule contributes nothing, but the inclusive rule still grants.
		rules := []model.AccessRule{
			{
				AccessScope: model.AccessScope{ExcludedAccounts: []string{"prod"}},
				Users:       []string{"alice"},
			},
			{Users: []string{"bob"}},
		}
		got := resolver.Resolve(rules, d, now)

		assert.Len(t, got, 1)
		assert.Equal(t, "u-bob", got[0].PrincipalID)
	})

	t.Run("DeletedRuleIsInert", func(t *testing.T) {
		rules := []model.AccessRule{{
			ExpiryModel: model.ExpiryModel{Deleted: true},
			Users:       []string{"*"},
		}}
		assert.Empty(t, resolver.Resolve(rules, d, now))
	})

	t.Run("ExpiredRuleIsInert", func(t *testing.T) {
		past := now.Add(-time.Hour)
		rules := []model.AccessRule{{
			ExpiryModel: model.ExpiryModel{ExpiresAt: &past},
			Users:       []string{"*"},
		}}
		assert.Empty(t, resolver.Resolve(rules, d, now))
	})

	t.Run("UnknownPrincipalNamesDroppedSilently", func(t *testing.T) {
		rules := []model.AccessRule{{
			Users:  []string{"mallory", "alice"},
			Groups: []string{"DoesNotExist"},
		}}
		got := resolver.Resolve(rules, d, now)

		assert.Len(t, got, 1)
		assert.Equal(t, "u-alice", got[0].PrincipalID)
	})

	t.Run("NoMatchingRuleYieldsEmptySet", func(t *testing.T) {
		got := resolver.Resolve(nil, d, now)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("ResultOrderIsDeterministic", func(t *testing.T) {
		rules := []model.AccessRule{{Users: []string{"*"}, Groups: []string{"*"}}}
		first := resolver.Resolve(rules, d, now)
		second := resolver.Resolve(rules, d, now)
		assert.Equal(t, first, second)
	})

	t.Run("DuplicateGrantsCollapse", func(t *testing.T) {
		rules := []model.AccessRule{
			{Users: []string{"alice"}},
			{Users: []string{"alice", "*"}},
		}
		got := resolver.Resolve(rules, d, now)
		assert.Len(t, got, 2)
	})
}

func TestTemplateAppliesTo(t *testing.T) {
	d := prodDirectory()

	tmpl := &model.Template{
		AccessScope: model.AccessScope{IncludedAccounts: []string{"prod"}},
	}
	assert.True(t, resolver.TemplateAppliesTo(tmpl, d))

	tmpl.AccessScope = model.AccessScope{ExcludedAccounts: []string{"111111111111"}}
	assert.False(t, resolver.TemplateAppliesTo(tmpl, d))
}
