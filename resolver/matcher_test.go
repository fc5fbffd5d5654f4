// api/resolver/matcher_test.go
package resolver_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/permsync/permsync/api/model"
	"github.com/permsync/permsync/api/resolver"
)

func TestMatchPattern(t *testing.T) {
	t.Run("ExactAccountID", func(t *testing.T) {
		assert.True(t, resolver.MatchPattern("111111111111", "111111111111"))
		assert.False(t, resolver.MatchPattern("111111111111", "222222222222"))
	})

	t.Run("PrefixRegex", func(t *testing.T) {
		// Patterns anchor at the start of the value only.
		assert.True(t, resolver.MatchPattern("prod.*", "prod-payments"))
		assert.True(t, resolver.MatchPattern("prod", "prod-payments"))
		assert.False(t, resolver.MatchPattern("payments", "prod-payments"))
	})

	t.Run("PatternIsLowercased", func(t *testing.T) {
		assert.True(t, resolver.MatchPattern("PROD.*", "prod-payments"))
	})

	t.Run("InvalidRegexFallsBackToEquality", func(t *testing.T) {
		assert.True(t, resolver.MatchPattern("acct[", "acct["))
		assert.False(t, resolver.MatchPattern("acct[", "acct"))
	})

	t.Run("Alternation", func(t *testing.T) {
		assert.True(t, resolver.MatchPattern("dev|staging", "staging"))
		assert.False(t, resolver.MatchPattern("dev|staging", "production"))
	})
}

func TestAppliesTo(t *testing.T) {
	prod := model.AccountDirectory{
		OrgID:       "org-1",
		AccountID:   "111111111111",
		AccountName: "Prod",
	}

	t.Run("WildcardIncludeMatchesEverything", func(t *testing.T) {
		scope := model.AccessScope{IncludedAccounts: []string{"*"}}
		assert.True(t, resolver.AppliesTo(scope, prod))
	})

	t.Run("EmptyScopeIsWildcard", func(t *testing.T) {
		assert.True(t, resolver.AppliesTo(model.AccessScope{}, prod))
	})

	t.Run("MatchByAccountID", func(t *testing.T) {
		scope := model.AccessScope{IncludedAccounts: []string{"111111111111"}}
		assert.True(t, resolver.AppliesTo(scope, prod))
	})

	t.Run("MatchByLowercasedAccountName", func(t *testing.T) {
		scope := model.AccessScope{IncludedAccounts: []string{"prod"}}
		assert.True(t, resolver.AppliesTo(scope, prod))
	})

	t.Run("ExcludeWinsOverInclude", func(t *testing.T) {
		scope := model.AccessScope{
			IncludedAccounts: []string{"*"},
			ExcludedAccounts: []string{"prod"},
		}
		assert.False(t, resolver.AppliesTo(scope, prod))
	})

	t.Run("ExcludedOrgDisqualifies", func(t *testing.T) {
		scope := model.AccessScope{
			IncludedAccounts: []string{"*"},
			ExcludedOrgs:     []string{"org-1"},
		}
		assert.False(t, resolver.AppliesTo(scope, prod))
	})

	t.Run("OrgIncludeIsExactNotPattern", func(t *testing.T) {
		scope := model.AccessScope{IncludedOrgs: []string{"org-.*"}}
		assert.False(t, resolver.AppliesTo(scope, prod))

		scope.IncludedOrgs = []string{"org-1"}
		assert.True(t, resolver.AppliesTo(scope, prod))
	})

	t.Run("NoMatchingInclude", func(t *testing.T) {
		scope := model.AccessScope{IncludedAccounts: []string{"staging", "dev"}}
		assert.False(t, resolver.AppliesTo(scope, prod))
	})

	t.Run("NamelessAccountMatchesOnIDOnly", func(t *testing.T) {
		anon := model.AccountDirectory{OrgID: "org-1", AccountID: "333333333333"}
		scope := model.AccessScope{IncludedAccounts: []string{"333.*"}}
		assert.True(t, resolver.AppliesTo(scope, anon))
	})
}
