// api/resolver/matcher.go
package resolver

import (
	"regexp"
	"strings"

	"github.com/permsync/permsync/api/model"
)

// MatchPattern tests one account pattern against one account representation.
// The pattern is lower-cased and first tried as a regular expression anchored
// at the start of the value; a pattern that fails to compile degrades to
// exact string equality instead of raising. Account names inside templates
// are frequently not valid expressions, so the fallback is load-bearing, not
// defensive.
func MatchPattern(pattern, value string) bool {
	p := strings.ToLower(pattern)
	re, err := regexp.Compile("^(?:" + p + ")")
	if err != nil {
		return p == value
	}
	return re.MatchString(value)
}

// accountReprs returns the representations a pattern is tested against: the
// account id as given, plus the lower-cased account name when one is known.
func accountReprs(d model.AccountDirectory) []string {
	if d.AccountName == "" {
		return []string{d.AccountID}
	}
	return []string{d.AccountID, strings.ToLower(d.AccountName)}
}

// AppliesTo reports whether a scope matches one account. Org ids compare by
// exact equality; account patterns go through MatchPattern. An exclude hit
// on any representation disqualifies immediately, before includes are
// considered. A literal "*" include matches unconditionally.
func AppliesTo(scope model.AccessScope, d model.AccountDirectory) bool {
	for _, org := range scope.ExcludedOrgs {
		if org == d.OrgID {
			return false
		}
	}
	includedOrgs := scope.EffectiveIncludedOrgs()
	if !containsLiteral(includedOrgs, "*") && !containsLiteral(includedOrgs, d.OrgID) {
		return false
	}

	reprs := accountReprs(d)
	for _, repr := range reprs {
		for _, pattern := range scope.ExcludedAccounts {
			if MatchPattern(pattern, repr) {
				return false
			}
		}
	}

	included := scope.EffectiveIncludedAccounts()
	if containsLiteral(included, "*") {
		return true
	}
	for _, repr := range reprs {
		for _, pattern := range included {
			if MatchPattern(pattern, repr) {
				return true
			}
		}
	}
	return false
}

func containsLiteral(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
