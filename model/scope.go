// api/model/scope.go
package model

// AccessScope limits where a template, rule, or scoped attribute variant
// applies. Org ids are matched by exact string equality; account entries are
// patterns (regex with exact-match fallback) evaluated against the account id
// and lower-cased account name.
type AccessScope struct {
	IncludedOrgs     []string `json:"included_orgs,omitempty" yaml:"included_orgs,omitempty"`
	ExcludedOrgs     []string `json:"excluded_orgs,omitempty" yaml:"excluded_orgs,omitempty"`
	IncludedAccounts []string `json:"included_accounts,omitempty" yaml:"included_accounts,omitempty"`
	ExcludedAccounts []string `json:"excluded_accounts,omitempty" yaml:"excluded_accounts,omitempty"`
}

// EffectiveIncludedOrgs treats an empty include list as ["*"].
func (s AccessScope) EffectiveIncludedOrgs() []string {
	if len(s.IncludedOrgs) == 0 {
		return []string{"*"}
	}
	return s.IncludedOrgs
}

// EffectiveIncludedAccounts treats an empty include list as ["*"].
func (s AccessScope) EffectiveIncludedAccounts() []string {
	if len(s.IncludedAccounts) == 0 {
		return []string{"*"}
	}
	return s.IncludedAccounts
}

// SortWeight orders scoped entries so that more specific scopes evaluate
// first. Wildcards weigh far heavier than named entries; ties keep their
// stored order, which makes evaluation reproducible across runs.
func (s AccessScope) SortWeight() int {
	weight := 0
	for _, p := range s.EffectiveIncludedAccounts() {
		if p == "*" {
			weight += 100
		} else {
			weight++
		}
	}
	for _, p := range s.EffectiveIncludedOrgs() {
		if p == "*" {
			weight += 100
		} else {
			weight++
		}
	}
	return weight
}
