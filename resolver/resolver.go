// api/resolver/resolver.go

// Package resolver turns the ordered access-rule list of a template into the
// concrete per-account assignment set. Evaluation is pure: no I/O, no
// suspension, strict in-rule-order accumulation per account.
package resolver

import (
	"sort"
	"time"

	"github.com/permsync/permsync/api/model"
)

// Resolve evaluates rules in their stored order against one account
// directory and returns the flattened assignment set, one entry per
// (account, principal) pair. A rule that is deleted or expired contributes
// nothing. Returns an empty slice when no rule matches the account.
func Resolve(rules []model.AccessRule, d model.AccountDirectory, now time.Time) []model.ResolvedAssignment {
	userIDs := make(map[string]struct{})
	groupIDs := make(map[string]struct{})

	for _, rule := range rules {
		if rule.Inert(now) {
			continue
		}
		if !AppliesTo(rule.AccessScope, d) {
			continue
		}

		for _, user := range rule.Users {
			if user == "*" {
				for _, id := range d.Users {
					userIDs[id] = struct{}{}
				}
			} else if id, ok := d.Users[user]; ok {
				userIDs[id] = struct{}{}
			}
			// Unresolvable names are dropped silently: the directory is the
			// source of truth for who exists.
		}
		for _, group := range rule.Groups {
			if group == "*" {
				for _, id := range d.Groups {
					groupIDs[id] = struct{}{}
				}
			} else if id, ok := d.Groups[group]; ok {
				groupIDs[id] = struct{}{}
			}
		}

		// No later rule can add anything once every known principal is
		// already assigned. Rules are additive, never subtractive, so this
		// cannot change the result.
		if len(userIDs) == len(d.Users) && len(groupIDs) == len(d.Groups) {
			break
		}
	}

	return flatten(userIDs, groupIDs, d)
}

func flatten(userIDs, groupIDs map[string]struct{}, d model.AccountDirectory) []model.ResolvedAssignment {
	assignments := make([]model.ResolvedAssignment, 0, len(userIDs)+len(groupIDs))
	for _, id := range sortedKeys(userIDs) {
		assignments = append(assignments, model.ResolvedAssignment{
			AccountID:     d.AccountID,
			AccountLabel:  d.Label(),
			PrincipalType: model.PrincipalUser,
			PrincipalID:   id,
			PrincipalName: d.UserName(id),
		})
	}
	for _, id := range sortedKeys(groupIDs) {
		assignments = append(assignments, model.ResolvedAssignment{
			AccountID:     d.AccountID,
			AccountLabel:  d.Label(),
			PrincipalType: model.PrincipalGroup,
			PrincipalID:   id,
			PrincipalName: d.GroupName(id),
		})
	}
	return assignments
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// TemplateAppliesTo reports whether a template's own scope covers the
// account. The orchestrator uses this to filter target accounts before
// fanning out; the matching rules are identical to rule-level matching.
func TemplateAppliesTo(t *model.Template, d model.AccountDirectory) bool {
	return AppliesTo(t.AccessScope, d)
}
