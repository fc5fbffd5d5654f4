// api/model/account.go
package model

import "fmt"

// AccountDirectory is the read-only snapshot of one target account used for a
// single reconciliation pass: identity of the account, the user/group
// name-to-id maps of its org's identity store, and the org's full account
// membership map. Supplied by the directory source; never mutated by the core.
type AccountDirectory struct {
	OrgID       string            `json:"org_id"`
	AccountID   string            `json:"account_id"`
	AccountName string            `json:"account_name"`
	Users       map[string]string `json:"users"`  // user name -> principal id
	Groups      map[string]string `json:"groups"` // group display name -> principal id
	OrgAccounts map[string]string `json:"org_accounts"`
}

// Label renders the composite account label used on assignments and logs.
func (d AccountDirectory) Label() string {
	if d.AccountName == "" {
		return d.AccountID
	}
	return fmt.Sprintf("%s (%s)", d.AccountID, d.AccountName)
}

// UserName resolves a principal id back to its user name, or "" when unknown.
func (d AccountDirectory) UserName(principalID string) string {
	for name, id := range d.Users {
		if id == principalID {
			return name
		}
	}
	return ""
}

// GroupName resolves a principal id back to its group name, or "" when unknown.
func (d AccountDirectory) GroupName(principalID string) string {
	for name, id := range d.Groups {
		if id == principalID {
			return name
		}
	}
	return ""
}

// PrincipalType distinguishes user from group assignments.
type PrincipalType string

const (
	PrincipalUser  PrincipalType = "USER"
	PrincipalGroup PrincipalType = "GROUP"
)

// ResolvedAssignment is one concrete (account, principal) grant produced by
// access-rule resolution, or observed on the provider side.
type ResolvedAssignment struct {
	AccountID     string        `json:"account_id"`
	AccountLabel  string        `json:"account_name"`
	PrincipalType PrincipalType `json:"resource_type"`
	PrincipalID   string        `json:"resource_id"`
	PrincipalName string        `json:"resource_name"`
}

// Key identifies an assignment for set-difference comparisons. The principal
// name and account label are display-only and excluded on purpose.
func (a ResolvedAssignment) Key() string {
	return fmt.Sprintf("%s:%s:%s", a.AccountID, a.PrincipalType, a.PrincipalID)
}

// AccessEntry is one row of the projected access graph: which permission set
// grants which principal access on an account.
type AccessEntry struct {
	PermissionSet string        `json:"permission_set"`
	AccountID     string        `json:"account_id"`
	PrincipalType PrincipalType `json:"principal_type"`
	PrincipalID   string        `json:"principal_id"`
	PrincipalName string        `json:"principal_name,omitempty"`
}
