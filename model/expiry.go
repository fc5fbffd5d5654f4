// api/model/expiry.go
package model

import "time"

// ExpiryModel marks a resource, rule, or scoped variant as soft-deleted or
// time-bounded. A deleted or expired entry is inert: it is skipped entirely
// during resolution and purged from the in-memory template before a
// reconciliation pass.
type ExpiryModel struct {
	Deleted   bool       `json:"deleted,omitempty" yaml:"deleted,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
}

// Expired reports whether the entry's expiry has elapsed as of now.
func (e ExpiryModel) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && !e.ExpiresAt.After(now)
}

// Inert reports whether the entry must be skipped entirely.
func (e ExpiryModel) Inert(now time.Time) bool {
	return e.Deleted || e.Expired(now)
}
