// api/audit/model.go
package audit

import (
	"encoding/json"
	"time"
)

// ReconcileLog is one audited event: a reconciliation pass outcome, a
// template mutation through the API, or an executed provider change.
type ReconcileLog struct {
	Timestamp     time.Time       `json:"timestamp"`
	RunID         string          `json:"run_id,omitempty"`
	UserID        string          `json:"user_id,omitempty"`
	Action        string          `json:"action"`
	ResourceID    string          `json:"resource_id"`
	Account       string          `json:"account,omitempty"`
	Mode          string          `json:"mode,omitempty"`
	Success       bool            `json:"success"`
	ChangeDetails json.RawMessage `json:"change_details,omitempty"`
}
