// api/model/changes.go
package model

import "time"

// ChangeType classifies a proposed mutation.
type ChangeType string

const (
	ChangeCreate ChangeType = "CREATE"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
)

// ProposedChange is one mutation derived by diffing, or the recorded outcome
// of executing one. Execution failures are carried as data in ExceptionsSeen
// so callers can separate "change detected" from "change succeeded".
type ProposedChange struct {
	Type           ChangeType  `json:"change_type"`
	ResourceID     string      `json:"resource_id"`
	ResourceType   string      `json:"resource_type"`
	Attribute      string      `json:"attribute,omitempty"`
	OldValue       interface{} `json:"old_value,omitempty"`
	NewValue       interface{} `json:"new_value,omitempty"`
	ExceptionsSeen []string    `json:"exceptions_seen,omitempty"`
}

// AddException records a failed execution attempt on the change.
func (c *ProposedChange) AddException(err error) {
	if err != nil {
		c.ExceptionsSeen = append(c.ExceptionsSeen, err.Error())
	}
}

// Failed reports whether executing the change raised anything.
func (c *ProposedChange) Failed() bool {
	return len(c.ExceptionsSeen) > 0
}

// AccountChangeDetails is the outcome of reconciling one template against one
// account. Created fresh per pass and owned by the caller of the pass.
type AccountChangeDetails struct {
	OrgID           string                 `json:"org_id"`
	Account         string                 `json:"account"`
	ResourceID      string                 `json:"resource_id"`
	ResourceType    string                 `json:"resource_type"`
	CurrentValue    map[string]interface{} `json:"current_value,omitempty"`
	NewValue        map[string]interface{} `json:"new_value,omitempty"`
	ProposedChanges []ProposedChange       `json:"proposed_changes"`
	ExceptionsSeen  []ProposedChange       `json:"exceptions_seen"`
}

// HasChanges reports whether the account pass proposed or made any change.
func (d *AccountChangeDetails) HasChanges() bool {
	return len(d.ProposedChanges) > 0
}

// HasExceptions reports whether any change on the account failed.
func (d *AccountChangeDetails) HasExceptions() bool {
	return len(d.ExceptionsSeen) > 0
}

// ReconcileRun is the API-facing record of one full pass.
type ReconcileRun struct {
	RunID      string                  `json:"run_id"`
	Mode       string                  `json:"mode"`
	StartedAt  time.Time               `json:"started_at"`
	FinishedAt time.Time               `json:"finished_at"`
	Results    []TemplateChangeDetails `json:"results"`
}

// TemplateChangeDetails aggregates one template's pass across all accounts:
// accounts that had any proposed change, and accounts that saw any exception.
// One account may appear in both lists.
type TemplateChangeDetails struct {
	ResourceID      string                 `json:"resource_id"`
	ResourceType    string                 `json:"resource_type"`
	TemplatePath    string                 `json:"template_path,omitempty"`
	ProposedChanges []AccountChangeDetails `json:"proposed_changes"`
	ExceptionsSeen  []AccountChangeDetails `json:"exceptions_seen"`
}
