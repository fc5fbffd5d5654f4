// api/errors/reconcile_errors.go
package errors

import "errors"

var (
	ErrReconcileInProgress = errors.New("reconciliation already in progress for template")
	ErrGraphUnavailable    = errors.New("access graph store unavailable")
	ErrAuditUnavailable    = errors.New("audit store unavailable")
)
