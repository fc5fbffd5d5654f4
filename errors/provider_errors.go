// api/errors/provider_errors.go
package errors

import "errors"

// Provider-side error kinds. ErrThrottled and ErrTimeout are the retryable
// kinds every provider call is wrapped with; concrete clients wrap their
// SDK errors so errors.Is matches these sentinels.
var (
	ErrThrottled             = errors.New("request throttled by provider")
	ErrTimeout               = errors.New("provider request timed out")
	ErrPermissionSetNotFound = errors.New("permission set not found")
	ErrProviderOperation     = errors.New("provider operation failed")
)
