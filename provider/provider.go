// api/provider/provider.go

// Package provider defines the narrow interface the reconciliation core uses
// to talk to the SSO provider. Concrete SDK adapters live outside this
// repository; the in-memory implementation here backs dev mode and tests.
package provider

import (
	"context"

	"github.com/permsync/permsync/api/model"
)

// KV is one tag on a permission set as the provider reports it.
type KV struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// PolicyReference names a customer-managed policy by path and name.
type PolicyReference struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

// Boundary is the permissions boundary attached to a permission set. Exactly
// one of PolicyARN or CustomerManagedPolicyReference is set.
type Boundary struct {
	PolicyARN                      string           `json:"policy_arn,omitempty"`
	CustomerManagedPolicyReference *PolicyReference `json:"customer_managed_policy_reference,omitempty"`
}

// PermissionSetDetails is the normalized projection of a permission set, used
// both for the desired side (template reduced for one account) and the
// current side (live state as the provider reports it, enriched with
// sub-resource details).
type PermissionSetDetails struct {
	Name                            string            `json:"name"`
	Description                     string            `json:"description,omitempty"`
	SessionDuration                 string            `json:"session_duration,omitempty"`
	RelayState                      string            `json:"relay_state,omitempty"`
	Tags                            []KV              `json:"tags,omitempty"`
	ManagedPolicyARNs               []string          `json:"managed_policies,omitempty"`
	CustomerManagedPolicyReferences []PolicyReference `json:"customer_managed_policy_references,omitempty"`
	InlinePolicy                    string            `json:"inline_policy,omitempty"`
	PermissionsBoundary             *Boundary         `json:"permissions_boundary,omitempty"`
}

// CreateInput carries the attributes settable at creation time.
type CreateInput struct {
	Name            string
	Description     string
	SessionDuration string
	RelayState      string
	Tags            []KV
}

// UpdateInput carries only the fields that actually changed; nil means leave
// the field alone. The apply step batches changed fields into one call.
type UpdateInput struct {
	Description     *string
	SessionDuration *string
	RelayState      *string
}

// ProvisionStatus is the provider-side state of an asynchronous provisioning
// request.
type ProvisionStatus string

const (
	ProvisionInProgress ProvisionStatus = "IN_PROGRESS"
	ProvisionSucceeded  ProvisionStatus = "SUCCEEDED"
	ProvisionFailed     ProvisionStatus = "FAILED"
)

// Client is the full provider surface the core calls. Every method maps to
// one provider request; all of them are wrapped by the rate-limited invoker
// at the call site. GetPermissionSet returns errors.ErrPermissionSetNotFound
// (wrapped) when the set does not exist; on success it also returns the
// provider handle that every mutation below takes.
type Client interface {
	GetPermissionSet(ctx context.Context, name string) (handle string, details *PermissionSetDetails, err error)
	CreatePermissionSet(ctx context.Context, in CreateInput) (handle string, err error)
	UpdatePermissionSet(ctx context.Context, handle string, in UpdateInput) error
	// DeletePermissionSet receives the full current context so the provider
	// adapter can clean up dependent assignments before the delete.
	DeletePermissionSet(ctx context.Context, handle string, current *PermissionSetDetails, assignments []model.ResolvedAssignment) error

	AttachManagedPolicy(ctx context.Context, handle, arn string) error
	DetachManagedPolicy(ctx context.Context, handle, arn string) error
	AttachCustomerManagedPolicy(ctx context.Context, handle string, ref PolicyReference) error
	DetachCustomerManagedPolicy(ctx context.Context, handle string, ref PolicyReference) error
	PutInlinePolicy(ctx context.Context, handle, document string) error
	DeleteInlinePolicy(ctx context.Context, handle string) error
	PutPermissionsBoundary(ctx context.Context, handle string, boundary Boundary) error
	DeletePermissionsBoundary(ctx context.Context, handle string) error
	TagPermissionSet(ctx context.Context, handle string, tags []KV) error
	UntagPermissionSet(ctx context.Context, handle string, keys []string) error

	CreateAssignment(ctx context.Context, handle string, a model.ResolvedAssignment) error
	DeleteAssignment(ctx context.Context, handle string, a model.ResolvedAssignment) error
	ListAssignments(ctx context.Context, handle string) ([]model.ResolvedAssignment, error)

	Provision(ctx context.Context, handle string) (requestID string, err error)
	ProvisionStatus(ctx context.Context, requestID string) (ProvisionStatus, error)
}

// DirectorySource supplies the account directories for a reconciliation
// pass, refreshed once per pass.
type DirectorySource interface {
	Directories(ctx context.Context) ([]model.AccountDirectory, error)
}
