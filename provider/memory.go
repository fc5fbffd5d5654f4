// api/provider/memory.go
package provider

import (
	"context"
	"fmt"
	"sync"

	permsync_errors "github.com/permsync/permsync/api/errors"
	"github.com/permsync/permsync/api/model"
)

// Memory is an in-process Client and DirectorySource. It backs the "memory"
// provider driver so the service runs end-to-end without cloud credentials,
// and it is the provider used by reconciler tests.
type Memory struct {
	mu          sync.Mutex
	seq         int
	byName      map[string]*memoryRecord
	byHandle    map[string]*memoryRecord
	directories []model.AccountDirectory
}

type memoryRecord struct {
	handle      string
	details     PermissionSetDetails
	assignments map[string]model.ResolvedAssignment
}

// NewMemory creates an empty in-memory provider.
func NewMemory() *Memory {
	return &Memory{
		byName:   make(map[string]*memoryRecord),
		byHandle: make(map[string]*memoryRecord),
	}
}

// SetDirectories replaces the account directories returned to the
// orchestrator.
func (m *Memory) SetDirectories(dirs []model.AccountDirectory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.directories = dirs
}

// Seed installs a pre-existing permission set, returning its handle.
func (m *Memory) Seed(details PermissionSetDetails) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.create(details)
	return rec.handle
}

func (m *Memory) create(details PermissionSetDetails) *memoryRecord {
	m.seq++
	rec := &memoryRecord{
		handle:      fmt.Sprintf("ps-%06d", m.seq),
		details:     details,
		assignments: make(map[string]model.ResolvedAssignment),
	}
	m.byName[details.Name] = rec
	m.byHandle[rec.handle] = rec
	return rec
}

func (m *Memory) record(handle string) (*memoryRecord, error) {
	rec, ok := m.byHandle[handle]
	if !ok {
		return nil, fmt.Errorf("handle %q: %w", handle, permsync_errors.ErrPermissionSetNotFound)
	}
	return rec, nil
}

func (m *Memory) Directories(ctx context.Context) ([]model.AccountDirectory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.AccountDirectory, len(m.directories))
	copy(out, m.directories)
	return out, nil
}

func (m *Memory) GetPermissionSet(ctx context.Context, name string) (string, *PermissionSetDetails, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.byName[name]
	if !ok {
		return "", nil, fmt.Errorf("permission set %q: %w", name, permsync_errors.ErrPermissionSetNotFound)
	}
	details := rec.details
	return rec.handle, &details, nil
}

// Handle resolves a permission set name to its handle. Dev-mode helper, not
// part of the Client interface.
func (m *Memory) Handle(name string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.byName[name]
	if !ok {
		return "", false
	}
	return rec.handle, true
}

func (m *Memory) CreatePermissionSet(ctx context.Context, in CreateInput) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byName[in.Name]; ok {
		return "", fmt.Errorf("permission set %q already exists: %w", in.Name, permsync_errors.ErrProviderOperation)
	}
	rec := m.create(PermissionSetDetails{
		Name:            in.Name,
		Description:     in.Description,
		SessionDuration: in.SessionDuration,
		RelayState:      in.RelayState,
		Tags:            in.Tags,
	})
	return rec.handle, nil
}

func (m *Memory) UpdatePermissionSet(ctx context.Context, handle string, in UpdateInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, err := m.record(handle)
	if err != nil {
		return err
	}
	if in.Description != nil {
		rec.details.Description = *in.Description
	}
	if in.SessionDuration != nil {
		rec.details.SessionDuration = *in.SessionDuration
	}
	if in.RelayState != nil {
		rec.details.RelayState = *in.RelayState
	}
	return nil
}

func (m *Memory) DeletePermissionSet(ctx context.Context, handle string, current *PermissionSetDetails, assignments []model.ResolvedAssignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, err := m.record(handle)
	if err != nil {
		return err
	}
	delete(m.byName, rec.details.Name)
	delete(m.byHandle, handle)
	return nil
}

func (m *Memory) AttachManagedPolicy(ctx context.Context, handle, arn string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, err := m.record(handle)
	if err != nil {
		return err
	}
	for _, existing := range rec.details.ManagedPolicyARNs {
		if existing == arn {
			return nil
		}
	}
	rec.details.ManagedPolicyARNs = append(rec.details.ManagedPolicyARNs, arn)
	return nil
}

func (m *Memory) DetachManagedPolicy(ctx context.Context, handle, arn string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, err := m.record(handle)
	if err != nil {
		return err
	}
	arns := rec.details.ManagedPolicyARNs[:0]
	for _, existing := range rec.details.ManagedPolicyARNs {
		if existing != arn {
			arns = append(arns, existing)
		}
	}
	rec.details.ManagedPolicyARNs = arns
	return nil
}

func (m *Memory) AttachCustomerManagedPolicy(ctx context.Context, handle string, ref PolicyReference) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, err := m.record(handle)
	if err != nil {
		return err
	}
	for _, existing := range rec.details.CustomerManagedPolicyReferences {
		if existing == ref {
			return nil
		}
	}
	rec.details.CustomerManagedPolicyReferences = append(rec.details.CustomerManagedPolicyReferences, ref)
	return nil
}

func (m *Memory) DetachCustomerManagedPolicy(ctx context.Context, handle string, ref PolicyReference) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, err := m.record(handle)
	if err != nil {
		return err
	}
	refs := rec.details.CustomerManagedPolicyReferences[:0]
	for _, existing := range rec.details.CustomerManagedPolicyReferences {
		if existing != ref {
			refs = append(refs, existing)
		}
	}
	rec.details.CustomerManagedPolicyReferences = refs
	return nil
}

func (m *Memory) PutInlinePolicy(ctx context.Context, handle, document string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, err := m.record(handle)
	if err != nil {
		return err
	}
	rec.details.InlinePolicy = document
	return nil
}

func (m *Memory) DeleteInlinePolicy(ctx context.Context, handle string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, err := m.record(handle)
	if err != nil {
		return err
	}
	rec.details.InlinePolicy = ""
	return nil
}

func (m *Memory) PutPermissionsBoundary(ctx context.Context, handle string, boundary Boundary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, err := m.record(handle)
	if err != nil {
		return err
	}
	rec.details.PermissionsBoundary = &boundary
	return nil
}

func (m *Memory) DeletePermissionsBoundary(ctx context.Context, handle string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, err := m.record(handle)
	if err != nil {
		return err
	}
	rec.details.PermissionsBoundary = nil
	return nil
}

func (m *Memory) TagPermissionSet(ctx context.Context, handle string, tags []KV) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, err := m.record(handle)
	if err != nil {
		return err
	}
	for _, tag := range tags {
		replaced := false
		for i, existing := range rec.details.Tags {
			if existing.Key == tag.Key {
				rec.details.Tags[i] = tag
				replaced = true
				break
			}
		}
		if !replaced {
			rec.details.Tags = append(rec.details.Tags, tag)
		}
	}
	return nil
}

func (m *Memory) UntagPermissionSet(ctx context.Context, handle string, keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, err := m.record(handle)
	if err != nil {
		return err
	}
	remove := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		remove[k] = struct{}{}
	}
	tags := rec.details.Tags[:0]
	for _, tag := range rec.details.Tags {
		if _, gone := remove[tag.Key]; !gone {
			tags = append(tags, tag)
		}
	}
	rec.details.Tags = tags
	return nil
}

func (m *Memory) CreateAssignment(ctx context.Context, handle string, a model.ResolvedAssignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, err := m.record(handle)
	if err != nil {
		return err
	}
	rec.assignments[a.Key()] = a
	return nil
}

func (m *Memory) DeleteAssignment(ctx context.Context, handle string, a model.ResolvedAssignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, err := m.record(handle)
	if err != nil {
		return err
	}
	delete(rec.assignments, a.Key())
	return nil
}

func (m *Memory) ListAssignments(ctx context.Context, handle string) ([]model.ResolvedAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, err := m.record(handle)
	if err != nil {
		return nil, err
	}
	out := make([]model.ResolvedAssignment, 0, len(rec.assignments))
	for _, a := range rec.assignments {
		out = append(out, a)
	}
	return out, nil
}

func (m *Memory) Provision(ctx context.Context, handle string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.record(handle); err != nil {
		return "", err
	}
	m.seq++
	return fmt.Sprintf("req-%06d", m.seq), nil
}

func (m *Memory) ProvisionStatus(ctx context.Context, requestID string) (ProvisionStatus, error) {
	// In-memory mutations are synchronous; provisioning completes instantly.
	return ProvisionSucceeded, nil
}

var (
	_ Client          = (*Memory)(nil)
	_ DirectorySource = (*Memory)(nil)
)
