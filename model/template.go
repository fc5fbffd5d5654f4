// api/model/template.go
package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

const PermissionSetTemplateType = "PermSync::SSO::PermissionSet"

// ResourceTypePermissionSet is the resource type recorded on change details
// and audit documents.
const ResourceTypePermissionSet = "sso:permission_set"

// AccessRule grants the listed users and groups access on every account its
// scope matches. Rules are evaluated in sorted order, most specific first.
type AccessRule struct {
	AccessScope `yaml:",inline"`
	ExpiryModel `yaml:",inline"`
	Users       []string `json:"users,omitempty" yaml:"users,omitempty"`
	Groups      []string `json:"groups,omitempty" yaml:"groups,omitempty"`
}

// Tag is a scoped key/value pair applied to the permission set.
type Tag struct {
	AccessScope `yaml:",inline"`
	ExpiryModel `yaml:",inline"`
	Key         string `json:"key" yaml:"key"`
	Value       string `json:"value" yaml:"value"`
}

// ManagedPolicyRef references a provider-managed policy by ARN.
type ManagedPolicyRef struct {
	ExpiryModel `yaml:",inline"`
	ARN         string `json:"arn" yaml:"arn"`
}

// CustomerManagedPolicyRef references a customer-managed policy by path+name.
type CustomerManagedPolicyRef struct {
	ExpiryModel `yaml:",inline"`
	Path        string `json:"path" yaml:"path"`
	Name        string `json:"name" yaml:"name"`
}

// ResourceID is the stable identity used for sorting and set comparisons.
func (r CustomerManagedPolicyRef) ResourceID() string {
	return r.Path + r.Name
}

// PermissionBoundary caps the permissions the set can grant. Exactly one of
// PolicyARN or CustomerManagedPolicyReference is expected.
type PermissionBoundary struct {
	ExpiryModel                    `yaml:",inline"`
	PolicyARN                      string                    `json:"policy_arn,omitempty" yaml:"policy_arn,omitempty"`
	CustomerManagedPolicyReference *CustomerManagedPolicyRef `json:"customer_managed_policy_reference,omitempty" yaml:"customer_managed_policy_reference,omitempty"`
}

// InlinePolicy carries the inline policy document as raw JSON.
type InlinePolicy struct {
	ExpiryModel `yaml:",inline"`
	Document    string `json:"document" yaml:"document"`
}

// DescriptionVariant is one scoped value of the description attribute.
// Configuration may legitimately vary per target account or org; before
// diffing, the variant list is reduced to the single best-matching entry for
// the account under reconciliation.
type DescriptionVariant struct {
	AccessScope `yaml:",inline"`
	ExpiryModel `yaml:",inline"`
	Text        string `json:"description" yaml:"description"`
}

// Descriptions is the scoped variant list for the description attribute. A
// plain YAML/JSON string decodes to a single catch-all variant.
type Descriptions []DescriptionVariant

func (d *Descriptions) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		var text string
		if err := value.Decode(&text); err != nil {
			return err
		}
		*d = Descriptions{{Text: text}}
		return nil
	}
	var variants []DescriptionVariant
	if err := value.Decode(&variants); err != nil {
		return err
	}
	*d = variants
	return nil
}

func (d *Descriptions) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*d = Descriptions{{Text: text}}
		return nil
	}
	var variants []DescriptionVariant
	if err := json.Unmarshal(data, &variants); err != nil {
		return err
	}
	*d = variants
	return nil
}

// SessionDurationVariant is one scoped value of the session duration
// attribute (ISO-8601 duration, e.g. "PT2H").
type SessionDurationVariant struct {
	AccessScope `yaml:",inline"`
	Duration    string `json:"session_duration" yaml:"session_duration"`
}

// SessionDurations is the scoped variant list for session duration. A plain
// string decodes to a single catch-all variant.
type SessionDurations []SessionDurationVariant

func (s *SessionDurations) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		var duration string
		if err := value.Decode(&duration); err != nil {
			return err
		}
		*s = SessionDurations{{Duration: duration}}
		return nil
	}
	var variants []SessionDurationVariant
	if err := value.Decode(&variants); err != nil {
		return err
	}
	*s = variants
	return nil
}

func (s *SessionDurations) UnmarshalJSON(data []byte) error {
	var duration string
	if err := json.Unmarshal(data, &duration); err == nil {
		*s = SessionDurations{{Duration: duration}}
		return nil
	}
	var variants []SessionDurationVariant
	if err := json.Unmarshal(data, &variants); err != nil {
		return err
	}
	*s = variants
	return nil
}

// DeletionVariant is one scoped value of the deleted flag.
type DeletionVariant struct {
	AccessScope `yaml:",inline"`
	Deleted     bool `json:"deleted" yaml:"deleted"`
}

// DeletionFlag is the scoped variant list for the deleted flag. A plain bool
// decodes to a single catch-all variant; the first applicable scoped value
// wins when resolving the flag for an account.
type DeletionFlag []DeletionVariant

func (f *DeletionFlag) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		var deleted bool
		if err := value.Decode(&deleted); err != nil {
			return err
		}
		*f = DeletionFlag{{Deleted: deleted}}
		return nil
	}
	var variants []DeletionVariant
	if err := value.Decode(&variants); err != nil {
		return err
	}
	*f = variants
	return nil
}

func (f *DeletionFlag) UnmarshalJSON(data []byte) error {
	var deleted bool
	if err := json.Unmarshal(data, &deleted); err == nil {
		*f = DeletionFlag{{Deleted: deleted}}
		return nil
	}
	var variants []DeletionVariant
	if err := json.Unmarshal(data, &variants); err != nil {
		return err
	}
	*f = variants
	return nil
}

// Properties is the permission set as the template author wrote it.
type Properties struct {
	Name                            string                     `json:"name" yaml:"name"`
	Descriptions                    Descriptions               `json:"description,omitempty" yaml:"description,omitempty"`
	RelayState                      string                     `json:"relay_state,omitempty" yaml:"relay_state,omitempty"`
	SessionDurations                SessionDurations           `json:"session_duration,omitempty" yaml:"session_duration,omitempty"`
	PermissionsBoundary             *PermissionBoundary        `json:"permissions_boundary,omitempty" yaml:"permissions_boundary,omitempty"`
	InlinePolicy                    *InlinePolicy              `json:"inline_policy,omitempty" yaml:"inline_policy,omitempty"`
	CustomerManagedPolicyReferences []CustomerManagedPolicyRef `json:"customer_managed_policy_references,omitempty" yaml:"customer_managed_policy_references,omitempty"`
	ManagedPolicies                 []ManagedPolicyRef         `json:"managed_policies,omitempty" yaml:"managed_policies,omitempty"`
	Tags                            []Tag                      `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// Template is the desired state of one permission set and its assignments.
// Immutable input to a reconciliation pass, except for the deletion flag and
// expiry purge the pass applies to its own in-memory copy.
type Template struct {
	TemplateType string       `json:"template_type" yaml:"template_type"`
	Owner        string       `json:"owner,omitempty" yaml:"owner,omitempty"`
	AccessScope  `yaml:",inline"`
	ExpiresAt    *time.Time   `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
	Deleted      DeletionFlag `json:"deleted,omitempty" yaml:"deleted,omitempty"`
	Properties   Properties   `json:"properties" yaml:"properties"`
	AccessRules  []AccessRule `json:"access_rules,omitempty" yaml:"access_rules,omitempty"`

	// FilePath is set by the template store; not part of the document body.
	FilePath string `json:"file_path,omitempty" yaml:"-"`
}

// ResourceID identifies the template by the permission set name.
func (t *Template) ResourceID() string {
	return t.Properties.Name
}

// ResourceType implements the resource taxonomy used on change details.
func (t *Template) ResourceType() string {
	return ResourceTypePermissionSet
}

// Expired reports whether the template itself has an elapsed expiry.
func (t *Template) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && !t.ExpiresAt.After(now)
}

// DeletedForAccount resolves the deleted flag for one account: the first
// variant whose scope matches wins, default false. The applies predicate is
// supplied by the caller so the model stays free of matching logic.
func (t *Template) DeletedForAccount(applies func(AccessScope) bool) bool {
	for _, v := range t.Deleted {
		if applies(v.AccessScope) {
			return v.Deleted
		}
	}
	return false
}

// MarkDeleted sets an unconditional deleted flag, replacing any scoped
// variants. Used after an executed delete so the write-back records it.
func (t *Template) MarkDeleted() {
	t.Deleted = DeletionFlag{{Deleted: true}}
}

// IsDeleted reports whether the template carries an unconditional deleted
// flag (no scoped variant disagreeing).
func (t *Template) IsDeleted() bool {
	if len(t.Deleted) == 0 {
		return false
	}
	for _, v := range t.Deleted {
		if !v.Deleted {
			return false
		}
	}
	return true
}

// Normalize sorts every multi-valued attribute into its deterministic order
// so evaluation, diffs, and serialized output are reproducible across runs.
func (t *Template) Normalize() {
	if t.TemplateType == "" {
		t.TemplateType = PermissionSetTemplateType
	}
	sort.SliceStable(t.AccessRules, func(i, j int) bool {
		return t.AccessRules[i].SortWeight() < t.AccessRules[j].SortWeight()
	})
	sort.SliceStable(t.Properties.Descriptions, func(i, j int) bool {
		return t.Properties.Descriptions[i].SortWeight() < t.Properties.Descriptions[j].SortWeight()
	})
	sort.SliceStable(t.Properties.SessionDurations, func(i, j int) bool {
		return t.Properties.SessionDurations[i].SortWeight() < t.Properties.SessionDurations[j].SortWeight()
	})
	sort.SliceStable(t.Properties.ManagedPolicies, func(i, j int) bool {
		return t.Properties.ManagedPolicies[i].ARN < t.Properties.ManagedPolicies[j].ARN
	})
	sort.SliceStable(t.Properties.CustomerManagedPolicyReferences, func(i, j int) bool {
		return t.Properties.CustomerManagedPolicyReferences[i].ResourceID() < t.Properties.CustomerManagedPolicyReferences[j].ResourceID()
	})
	sort.SliceStable(t.Properties.Tags, func(i, j int) bool {
		ti, tj := t.Properties.Tags[i], t.Properties.Tags[j]
		ki := fmt.Sprintf("%s!%d", ti.Key, ti.SortWeight())
		kj := fmt.Sprintf("%s!%d", tj.Key, tj.SortWeight())
		return ki < kj
	})
}

// PurgeExpired drops every expired sub-resource from the in-memory template
// copy before reconciliation. An expired template marks itself deleted. This
// never touches the network; the file store persists the result only after
// an executed pass.
func (t *Template) PurgeExpired(now time.Time) {
	if t.Expired(now) {
		t.MarkDeleted()
	}

	rules := t.AccessRules[:0]
	for _, r := range t.AccessRules {
		if !r.Expired(now) {
			rules = append(rules, r)
		}
	}
	t.AccessRules = rules

	managed := t.Properties.ManagedPolicies[:0]
	for _, m := range t.Properties.ManagedPolicies {
		if !m.Expired(now) {
			managed = append(managed, m)
		}
	}
	t.Properties.ManagedPolicies = managed

	refs := t.Properties.CustomerManagedPolicyReferences[:0]
	for _, r := range t.Properties.CustomerManagedPolicyReferences {
		if !r.Expired(now) {
			refs = append(refs, r)
		}
	}
	t.Properties.CustomerManagedPolicyReferences = refs

	tags := t.Properties.Tags[:0]
	for _, tag := range t.Properties.Tags {
		if !tag.Expired(now) {
			tags = append(tags, tag)
		}
	}
	t.Properties.Tags = tags

	descs := t.Properties.Descriptions[:0]
	for _, d := range t.Properties.Descriptions {
		if !d.Expired(now) {
			descs = append(descs, d)
		}
	}
	t.Properties.Descriptions = descs

	if t.Properties.InlinePolicy != nil && t.Properties.InlinePolicy.Expired(now) {
		t.Properties.InlinePolicy = nil
	}
	if t.Properties.PermissionsBoundary != nil && t.Properties.PermissionsBoundary.Expired(now) {
		t.Properties.PermissionsBoundary = nil
	}
}

// Clone returns a deep copy safe for per-pass mutation (expiry purge,
// deletion marking) without touching the stored template.
func (t *Template) Clone() *Template {
	data, err := json.Marshal(t)
	if err != nil {
		// Template bodies are plain data; marshal cannot fail on them.
		panic(fmt.Sprintf("template clone: %v", err))
	}
	var out Template
	if err := json.Unmarshal(data, &out); err != nil {
		panic(fmt.Sprintf("template clone: %v", err))
	}
	out.FilePath = t.FilePath
	return &out
}
