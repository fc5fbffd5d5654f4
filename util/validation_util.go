// api/util/validation_util.go

package util

import (
	"fmt"
	"strings"

	"github.com/permsync/permsync/api/model"
)

type ValidationUtil struct{}

func NewValidationUtil() *ValidationUtil {
	return &ValidationUtil{}
}

func (v *ValidationUtil) ValidateTemplate(template model.Template) error {
	if template.Properties.Name == "" {
		return fmt.Errorf("permission set name cannot be empty")
	}
	if len(template.Properties.Name) > 32 {
		return fmt.Errorf("permission set name cannot exceed 32 characters")
	}
	if template.TemplateType != "" && template.TemplateType != model.PermissionSetTemplateType {
		return fmt.Errorf("template type must be %q", model.PermissionSetTemplateType)
	}
	for _, d := range template.Properties.Descriptions {
		if len(d.Text) < 1 || len(d.Text) > 700 {
			return fmt.Errorf("description must be between 1 and 700 characters")
		}
	}
	for _, s := range template.Properties.SessionDurations {
		if !strings.HasPrefix(s.Duration, "P") {
			return fmt.Errorf("session duration must be an ISO 8601 duration")
		}
	}
	for i, rule := range template.AccessRules {
		if len(rule.Users) == 0 && len(rule.Groups) == 0 {
			return fmt.Errorf("access rule %d must name at least one user or group", i)
		}
	}
	for _, tag := range template.Properties.Tags {
		if tag.Key == "" {
			return fmt.Errorf("tag key cannot be empty")
		}
	}
	if b := template.Properties.PermissionsBoundary; b != nil {
		if (b.PolicyARN == "") == (b.CustomerManagedPolicyReference == nil) {
			return fmt.Errorf("permissions boundary must set exactly one of policy_arn or customer_managed_policy_reference")
		}
	}
	for _, ref := range template.Properties.CustomerManagedPolicyReferences {
		if ref.Name == "" {
			return fmt.Errorf("customer managed policy reference name cannot be empty")
		}
	}
	for _, mp := range template.Properties.ManagedPolicies {
		if mp.ARN == "" {
			return fmt.Errorf("managed policy arn cannot be empty")
		}
	}
	// Add more validation rules as needed
	return nil
}

func (v *ValidationUtil) ValidateAccountDirectory(d model.AccountDirectory) error {
	if d.AccountID == "" {
		return fmt.Errorf("account ID cannot be empty")
	}
	if d.OrgID == "" {
		return fmt.Errorf("org ID cannot be empty")
	}
	// Add more validation rules as needed
	return nil
}
