package enums

import "fmt"

// TemplateCategory groups email templates by purpose.
type TemplateCategory string

const (
	TemplateCategoryAuthentication TemplateCategory = "authentication"
	TemplateCategoryOnboarding     TemplateCategory = "onboarding"
	TemplateCategoryMarketing      TemplateCategory = "marketing"
	TemplateCategoryTransactional  TemplateCategory = "transactional"
	TemplateCategorySupport        TemplateCategory = "support"
	TemplateCategorySecurity       TemplateCategory = "security"
	TemplateCategoryFeedback       TemplateCategory = "feedback"
	TemplateCategoryReport         TemplateCategory = "report"
	TemplateCategoryInvitation     TemplateCategory = "invitation"
	TemplateCategoryReminder       TemplateCategory = "reminder"
	TemplateCategoryAlert          TemplateCategory = "alert"
	TemplateCategoryCompliance     TemplateCategory = "compliance"
	TemplateCategoryEducational    TemplateCategory = "educational"
)

var validTemplateCategories = []TemplateCategory{
	TemplateCategoryAuthentication,
	TemplateCategoryOnboarding,
	TemplateCategoryMarketing,
	TemplateCategoryTransactional,
	TemplateCategorySupport,
	TemplateCategorySecurity,
	TemplateCategoryFeedback,
	TemplateCategoryReport,
	TemplateCategoryInvitation,
	TemplateCategoryReminder,
	TemplateCategoryAlert,
	TemplateCategoryCompliance,
	TemplateCategoryEducational,
}

// String implements fmt.Stringer.
func (c TemplateCategory) String() string {
	return string(c)
}

// IsValid reports whether the value is a known TemplateCategory.
func (c TemplateCategory) IsValid() bool {
	for _, candidate := range validTemplateCategories {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseTemplateCategory converts raw input into a TemplateCategory.
func ParseTemplateCategory(value string) (TemplateCategory, error) {
	for _, candidate := range validTemplateCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid template category %q", value)
}
