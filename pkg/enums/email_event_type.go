package enums

import "fmt"

// EmailEventType names the email events flowing through the outbox.
type EmailEventType string

const (
	EmailEventMagicLink           EmailEventType = "email.magic_link"
	EmailEventVerification        EmailEventType = "email.verification"
	EmailEventSubscriptionCreated EmailEventType = "email.subscription_created"
	EmailEventCampaignBatch       EmailEventType = "email.campaign_batch"
	EmailEventPaymentInstructions EmailEventType = "email.payment_instructions"
)

var validEmailEventTypes = []EmailEventType{
	EmailEventMagicLink,
	EmailEventVerification,
	EmailEventSubscriptionCreated,
	EmailEventCampaignBatch,
	EmailEventPaymentInstructions,
}

// String implements fmt.Stringer.
func (e EmailEventType) String() string {
	return string(e)
}

// IsValid reports whether the value is a known EmailEventType.
func (e EmailEventType) IsValid() bool {
	for _, candidate := range validEmailEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseEmailEventType converts raw input into an EmailEventType.
func ParseEmailEventType(value string) (EmailEventType, error) {
	for _, candidate := range validEmailEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid email event type %q", value)
}
