package enums

import "fmt"

// SubscriptionStatus tracks the lifecycle state of a subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusPendingPayment  SubscriptionStatus = "pending_payment"
	SubscriptionStatusPendingApproval SubscriptionStatus = "pending_approval"
	SubscriptionStatusActive          SubscriptionStatus = "active"
	SubscriptionStatusTrialing        SubscriptionStatus = "trialing"
	SubscriptionStatusInactive        SubscriptionStatus = "inactive"
	SubscriptionStatusSuspended       SubscriptionStatus = "suspended"
	SubscriptionStatusExpired         SubscriptionStatus = "expired"
	SubscriptionStatusPastDue         SubscriptionStatus = "past_due"
)

var validSubscriptionStatuses = []SubscriptionStatus{
	SubscriptionStatusPendingPayment,
	SubscriptionStatusPendingApproval,
	SubscriptionStatusActive,
	SubscriptionStatusTrialing,
	SubscriptionStatusInactive,
	SubscriptionStatusSuspended,
	SubscriptionStatusExpired,
	SubscriptionStatusPastDue,
}

// String implements fmt.Stringer.
func (s SubscriptionStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s SubscriptionStatus) IsValid() bool {
	for _, candidate := range validSubscriptionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSubscriptionStatus converts raw input into a SubscriptionStatus.
func ParseSubscriptionStatus(value string) (SubscriptionStatus, error) {
	for _, candidate := range validSubscriptionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid subscription status %q", value)
}
