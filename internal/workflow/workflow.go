// Package workflow derives the initial state of a new subscription from the
// chosen plan and payment method. It is pure: no storage, no clocks beyond the
// one injected into the Builder, so every rule is unit-testable in isolation.
package workflow

import (
	"github.com/subtrackhq/subtrack-backend/pkg/enums"
)

// Type names the signup path a subscription takes.
type Type string

const (
	TypeTrial         Type = "trial"
	TypeImmediateCard Type = "immediate_card"
	TypeManualPayment Type = "manual_payment"
	TypePending       Type = "pending"
)

// Input carries the classification parameters for one signup.
type Input struct {
	HasTrialPeriod  bool
	RequiresPayment bool
	PaymentMethod   enums.PaymentMethod
	// TrialDays is the resolved trial length: the request override when
	// present, otherwise the plan default.
	TrialDays int
}

// Workflow is the classification outcome driving record creation.
type Workflow struct {
	Type            Type
	InitialStatus   enums.SubscriptionStatus
	TrialDays       int
	RequiresPayment bool
	PaymentMethod   enums.PaymentMethod
}

// Classify resolves the signup path. The rules are ordered and first match
// wins: a trial beats an immediate card charge, which beats the bank transfer
// approval queue, and anything else waits for payment.
func Classify(in Input) Workflow {
	if in.HasTrialPeriod {
		return Workflow{
			Type:            TypeTrial,
			InitialStatus:   enums.SubscriptionStatusTrialing,
			TrialDays:       in.TrialDays,
			RequiresPayment: in.RequiresPayment,
			PaymentMethod:   in.PaymentMethod,
		}
	}

	if in.PaymentMethod == enums.PaymentMethodCard && in.RequiresPayment {
		return Workflow{
			Type:            TypeImmediateCard,
			InitialStatus:   enums.SubscriptionStatusActive,
			RequiresPayment: true,
			PaymentMethod:   in.PaymentMethod,
		}
	}

	if in.PaymentMethod == enums.PaymentMethodBankTransfer {
		return Workflow{
			Type:            TypeManualPayment,
			InitialStatus:   enums.SubscriptionStatusPendingApproval,
			RequiresPayment: true,
			PaymentMethod:   in.PaymentMethod,
		}
	}

	return Workflow{
		Type:            TypePending,
		InitialStatus:   enums.SubscriptionStatusPendingPayment,
		RequiresPayment: in.RequiresPayment,
		PaymentMethod:   in.PaymentMethod,
	}
}
