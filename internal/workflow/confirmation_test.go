package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/subtrackhq/subtrack-backend/pkg/enums"
)

func TestConfirmationTrialCard(t *testing.T) {
	plan := testPlan(enums.BillingPeriodMonthly)
	wf := Classify(Input{
		HasTrialPeriod:  true,
		RequiresPayment: true,
		TrialDays:       14,
		PaymentMethod:   enums.PaymentMethodCard,
	})

	c := BuildConfirmation(wf, plan)

	assert.Equal(t, "Trial Subscription Started", c.Title)
	assert.Equal(t, "Your Pro trial is now active for 14 days.", c.Description)
	assert.Contains(t, c.Instructions, "Trial period: 14 days")
	assert.Contains(t, c.Instructions, "Payment of $29.99 will be automatically charged at trial end")
	assert.Contains(t, c.NextSteps, "Ensure payment method is valid")
}

func TestConfirmationTrialBankTransfer(t *testing.T) {
	plan := testPlan(enums.BillingPeriodMonthly)
	wf := Classify(Input{
		HasTrialPeriod:  true,
		RequiresPayment: true,
		TrialDays:       30,
		PaymentMethod:   enums.PaymentMethodBankTransfer,
	})

	c := BuildConfirmation(wf, plan)

	assert.Contains(t, c.Instructions, "Payment of $29.99 will be required at trial end")
	assert.Contains(t, c.NextSteps, "Complete bank transfer before trial ends")
}

func TestConfirmationTrialWithoutPayment(t *testing.T) {
	plan := testPlan(enums.BillingPeriodMonthly)
	wf := Classify(Input{HasTrialPeriod: true, TrialDays: 7, PaymentMethod: enums.PaymentMethodCard})

	c := BuildConfirmation(wf, plan)

	assert.Contains(t, c.Instructions, "Add payment method before trial expires")
}

func TestConfirmationImmediateCard(t *testing.T) {
	plan := testPlan(enums.BillingPeriodMonthly)
	wf := Classify(Input{RequiresPayment: true, PaymentMethod: enums.PaymentMethodCard})

	c := BuildConfirmation(wf, plan)

	assert.Equal(t, "Subscription Confirmed", c.Title)
	assert.Equal(t, "Your Pro subscription is now active.", c.Description)
	assert.Contains(t, c.Instructions, "Payment of $29.99 processed successfully")
	assert.Contains(t, c.Instructions, "Auto-renewal enabled")
	assert.Contains(t, c.NextSteps, "Check your email for receipt")
}

func TestConfirmationManualPayment(t *testing.T) {
	plan := testPlan(enums.BillingPeriodMonthly)
	wf := Classify(Input{RequiresPayment: true, PaymentMethod: enums.PaymentMethodBankTransfer})

	c := BuildConfirmation(wf, plan)

	assert.Equal(t, "Subscription Pending Payment", c.Title)
	assert.Contains(t, c.Instructions, "Amount: $29.99 USD")
	assert.Contains(t, c.Instructions, "Include subscription ID in transfer reference")
	assert.Contains(t, c.NextSteps, "Wait for admin approval")
}

func TestConfirmationPendingFallback(t *testing.T) {
	plan := testPlan(enums.BillingPeriodMonthly)
	wf := Classify(Input{PaymentMethod: enums.PaymentMethodCheque})

	c := BuildConfirmation(wf, plan)

	assert.Equal(t, "Subscription Created", c.Title)
	assert.Equal(t, "Your Pro subscription has been created.", c.Description)
	assert.Contains(t, c.Instructions, "Payment processing required")
	assert.Contains(t, c.NextSteps, "Complete payment process")
}
