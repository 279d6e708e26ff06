package workflow

import (
	"fmt"

	"github.com/subtrackhq/subtrack-backend/pkg/db/models"
	"github.com/subtrackhq/subtrack-backend/pkg/enums"
)

// Confirmation is the user-facing summary returned after a signup.
type Confirmation struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Instructions []string `json:"instructions,omitempty"`
	NextSteps    []string `json:"nextSteps,omitempty"`
}

// BuildConfirmation renders the confirmation content for the workflow. The
// copy varies by signup path and payment method.
func BuildConfirmation(wf Workflow, plan models.Plan) Confirmation {
	price := plan.Price.StringFixed(2)

	switch wf.Type {
	case TypeTrial:
		paymentInstruction := "Add payment method before trial expires"
		if wf.RequiresPayment {
			charge := "required"
			if wf.PaymentMethod == enums.PaymentMethodCard {
				charge = "automatically charged"
			}
			paymentInstruction = fmt.Sprintf("Payment of $%s will be %s at trial end", price, charge)
		}
		trialStep := "Ensure payment method is valid"
		if wf.PaymentMethod == enums.PaymentMethodBankTransfer {
			trialStep = "Complete bank transfer before trial ends"
		}
		return Confirmation{
			Title:       "Trial Subscription Started",
			Description: fmt.Sprintf("Your %s trial is now active for %d days.", plan.Name, wf.TrialDays),
			Instructions: []string{
				fmt.Sprintf("Trial period: %d days", wf.TrialDays),
				fmt.Sprintf("Full access to all %s features", plan.Name),
				paymentInstruction,
			},
			NextSteps: []string{
				"Explore all available features",
				"Set up your account preferences",
				trialStep,
			},
		}

	case TypeImmediateCard:
		return Confirmation{
			Title:       "Subscription Confirmed",
			Description: fmt.Sprintf("Your %s subscription is now active.", plan.Name),
			Instructions: []string{
				fmt.Sprintf("Payment of $%s processed successfully", price),
				"Full access to all features",
				"Auto-renewal enabled",
			},
			NextSteps: []string{
				"Start using your subscription",
				"Check your email for receipt",
				"Explore premium features",
			},
		}

	case TypeManualPayment:
		return Confirmation{
			Title:       "Subscription Pending Payment",
			Description: fmt.Sprintf("Your %s subscription is awaiting payment confirmation.", plan.Name),
			Instructions: []string{
				"Complete bank transfer payment",
				fmt.Sprintf("Amount: $%s %s", price, plan.Currency),
				"Include subscription ID in transfer reference",
			},
			NextSteps: []string{
				"Make the bank transfer payment",
				"Email payment confirmation",
				"Wait for admin approval",
			},
		}

	default:
		return Confirmation{
			Title:       "Subscription Created",
			Description: fmt.Sprintf("Your %s subscription has been created.", plan.Name),
			Instructions: []string{
				"Payment processing required",
				fmt.Sprintf("Amount: $%s %s", price, plan.Currency),
			},
			NextSteps: []string{
				"Complete payment process",
				"Check email for instructions",
			},
		}
	}
}
