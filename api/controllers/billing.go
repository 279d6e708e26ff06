package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/subtrackhq/subtrack-backend/api/responses"
	"github.com/subtrackhq/subtrack-backend/api/validators"
	billingsvc "github.com/subtrackhq/subtrack-backend/internal/billing"
	"github.com/subtrackhq/subtrack-backend/pkg/db/models"
	"github.com/subtrackhq/subtrack-backend/pkg/enums"
	pkgerrors "github.com/subtrackhq/subtrack-backend/pkg/errors"
	"github.com/subtrackhq/subtrack-backend/pkg/logger"
)

// BillingService describes the invoice surface used by the HTTP controllers.
type BillingService interface {
	GetInvoice(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	ListInvoices(ctx context.Context, params billingsvc.ListInvoicesParams) (*billingsvc.ListInvoicesResult, error)
	ListTransactions(ctx context.Context, invoiceID uuid.UUID) ([]models.Transaction, error)
	MarkInvoicePaid(ctx context.Context, tx *gorm.DB, invoiceID uuid.UUID, at time.Time) (*models.Invoice, error)
}

type invoiceListResponse struct {
	Invoices   []invoiceResponse `json:"invoices"`
	NextCursor string            `json:"next_cursor,omitempty"`
}

func invoiceListParams(r *http.Request) (billingsvc.ListInvoicesParams, error) {
	limit, err := parseLimitQuery(r)
	if err != nil {
		return billingsvc.ListInvoicesParams{}, err
	}
	params := billingsvc.ListInvoicesParams{
		Limit:  limit,
		Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, err := enums.ParseInvoiceStatus(raw)
		if err != nil {
			return billingsvc.ListInvoicesParams{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status")
		}
		params.Status = &status
	}
	return params, nil
}

func invoicesToListResponse(result *billingsvc.ListInvoicesResult) invoiceListResponse {
	resp := invoiceListResponse{
		Invoices:   make([]invoiceResponse, 0, len(result.Invoices)),
		NextCursor: result.NextCursor,
	}
	for i := range result.Invoices {
		resp.Invoices = append(resp.Invoices, invoiceToResponse(&result.Invoices[i]))
	}
	return resp
}

// InvoicesListMine returns the caller's invoices, newest first.
func InvoicesListMine(svc BillingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		userID, err := actorFromContext(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		params, err := invoiceListParams(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		params.UserID = &userID

		result, err := svc.ListInvoices(ctx, params)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, invoicesToListResponse(result))
	}
}

// InvoiceTransactionsMine lists payment attempts for one of the caller's
// invoices.
func InvoiceTransactionsMine(svc BillingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		userID, err := actorFromContext(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		invoiceID, err := parseIDParam(r, "invoiceId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		invoice, err := svc.GetInvoice(ctx, invoiceID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if invoice.UserID != userID {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "Invoice not found"))
			return
		}

		txns, err := svc.ListTransactions(ctx, invoiceID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, transactionsToResponse(txns))
	}
}

func AdminInvoicesList(svc BillingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		params, err := invoiceListParams(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("user_id")); raw != "" {
			userID, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id"))
				return
			}
			params.UserID = &userID
		}

		result, err := svc.ListInvoices(ctx, params)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, invoicesToListResponse(result))
	}
}

func AdminInvoiceTransactions(svc BillingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		invoiceID, err := parseIDParam(r, "invoiceId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		txns, err := svc.ListTransactions(ctx, invoiceID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, transactionsToResponse(txns))
	}
}

// AdminInvoiceMarkPaid settles an invoice after a manual payment arrives.
func AdminInvoiceMarkPaid(svc BillingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		invoiceID, err := parseIDParam(r, "invoiceId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		invoice, err := svc.MarkInvoicePaid(ctx, nil, invoiceID, time.Now().UTC())
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, invoiceToResponse(invoice))
	}
}

func transactionsToResponse(txns []models.Transaction) map[string]any {
	out := make([]transactionResponse, 0, len(txns))
	for i := range txns {
		out = append(out, transactionToResponse(&txns[i]))
	}
	return map[string]any{"transactions": out}
}

func parseLimitQuery(r *http.Request) (int, error) {
	return validators.ParseQueryInt(r, "limit", 0, 1, 100)
}
