package domain

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/opsdesk/pkg/db/pagination"
)

type LineItemInput struct {
	ServiceID   string `json:"service_id,omitempty"`
	Description string `json:"description"`
	Quantity    int64  `json:"quantity"`
	UnitAmount  int64  `json:"unit_amount"`
}

type CreateInvoiceRequest struct {
	CustomerID string          `json:"customer_id"`
	WorkID     string          `json:"work_id,omitempty"`
	Currency   string          `json:"currency"`
	TaxAmount  int64           `json:"tax_amount"`
	DueAt      *time.Time      `json:"due_at,omitempty"`
	Notes      string          `json:"notes,omitempty"`
	Items      []LineItemInput `json:"items"`
}

type UpdateInvoiceRequest struct {
	ID        string          `json:"-"`
	TaxAmount int64           `json:"tax_amount"`
	DueAt     *time.Time      `json:"due_at,omitempty"`
	Notes     string          `json:"notes,omitempty"`
	Items     []LineItemInput `json:"items"`
}

type ListInvoiceRequest struct {
	Status     string `form:"status"`
	CustomerID string `form:"customer_id"`
	PageToken  string `form:"page_token"`
	PageSize   int32  `form:"page_size,default=50"`
}

type ListInvoiceResponse struct {
	pagination.PageInfo
	Invoices []Invoice `json:"invoices"`
}

type Service interface {
	Create(ctx context.Context, req CreateInvoiceRequest) (Invoice, error)

	// Update replaces the line items and mutable fields of a draft.
	// Invoices past draft are immutable apart from status transitions.
	Update(ctx context.Context, req UpdateInvoiceRequest) (Invoice, error)

	List(ctx context.Context, req ListInvoiceRequest) (ListInvoiceResponse, error)
	GetByID(ctx context.Context, id string) (Invoice, error)

	// MarkSent issues a draft: assigns IssuedAt and moves it to sent.
	MarkSent(ctx context.Context, id string) (Invoice, error)

	// MarkPaid settles a sent invoice and stamps PaidAt.
	MarkPaid(ctx context.Context, id string) (Invoice, error)

	// Cancel voids a draft or sent invoice.
	Cancel(ctx context.Context, id string) (Invoice, error)

	Receivables(ctx context.Context) (ReceivablesSummary, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidCustomer     = errors.New("invalid_customer")
	ErrInvalidCurrency     = errors.New("invalid_currency")
	ErrInvalidLineItem     = errors.New("invalid_line_item")
	ErrNoLineItems         = errors.New("no_line_items")
	ErrNotFound            = errors.New("not_found")
	ErrNotDraft            = errors.New("invoice_not_draft")
	ErrInvalidTransition   = errors.New("invalid_status_transition")
)
