// Package domain contains persistence models for invoicing.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	customerdomain "github.com/smallbiznis/opsdesk/internal/customer/domain"
	"gorm.io/datatypes"
)

// Status represents invoice lifecycle states.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSent      Status = "sent"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
)

func (s Status) Terminal() bool {
	return s == StatusPaid || s == StatusCancelled
}

// Invoice is a bill issued to a customer, optionally tied to the work
// it invoices. All amounts are integer minor units in Currency.
type Invoice struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	OrgID      snowflake.ID      `gorm:"not null;index;uniqueIndex:ux_invoices_org_number,priority:1" json:"org_id"`
	Number     string            `gorm:"not null;uniqueIndex:ux_invoices_org_number,priority:2" json:"number"`
	CustomerID snowflake.ID      `gorm:"not null;index" json:"customer_id"`
	WorkID     *snowflake.ID     `gorm:"index" json:"work_id,omitempty"`
	Status     Status            `gorm:"type:text;not null;default:'draft';index" json:"status"`
	Currency   string            `gorm:"type:text;not null" json:"currency"`
	Subtotal   int64             `gorm:"not null;default:0" json:"subtotal"`
	TaxAmount  int64             `gorm:"not null;default:0" json:"tax_amount"`
	Total      int64             `gorm:"not null;default:0" json:"total"`
	IssuedAt   *time.Time        `json:"issued_at,omitempty"`
	DueAt      *time.Time        `json:"due_at,omitempty"`
	PaidAt     *time.Time        `json:"paid_at,omitempty"`
	Notes      string            `gorm:"type:text" json:"notes,omitempty"`
	Metadata   datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata"`
	CreatedAt  time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	Customer *customerdomain.Customer `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	Items    []InvoiceItem            `gorm:"foreignKey:InvoiceID" json:"items,omitempty"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// InvoiceItem represents a line on an invoice. Amount is always
// Quantity times UnitAmount; the service recomputes it on write.
type InvoiceItem struct {
	ID          snowflake.ID  `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID  `gorm:"not null;index" json:"org_id"`
	InvoiceID   snowflake.ID  `gorm:"not null;index" json:"invoice_id"`
	ServiceID   *snowflake.ID `gorm:"index" json:"service_id,omitempty"`
	Description string        `gorm:"type:text;not null" json:"description"`
	Quantity    int64         `gorm:"not null" json:"quantity"`
	UnitAmount  int64         `gorm:"not null" json:"unit_amount"`
	Amount      int64         `gorm:"not null" json:"amount"`
	CreatedAt   time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (InvoiceItem) TableName() string { return "invoice_items" }

// ReceivablesSummary totals unpaid invoices for an organization.
// Overdue covers sent invoices past their due date.
type ReceivablesSummary struct {
	Currency         string `json:"currency"`
	OutstandingTotal int64  `json:"outstanding_total"`
	OutstandingCount int    `json:"outstanding_count"`
	OverdueTotal     int64  `json:"overdue_total"`
	OverdueCount     int    `json:"overdue_count"`
	DraftCount       int    `json:"draft_count"`
}
