package domain

import (
	"context"
	"errors"
	"time"

	invoicedomain "github.com/smallbiznis/opsdesk/internal/invoice/domain"
	leaddomain "github.com/smallbiznis/opsdesk/internal/lead/domain"
	workdomain "github.com/smallbiznis/opsdesk/internal/work/domain"
)

// UpcomingWork is a due-soon row on the staff dashboard.
type UpcomingWork struct {
	ID           string              `json:"id"`
	Title        string              `json:"title"`
	CustomerName string              `json:"customer_name"`
	DueDate      time.Time           `json:"due_date"`
	Priority     workdomain.Priority `json:"priority"`
	Status       workdomain.Status   `json:"status"`
}

// Overview is the staff dashboard payload: the day-to-day numbers a
// back office checks first.
type Overview struct {
	GeneratedAt    time.Time                        `json:"generated_at"`
	WorksByStatus  map[workdomain.Status]int        `json:"works_by_status"`
	OverdueTotal   int                              `json:"overdue_total"`
	OverdueByBand  map[string]int                   `json:"overdue_by_band"`
	LeadPipeline   leaddomain.PipelineCounts        `json:"lead_pipeline"`
	Receivables    invoicedomain.ReceivablesSummary `json:"receivables"`
	UpcomingWorks  []UpcomingWork                   `json:"upcoming_works"`
	ActiveCustomer int64                            `json:"active_customers"`
}

type Service interface {
	// Overview assembles the dashboard for the organization in ctx.
	Overview(ctx context.Context) (Overview, error)
}

var ErrInvalidOrganization = errors.New("invalid_organization")
