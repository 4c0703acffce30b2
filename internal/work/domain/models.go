package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/opsdesk/internal/catalog/domain"
	customerdomain "github.com/smallbiznis/opsdesk/internal/customer/domain"
	staffdomain "github.com/smallbiznis/opsdesk/internal/staff/domain"
	"gorm.io/datatypes"
)

// Status is shared by works, periods, and tasks.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// ActiveStatuses are the statuses that keep an item on the overdue feed.
func ActiveStatuses() []Status {
	return []Status{StatusPending, StatusInProgress}
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

type Frequency string

const (
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyYearly    Frequency = "yearly"
)

// Work is a top-level schedulable job for a customer, optionally recurring.
// OverdueReason and OverdueMarkedAt are written together: a non-empty reason
// implies a timestamp, clearing one clears both.
type Work struct {
	ID              snowflake.ID                `gorm:"primaryKey" json:"id"`
	OrgID           snowflake.ID                `gorm:"not null;index" json:"organization_id"`
	Title           string                      `gorm:"not null" json:"title"`
	CustomerID      snowflake.ID                `gorm:"not null;index" json:"customer_id"`
	ServiceID       snowflake.ID                `gorm:"not null;index" json:"service_id"`
	AssignedTo      *snowflake.ID               `gorm:"index" json:"assigned_to,omitempty"`
	Status          Status                      `gorm:"not null;default:pending;index" json:"status"`
	Priority        Priority                    `gorm:"not null;default:medium" json:"priority"`
	DueDate         *time.Time                  `json:"due_date,omitempty"`
	Recurring       bool                        `gorm:"not null;default:false" json:"recurring"`
	Frequency       Frequency                   `json:"frequency,omitempty"`
	TaskTemplates   datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"task_templates,omitempty"`
	OverdueReason   *string                     `json:"overdue_reason,omitempty"`
	OverdueMarkedAt *time.Time                  `json:"overdue_marked_at,omitempty"`
	CompletedAt     *time.Time                  `json:"completed_at,omitempty"`
	Notes           string                      `json:"notes,omitempty"`
	CreatedAt       time.Time                   `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time                   `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	Customer *customerdomain.Customer       `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	Service  *catalogdomain.ServiceOffering `gorm:"foreignKey:ServiceID" json:"service,omitempty"`
	Assignee *staffdomain.StaffMember       `gorm:"foreignKey:AssignedTo" json:"assignee,omitempty"`
}

// RecurringPeriod is one cyclical instance of a recurring work, e.g. "Mar 2026".
type RecurringPeriod struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID `gorm:"not null;index" json:"organization_id"`
	WorkID      snowflake.ID `gorm:"not null;uniqueIndex:ux_recurring_periods_work_name,priority:1" json:"work_id"`
	Name        string       `gorm:"not null;uniqueIndex:ux_recurring_periods_work_name,priority:2" json:"name"`
	PeriodStart time.Time    `gorm:"not null" json:"period_start"`
	PeriodEnd   time.Time    `gorm:"not null" json:"period_end"`
	Status      Status       `gorm:"not null;default:pending" json:"status"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	Work *Work `gorm:"foreignKey:WorkID" json:"work,omitempty"`
}

// PeriodTask is a task scoped to one recurring period.
type PeriodTask struct {
	ID          snowflake.ID  `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID  `gorm:"not null;index" json:"organization_id"`
	PeriodID    snowflake.ID  `gorm:"not null;index" json:"period_id"`
	WorkID      snowflake.ID  `gorm:"not null;index" json:"work_id"`
	Title       string        `gorm:"not null" json:"title"`
	Status      Status        `gorm:"not null;default:pending;index" json:"status"`
	Priority    Priority      `gorm:"not null;default:medium" json:"priority"`
	DueDate     *time.Time    `json:"due_date,omitempty"`
	AssignedTo  *snowflake.ID `gorm:"index" json:"assigned_to,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	CreatedAt   time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	Period   *RecurringPeriod         `gorm:"foreignKey:PeriodID" json:"period,omitempty"`
	Work     *Work                    `gorm:"foreignKey:WorkID" json:"work,omitempty"`
	Assignee *staffdomain.StaffMember `gorm:"foreignKey:AssignedTo" json:"assignee,omitempty"`
}

// WorkTask is a task attached directly to a non-recurring work. Tasks of
// recurring works live under periods instead; the two sets never overlap.
type WorkTask struct {
	ID          snowflake.ID  `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID  `gorm:"not null;index" json:"organization_id"`
	WorkID      snowflake.ID  `gorm:"not null;index" json:"work_id"`
	Title       string        `gorm:"not null" json:"title"`
	Status      Status        `gorm:"not null;default:pending;index" json:"status"`
	Priority    Priority      `gorm:"not null;default:medium" json:"priority"`
	DueDate     *time.Time    `json:"due_date,omitempty"`
	AssignedTo  *snowflake.ID `gorm:"index" json:"assigned_to,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	CreatedAt   time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	Work     *Work                    `gorm:"foreignKey:WorkID" json:"work,omitempty"`
	Assignee *staffdomain.StaffMember `gorm:"foreignKey:AssignedTo" json:"assignee,omitempty"`
}
