package domain

import (
	"context"
	"errors"
	"time"
)

type CreateWorkRequest struct {
	Title         string
	CustomerID    string
	ServiceID     string
	AssignedTo    string
	Priority      string
	DueDate       *time.Time
	Recurring     bool
	Frequency     string
	TaskTemplates []string
	Notes         string
}

type UpdateWorkRequest struct {
	ID            string
	Title         string
	AssignedTo    string
	Priority      string
	DueDate       *time.Time
	TaskTemplates []string
	Notes         string
}

type ListWorkRequest struct {
	Status     string
	CustomerID string
	AssignedTo string
	Recurring  *bool
}

type CreateTaskRequest struct {
	WorkID     string
	PeriodID   string // CreatePeriodTask only
	Title      string
	Priority   string
	DueDate    *time.Time
	AssignedTo string
}

type EnsurePeriodRequest struct {
	WorkID      string
	Name        string
	PeriodStart time.Time
	PeriodEnd   time.Time
}

type Service interface {
	CreateWork(context.Context, CreateWorkRequest) (Work, error)
	UpdateWork(context.Context, UpdateWorkRequest) (Work, error)
	ListWorks(context.Context, ListWorkRequest) ([]Work, error)
	GetWork(ctx context.Context, id string) (Work, error)
	DeleteWork(ctx context.Context, id string) error

	// UpdateWorkStatus transitions a work; completion stamps CompletedAt.
	UpdateWorkStatus(ctx context.Context, id, status string) (Work, error)

	ListPeriods(ctx context.Context, workID string) ([]RecurringPeriod, error)
	UpdatePeriodStatus(ctx context.Context, id, status string) (RecurringPeriod, error)

	// EnsurePeriod creates the named period if it does not exist yet and,
	// on first creation, materializes the work's template tasks into it.
	// Idempotent on (work, name).
	EnsurePeriod(context.Context, EnsurePeriodRequest) (RecurringPeriod, bool, error)

	CreateWorkTask(context.Context, CreateTaskRequest) (WorkTask, error)
	CreatePeriodTask(context.Context, CreateTaskRequest) (PeriodTask, error)
	ListWorkTasks(ctx context.Context, workID string) ([]WorkTask, error)
	ListPeriodTasks(ctx context.Context, periodID string) ([]PeriodTask, error)
	UpdateTaskStatus(ctx context.Context, kindRaw, id, status string) error
	DeleteTask(ctx context.Context, kindRaw, id string) error
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidTitle        = errors.New("invalid_title")
	ErrInvalidCustomer     = errors.New("invalid_customer")
	ErrInvalidService      = errors.New("invalid_service")
	ErrInvalidPriority     = errors.New("invalid_priority")
	ErrInvalidStatus       = errors.New("invalid_status")
	ErrInvalidFrequency    = errors.New("invalid_frequency")
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidPeriod       = errors.New("invalid_period")
	ErrInvalidTaskKind     = errors.New("invalid_task_kind")
	ErrNotFound            = errors.New("not_found")

	// ErrRecurringWorkTask guards the recurring / non-recurring partition:
	// ad-hoc tasks may only hang off non-recurring works, period tasks only
	// off periods of recurring works.
	ErrRecurringWorkTask = errors.New("task_requires_period")
)
