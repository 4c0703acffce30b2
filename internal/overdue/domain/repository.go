package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	workdomain "github.com/smallbiznis/opsdesk/internal/work/domain"
)

// Repository reads the three sources the overdue report is assembled
// from. Every method is tenant scoped and returns rows with their
// customer, service and assignee relations resolved.
type Repository interface {
	// OverdueWorks returns active works past their due date.
	OverdueWorks(ctx context.Context, orgID snowflake.ID, now time.Time) ([]workdomain.Work, error)

	// OverduePeriodTasks returns active tasks of open recurring periods
	// past their due date.
	OverduePeriodTasks(ctx context.Context, orgID snowflake.ID, now time.Time) ([]workdomain.PeriodTask, error)

	// OverdueWorkTasks returns active ad-hoc tasks of non-recurring
	// works past their due date.
	OverdueWorkTasks(ctx context.Context, orgID snowflake.ID, now time.Time) ([]workdomain.WorkTask, error)
}
