package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/opsdesk/internal/overdue/domain"
	workdomain "github.com/smallbiznis/opsdesk/internal/work/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func Provide(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) OverdueWorks(ctx context.Context, orgID snowflake.ID, now time.Time) ([]workdomain.Work, error) {
	var works []workdomain.Work
	err := r.db.WithContext(ctx).
		Where("works.org_id = ?", orgID).
		Where("works.status IN ?", workdomain.ActiveStatuses()).
		Where("works.due_date IS NOT NULL AND works.due_date < ?", now).
		Preload("Customer").
		Preload("Service").
		Preload("Assignee").
		Find(&works).Error
	if err != nil {
		return nil, err
	}
	return works, nil
}

func (r *repository) OverduePeriodTasks(ctx context.Context, orgID snowflake.ID, now time.Time) ([]workdomain.PeriodTask, error) {
	var tasks []workdomain.PeriodTask
	err := r.db.WithContext(ctx).
		Joins("JOIN recurring_periods ON recurring_periods.id = period_tasks.period_id").
		Where("period_tasks.org_id = ?", orgID).
		Where("period_tasks.status IN ?", workdomain.ActiveStatuses()).
		Where("period_tasks.due_date IS NOT NULL AND period_tasks.due_date < ?", now).
		Where("recurring_periods.status <> ?", workdomain.StatusCompleted).
		Preload("Period").
		Preload("Work").
		Preload("Work.Customer").
		Preload("Work.Service").
		Preload("Assignee").
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *repository) OverdueWorkTasks(ctx context.Context, orgID snowflake.ID, now time.Time) ([]workdomain.WorkTask, error) {
	var tasks []workdomain.WorkTask
	err := r.db.WithContext(ctx).
		Joins("JOIN works ON works.id = work_tasks.work_id").
		Where("work_tasks.org_id = ?", orgID).
		Where("work_tasks.status IN ?", workdomain.ActiveStatuses()).
		Where("work_tasks.due_date IS NOT NULL AND work_tasks.due_date < ?", now).
		Where("works.recurring = ?", false).
		Preload("Work").
		Preload("Work.Customer").
		Preload("Work.Service").
		Preload("Assignee").
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	return tasks, nil
}
