package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/opsdesk/internal/catalog/domain"
	"github.com/smallbiznis/opsdesk/internal/clock"
	"github.com/smallbiznis/opsdesk/internal/config"
	customerdomain "github.com/smallbiznis/opsdesk/internal/customer/domain"
	"github.com/smallbiznis/opsdesk/internal/observability/metrics"
	"github.com/smallbiznis/opsdesk/internal/orgcontext"
	"github.com/smallbiznis/opsdesk/internal/overdue/domain"
	staffdomain "github.com/smallbiznis/opsdesk/internal/staff/domain"
	workdomain "github.com/smallbiznis/opsdesk/internal/work/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	Repo    domain.Repository
	Holder  *config.OverdueConfigHolder
	Metrics *metrics.Metrics
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	repo    domain.Repository
	holder  *config.OverdueConfigHolder
	metrics *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("overdue.service"),
		clock:   p.Clock,
		repo:    p.Repo,
		holder:  p.Holder,
		metrics: p.Metrics,
	}
}

func (s *Service) Report(ctx context.Context, filter domain.ReportFilter) (domain.Report, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Report{}, domain.ErrInvalidOrganization
	}

	now := s.clock.Now()

	var (
		works       []workdomain.Work
		periodTasks []workdomain.PeriodTask
		workTasks   []workdomain.WorkTask
	)

	// All three sources must succeed. A partial report would silently
	// hide overdue items, which is worse than no report at all.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		works, err = s.repo.OverdueWorks(gctx, orgID, now)
		if err != nil {
			s.metrics.RecordOverdueReportError(ctx, orgID.String(), "works")
			return fmt.Errorf("overdue works: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		periodTasks, err = s.repo.OverduePeriodTasks(gctx, orgID, now)
		if err != nil {
			s.metrics.RecordOverdueReportError(ctx, orgID.String(), "period_tasks")
			return fmt.Errorf("overdue period tasks: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		workTasks, err = s.repo.OverdueWorkTasks(gctx, orgID, now)
		if err != nil {
			s.metrics.RecordOverdueReportError(ctx, orgID.String(), "work_tasks")
			return fmt.Errorf("overdue work tasks: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		s.log.Error("overdue report failed",
			zap.String("org_id", orgID.String()),
			zap.Error(err),
		)
		return domain.Report{}, err
	}

	cfg := s.holder.Get()
	items := make([]domain.OverdueItem, 0, len(works)+len(periodTasks)+len(workTasks))
	for _, work := range works {
		items = append(items, s.normalizeWork(work, now, cfg))
	}
	for _, task := range periodTasks {
		items = append(items, s.normalizePeriodTask(task, now, cfg))
	}
	for _, task := range workTasks {
		items = append(items, s.normalizeWorkTask(task, now, cfg))
	}

	items = domain.FilterByKind(items, filter.Kind)
	items = domain.FilterByPriority(items, filter.Priority)
	items = domain.FilterByCustomer(items, filter.CustomerName)
	domain.SortByDaysDesc(items)

	s.metrics.RecordOverdueReport(ctx, orgID.String())
	return domain.Report{
		Items:       items,
		Summary:     domain.Summarize(items),
		GeneratedAt: now,
	}, nil
}

func (s *Service) SetReason(ctx context.Context, req domain.SetReasonRequest) (workdomain.Work, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return workdomain.Work{}, domain.ErrInvalidOrganization
	}

	workID, err := snowflake.ParseString(strings.TrimSpace(req.WorkID))
	if err != nil || workID == 0 {
		return workdomain.Work{}, domain.ErrInvalidID
	}

	var work workdomain.Work
	err = s.db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, workID).
		Take(&work).Error
	if err == gorm.ErrRecordNotFound {
		return workdomain.Work{}, domain.ErrNotFound
	}
	if err != nil {
		return workdomain.Work{}, err
	}

	now := s.clock.Now()
	reason := strings.TrimSpace(req.Reason)
	cleared := reason == ""
	if cleared {
		work.OverdueReason = nil
		work.OverdueMarkedAt = nil
	} else {
		if work.DueDate == nil || !work.DueDate.Before(now) || work.Status.Terminal() {
			return workdomain.Work{}, domain.ErrNotOverdue
		}
		work.OverdueReason = &reason
		work.OverdueMarkedAt = &now
	}
	work.UpdatedAt = now

	// Updates with a map so clearing writes NULL into both columns.
	err = s.db.WithContext(ctx).
		Model(&workdomain.Work{}).
		Where("org_id = ? AND id = ?", orgID, workID).
		Updates(map[string]any{
			"overdue_reason":    work.OverdueReason,
			"overdue_marked_at": work.OverdueMarkedAt,
			"updated_at":        work.UpdatedAt,
		}).Error
	if err != nil {
		return workdomain.Work{}, err
	}

	s.metrics.RecordOverdueReasonUpdate(ctx, orgID.String(), cleared)
	s.log.Info("overdue reason updated",
		zap.String("org_id", orgID.String()),
		zap.String("work_id", workID.String()),
		zap.Bool("cleared", cleared),
	)
	return work, nil
}

func (s *Service) normalizeWork(work workdomain.Work, now time.Time, cfg config.OverdueConfig) domain.OverdueItem {
	days := domain.DaysOverdue(now, derefTime(work.DueDate))
	item := domain.OverdueItem{
		ID:              work.ID,
		Kind:            domain.KindWork,
		Title:           work.Title,
		CustomerName:    customerName(work.Customer),
		ServiceName:     serviceName(work.Service),
		DueDate:         derefTime(work.DueDate),
		DaysOverdue:     days,
		Band:            domain.BandFor(days, cfg),
		Priority:        work.Priority,
		Status:          work.Status,
		AssigneeName:    assigneeName(work.Assignee),
		OverdueReason:   work.OverdueReason,
		OverdueMarkedAt: work.OverdueMarkedAt,
	}
	return item
}

func (s *Service) normalizePeriodTask(task workdomain.PeriodTask, now time.Time, cfg config.OverdueConfig) domain.OverdueItem {
	days := domain.DaysOverdue(now, derefTime(task.DueDate))
	workID := task.WorkID
	return domain.OverdueItem{
		ID:           task.ID,
		Kind:         domain.KindTask,
		Title:        periodTaskTitle(task),
		CustomerName: customerName(taskCustomer(task.Work)),
		ServiceName:  serviceName(taskService(task.Work)),
		DueDate:      derefTime(task.DueDate),
		DaysOverdue:  days,
		Band:         domain.BandFor(days, cfg),
		Priority:     task.Priority,
		Status:       task.Status,
		AssigneeName: assigneeName(task.Assignee),
		ParentWorkID: &workID,
	}
}

func (s *Service) normalizeWorkTask(task workdomain.WorkTask, now time.Time, cfg config.OverdueConfig) domain.OverdueItem {
	days := domain.DaysOverdue(now, derefTime(task.DueDate))
	workID := task.WorkID
	return domain.OverdueItem{
		ID:           task.ID,
		Kind:         domain.KindTask,
		Title:        workTaskTitle(task),
		CustomerName: customerName(taskCustomer(task.Work)),
		ServiceName:  serviceName(taskService(task.Work)),
		DueDate:      derefTime(task.DueDate),
		DaysOverdue:  days,
		Band:         domain.BandFor(days, cfg),
		Priority:     task.Priority,
		Status:       task.Status,
		AssigneeName: assigneeName(task.Assignee),
		ParentWorkID: &workID,
	}
}

// periodTaskTitle composes "{work} - {period} - {task}" with unknown
// segments falling back to a placeholder rather than dropping out.
func periodTaskTitle(task workdomain.PeriodTask) string {
	workTitle := domain.UnknownName
	if task.Work != nil && task.Work.Title != "" {
		workTitle = task.Work.Title
	}
	periodName := domain.UnknownName
	if task.Period != nil && task.Period.Name != "" {
		periodName = task.Period.Name
	}
	return workTitle + " - " + periodName + " - " + task.Title
}

func workTaskTitle(task workdomain.WorkTask) string {
	workTitle := domain.UnknownName
	if task.Work != nil && task.Work.Title != "" {
		workTitle = task.Work.Title
	}
	return workTitle + " - " + task.Title
}

func customerName(customer *customerdomain.Customer) string {
	if customer == nil || customer.Name == "" {
		return domain.UnknownName
	}
	return customer.Name
}

func serviceName(offering *catalogdomain.ServiceOffering) string {
	if offering == nil || offering.Name == "" {
		return domain.UnknownName
	}
	return offering.Name
}

func assigneeName(member *staffdomain.StaffMember) string {
	if member == nil {
		return ""
	}
	return member.DisplayName
}

func taskCustomer(work *workdomain.Work) *customerdomain.Customer {
	if work == nil {
		return nil
	}
	return work.Customer
}

func taskService(work *workdomain.Work) *catalogdomain.ServiceOffering {
	if work == nil {
		return nil
	}
	return work.Service
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
