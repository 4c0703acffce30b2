package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/opsdesk/internal/clock"
	customerdomain "github.com/smallbiznis/opsdesk/internal/customer/domain"
	"github.com/smallbiznis/opsdesk/internal/dashboard/domain"
	invoicedomain "github.com/smallbiznis/opsdesk/internal/invoice/domain"
	leaddomain "github.com/smallbiznis/opsdesk/internal/lead/domain"
	"github.com/smallbiznis/opsdesk/internal/orgcontext"
	overduedomain "github.com/smallbiznis/opsdesk/internal/overdue/domain"
	workdomain "github.com/smallbiznis/opsdesk/internal/work/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// upcomingWindow bounds the due-soon list on the dashboard.
const (
	upcomingWindowDays = 7
	upcomingLimit      = 10
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	OverdueSvc overduedomain.Service
	LeadSvc    leaddomain.Service
	InvoiceSvc invoicedomain.Service
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	overdueSvc overduedomain.Service
	leadSvc    leaddomain.Service
	invoiceSvc invoicedomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("dashboard.service"),
		clock:      p.Clock,
		overdueSvc: p.OverdueSvc,
		leadSvc:    p.LeadSvc,
		invoiceSvc: p.InvoiceSvc,
	}
}

func (s *Service) Overview(ctx context.Context) (domain.Overview, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Overview{}, domain.ErrInvalidOrganization
	}

	now := s.clock.Now()
	overview := domain.Overview{
		GeneratedAt:   now,
		WorksByStatus: make(map[workdomain.Status]int),
		OverdueByBand: make(map[string]int),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		type row struct {
			Status workdomain.Status
			Count  int
		}
		var rows []row
		err := s.db.WithContext(gctx).
			Model(&workdomain.Work{}).
			Select("status, count(*) as count").
			Where("org_id = ?", orgID).
			Group("status").
			Scan(&rows).Error
		if err != nil {
			return err
		}
		for _, r := range rows {
			overview.WorksByStatus[r.Status] = r.Count
		}
		return nil
	})

	g.Go(func() error {
		report, err := s.overdueSvc.Report(gctx, overduedomain.ReportFilter{})
		if err != nil {
			return err
		}
		overview.OverdueTotal = report.Summary.Total
		for band, count := range report.Summary.ByBand {
			overview.OverdueByBand[band] = count
		}
		return nil
	})

	g.Go(func() error {
		pipeline, err := s.leadSvc.Pipeline(gctx)
		if err != nil {
			return err
		}
		overview.LeadPipeline = pipeline
		return nil
	})

	g.Go(func() error {
		receivables, err := s.invoiceSvc.Receivables(gctx)
		if err != nil {
			return err
		}
		overview.Receivables = receivables
		return nil
	})

	g.Go(func() error {
		upcoming, err := s.upcomingWorks(gctx, orgID)
		if err != nil {
			return err
		}
		overview.UpcomingWorks = upcoming
		return nil
	})

	g.Go(func() error {
		return s.db.WithContext(gctx).
			Model(&customerdomain.Customer{}).
			Where("org_id = ?", orgID).
			Count(&overview.ActiveCustomer).Error
	})

	if err := g.Wait(); err != nil {
		s.log.Error("dashboard overview failed",
			zap.String("org_id", orgID.String()),
			zap.Error(err),
		)
		return domain.Overview{}, err
	}
	return overview, nil
}

func (s *Service) upcomingWorks(ctx context.Context, orgID snowflake.ID) ([]domain.UpcomingWork, error) {
	now := s.clock.Now()
	until := now.AddDate(0, 0, upcomingWindowDays)

	var works []workdomain.Work
	err := s.db.WithContext(ctx).
		Where("works.org_id = ?", orgID).
		Where("works.status IN ?", workdomain.ActiveStatuses()).
		Where("works.due_date >= ? AND works.due_date <= ?", now, until).
		Preload("Customer").
		Order("works.due_date asc").
		Limit(upcomingLimit).
		Find(&works).Error
	if err != nil {
		return nil, err
	}

	upcoming := make([]domain.UpcomingWork, 0, len(works))
	for _, work := range works {
		customerName := overduedomain.UnknownName
		if work.Customer != nil && work.Customer.Name != "" {
			customerName = work.Customer.Name
		}
		item := domain.UpcomingWork{
			ID:           work.ID.String(),
			Title:        work.Title,
			CustomerName: customerName,
			Priority:     work.Priority,
			Status:       work.Status,
		}
		if work.DueDate != nil {
			item.DueDate = *work.DueDate
		}
		upcoming = append(upcoming, item)
	}
	return upcoming, nil
}
