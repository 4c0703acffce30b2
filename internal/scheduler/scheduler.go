// Package scheduler generates recurring work periods in the background.
// Each tick scans active recurring works and ensures the period covering
// the current date exists, materializing its template tasks.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smallbiznis/opsdesk/internal/clock"
	"github.com/smallbiznis/opsdesk/internal/observability/metrics"
	"github.com/smallbiznis/opsdesk/internal/orgcontext"
	workdomain "github.com/smallbiznis/opsdesk/internal/work/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidConfig = errors.New("scheduler: invalid configuration")

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	WorkSvc workdomain.Service
	Metrics *metrics.Metrics
	Config  Config `optional:"true"`
}

type Scheduler struct {
	db      *gorm.DB
	log     *zap.Logger
	cfg     Config
	clock   clock.Clock
	workSvc workdomain.Service
	metrics *metrics.Metrics
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.Clock == nil || p.WorkSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:      p.DB,
		log:     p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:     p.Config.withDefaults(),
		clock:   p.Clock,
		workSvc: p.WorkSvc,
		metrics: p.Metrics,
	}, nil
}

// RunOnce generates missing periods for a batch of active recurring
// works. EnsurePeriod is idempotent, so reprocessing a work whose
// current period already exists is a no-op.
func (s *Scheduler) RunOnce(parent context.Context) error {
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	now := s.clock.Now()

	var works []workdomain.Work
	err := s.db.WithContext(ctx).
		Where("recurring = ?", true).
		Where("status IN ?", workdomain.ActiveStatuses()).
		Order("id asc").
		Limit(s.cfg.BatchSize).
		Find(&works).Error
	if err != nil {
		return fmt.Errorf("scheduler: list recurring works: %w", err)
	}

	var errs error
	for _, work := range works {
		if err := s.ensureCurrentPeriod(ctx, work, now); err != nil {
			errs = errors.Join(errs, fmt.Errorf("work %s: %w", work.ID, err))
		}
	}
	return errs
}

func (s *Scheduler) ensureCurrentPeriod(ctx context.Context, work workdomain.Work, now time.Time) error {
	name, start, end, err := PeriodBounds(work.Frequency, now)
	if err != nil {
		return err
	}

	orgCtx := orgcontext.WithOrgID(ctx, int64(work.OrgID))
	period, created, err := s.workSvc.EnsurePeriod(orgCtx, workdomain.EnsurePeriodRequest{
		WorkID:      work.ID.String(),
		Name:        name,
		PeriodStart: start,
		PeriodEnd:   end,
	})
	if err != nil {
		return err
	}
	if created {
		if s.metrics != nil {
			s.metrics.RecordPeriodGenerated(ctx, work.OrgID.String())
		}
		s.log.Info("recurring period generated",
			zap.String("org_id", work.OrgID.String()),
			zap.String("work_id", work.ID.String()),
			zap.String("period_id", period.ID.String()),
			zap.String("period", name),
		)
	}
	return nil
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// PeriodBounds derives the period name and date range containing now for
// a frequency. Names follow the staff-facing convention: "Mar 2026",
// "Q1 2026", "2026".
func PeriodBounds(frequency workdomain.Frequency, now time.Time) (string, time.Time, time.Time, error) {
	now = now.UTC()
	switch frequency {
	case workdomain.FrequencyMonthly:
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		return now.Format("Jan 2006"), start, start.AddDate(0, 1, 0), nil
	case workdomain.FrequencyQuarterly:
		quarter := (int(now.Month())-1)/3 + 1
		start := time.Date(now.Year(), time.Month((quarter-1)*3+1), 1, 0, 0, 0, 0, time.UTC)
		return fmt.Sprintf("Q%d %d", quarter, now.Year()), start, start.AddDate(0, 3, 0), nil
	case workdomain.FrequencyYearly:
		start := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
		return fmt.Sprintf("%d", now.Year()), start, start.AddDate(1, 0, 0), nil
	default:
		return "", time.Time{}, time.Time{}, fmt.Errorf("scheduler: unknown frequency %q", frequency)
	}
}
