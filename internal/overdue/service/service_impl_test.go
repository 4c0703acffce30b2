package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	catalogdomain "github.com/smallbiznis/opsdesk/internal/catalog/domain"
	"github.com/smallbiznis/opsdesk/internal/clock"
	"github.com/smallbiznis/opsdesk/internal/config"
	customerdomain "github.com/smallbiznis/opsdesk/internal/customer/domain"
	"github.com/smallbiznis/opsdesk/internal/orgcontext"
	"github.com/smallbiznis/opsdesk/internal/overdue/domain"
	"github.com/smallbiznis/opsdesk/internal/overdue/repository"
	staffdomain "github.com/smallbiznis/opsdesk/internal/staff/domain"
	workdomain "github.com/smallbiznis/opsdesk/internal/work/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func mustNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return node
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	require.NoError(t, db.AutoMigrate(
		&customerdomain.Customer{},
		&catalogdomain.ServiceOffering{},
		&staffdomain.StaffMember{},
		&workdomain.Work{},
		&workdomain.RecurringPeriod{},
		&workdomain.PeriodTask{},
		&workdomain.WorkTask{},
	))
	return db
}

func newTestService(t *testing.T, db *gorm.DB, fake *clock.FakeClock) domain.Service {
	t.Helper()
	return New(Params{
		DB:     db,
		Log:    zap.NewNop(),
		Clock:  fake,
		Repo:   repository.Provide(db),
		Holder: config.NewStaticOverdueConfigHolder(config.DefaultOverdueConfig()),
	})
}

type fixture struct {
	db     *gorm.DB
	node   *snowflake.Node
	clock  *clock.FakeClock
	svc    domain.Service
	orgID  snowflake.ID
	ctx    context.Context
	now    time.Time
	custID snowflake.ID
	srvID  snowflake.ID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	node := mustNode(t)
	db := openTestDB(t)
	now := time.Date(2026, time.March, 15, 9, 0, 0, 0, time.UTC)
	fake := clock.NewFakeClock(now)
	orgID := node.Generate()

	custID := node.Generate()
	require.NoError(t, db.Create(&customerdomain.Customer{
		ID: custID, OrgID: orgID, Name: "Acme Ltd", Email: "acme@example.com",
	}).Error)

	srvID := node.Generate()
	require.NoError(t, db.Create(&catalogdomain.ServiceOffering{
		ID: srvID, OrgID: orgID, Name: "Bookkeeping", Code: "bookkeeping",
	}).Error)

	return &fixture{
		db:     db,
		node:   node,
		clock:  fake,
		svc:    newTestService(t, db, fake),
		orgID:  orgID,
		ctx:    orgcontext.WithOrgID(context.Background(), int64(orgID)),
		now:    now,
		custID: custID,
		srvID:  srvID,
	}
}

func (f *fixture) createWork(t *testing.T, due *time.Time, status workdomain.Status, recurring bool) workdomain.Work {
	t.Helper()
	work := workdomain.Work{
		ID:         f.node.Generate(),
		OrgID:      f.orgID,
		Title:      "VAT Return",
		CustomerID: f.custID,
		ServiceID:  f.srvID,
		Status:     status,
		Priority:   workdomain.PriorityMedium,
		DueDate:    due,
		Recurring:  recurring,
	}
	if recurring {
		work.Frequency = workdomain.FrequencyMonthly
	}
	require.NoError(t, f.db.Create(&work).Error)
	return work
}

func timePtr(t time.Time) *time.Time { return &t }

func TestReportRequiresOrganization(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Report(context.Background(), domain.ReportFilter{})
	assert.ErrorIs(t, err, domain.ErrInvalidOrganization)
}

func TestReportCollectsWorksAndTasks(t *testing.T) {
	f := newFixture(t)

	overdueWork := f.createWork(t, timePtr(f.now.Add(-49*time.Hour)), workdomain.StatusPending, false)
	f.createWork(t, timePtr(f.now.Add(time.Hour)), workdomain.StatusPending, false)       // not yet due
	f.createWork(t, timePtr(f.now.Add(-72*time.Hour)), workdomain.StatusCompleted, false) // terminal
	f.createWork(t, nil, workdomain.StatusPending, false)                                 // no due date

	recurring := f.createWork(t, nil, workdomain.StatusPending, true)
	period := workdomain.RecurringPeriod{
		ID:          f.node.Generate(),
		OrgID:       f.orgID,
		WorkID:      recurring.ID,
		Name:        "Feb 2026",
		PeriodStart: time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
		Status:      workdomain.StatusPending,
	}
	require.NoError(t, f.db.Create(&period).Error)
	periodTask := workdomain.PeriodTask{
		ID:       f.node.Generate(),
		OrgID:    f.orgID,
		PeriodID: period.ID,
		WorkID:   recurring.ID,
		Title:    "Reconcile ledger",
		Status:   workdomain.StatusPending,
		Priority: workdomain.PriorityHigh,
		DueDate:  timePtr(f.now.Add(-8 * 24 * time.Hour)),
	}
	require.NoError(t, f.db.Create(&periodTask).Error)

	adhoc := f.createWork(t, nil, workdomain.StatusPending, false)
	workTask := workdomain.WorkTask{
		ID:       f.node.Generate(),
		OrgID:    f.orgID,
		WorkID:   adhoc.ID,
		Title:    "Collect receipts",
		Status:   workdomain.StatusInProgress,
		Priority: workdomain.PriorityLow,
		DueDate:  timePtr(f.now.Add(-30 * time.Minute)),
	}
	require.NoError(t, f.db.Create(&workTask).Error)

	report, err := f.svc.Report(f.ctx, domain.ReportFilter{})
	require.NoError(t, err)

	require.Len(t, report.Items, 3)
	// Most overdue first: period task (8d), work (3d), work task (1d).
	assert.Equal(t, periodTask.ID, report.Items[0].ID)
	assert.Equal(t, 8, report.Items[0].DaysOverdue)
	assert.Equal(t, overdueWork.ID, report.Items[1].ID)
	assert.Equal(t, 3, report.Items[1].DaysOverdue)
	assert.Equal(t, workTask.ID, report.Items[2].ID)
	assert.Equal(t, 1, report.Items[2].DaysOverdue)

	assert.Equal(t, "VAT Return - Feb 2026 - Reconcile ledger", report.Items[0].Title)
	assert.Equal(t, "VAT Return - Collect receipts", report.Items[2].Title)
	assert.Equal(t, "Acme Ltd", report.Items[0].CustomerName)
	assert.Equal(t, "Bookkeeping", report.Items[0].ServiceName)
	require.NotNil(t, report.Items[0].ParentWorkID)
	assert.Equal(t, recurring.ID, *report.Items[0].ParentWorkID)

	assert.Equal(t, 3, report.Summary.Total)
	assert.Equal(t, 1, report.Summary.WorkCount)
	assert.Equal(t, 2, report.Summary.TaskCount)
	assert.Equal(t, f.now, report.GeneratedAt)
}

func TestReportSkipsTasksOfInactivePeriods(t *testing.T) {
	f := newFixture(t)

	recurring := f.createWork(t, nil, workdomain.StatusPending, true)
	period := workdomain.RecurringPeriod{
		ID:          f.node.Generate(),
		OrgID:       f.orgID,
		WorkID:      recurring.ID,
		Name:        "Jan 2026",
		PeriodStart: time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC),
		Status:      workdomain.StatusCompleted,
	}
	require.NoError(t, f.db.Create(&period).Error)
	require.NoError(t, f.db.Create(&workdomain.PeriodTask{
		ID:       f.node.Generate(),
		OrgID:    f.orgID,
		PeriodID: period.ID,
		WorkID:   recurring.ID,
		Title:    "Old task",
		Status:   workdomain.StatusPending,
		Priority: workdomain.PriorityMedium,
		DueDate:  timePtr(f.now.Add(-40 * 24 * time.Hour)),
	}).Error)

	report, err := f.svc.Report(f.ctx, domain.ReportFilter{})
	require.NoError(t, err)
	assert.Empty(t, report.Items)
}

func TestReportUnknownCustomerFallback(t *testing.T) {
	f := newFixture(t)

	work := workdomain.Work{
		ID:         f.node.Generate(),
		OrgID:      f.orgID,
		Title:      "Orphaned work",
		CustomerID: f.node.Generate(), // no such customer
		ServiceID:  f.node.Generate(), // no such service
		Status:     workdomain.StatusPending,
		Priority:   workdomain.PriorityMedium,
		DueDate:    timePtr(f.now.Add(-2 * 24 * time.Hour)),
	}
	require.NoError(t, f.db.Create(&work).Error)

	report, err := f.svc.Report(f.ctx, domain.ReportFilter{})
	require.NoError(t, err)
	require.Len(t, report.Items, 1)
	assert.Equal(t, domain.UnknownName, report.Items[0].CustomerName)
	assert.Equal(t, domain.UnknownName, report.Items[0].ServiceName)
}

func TestReportScopedToOrganization(t *testing.T) {
	f := newFixture(t)

	otherOrg := f.node.Generate()
	require.NoError(t, f.db.Create(&workdomain.Work{
		ID:         f.node.Generate(),
		OrgID:      otherOrg,
		Title:      "Foreign work",
		CustomerID: f.custID,
		ServiceID:  f.srvID,
		Status:     workdomain.StatusPending,
		Priority:   workdomain.PriorityMedium,
		DueDate:    timePtr(f.now.Add(-5 * 24 * time.Hour)),
	}).Error)

	report, err := f.svc.Report(f.ctx, domain.ReportFilter{})
	require.NoError(t, err)
	assert.Empty(t, report.Items)
}

func TestReportFiltersApplyToSummary(t *testing.T) {
	f := newFixture(t)

	f.createWork(t, timePtr(f.now.Add(-24*time.Hour)), workdomain.StatusPending, false)
	adhoc := f.createWork(t, nil, workdomain.StatusPending, false)
	require.NoError(t, f.db.Create(&workdomain.WorkTask{
		ID:       f.node.Generate(),
		OrgID:    f.orgID,
		WorkID:   adhoc.ID,
		Title:    "Chase signature",
		Status:   workdomain.StatusPending,
		Priority: workdomain.PriorityHigh,
		DueDate:  timePtr(f.now.Add(-48 * time.Hour)),
	}).Error)

	report, err := f.svc.Report(f.ctx, domain.ReportFilter{Kind: domain.KindTask})
	require.NoError(t, err)
	require.Len(t, report.Items, 1)
	assert.Equal(t, 1, report.Summary.Total)
	assert.Equal(t, 0, report.Summary.WorkCount)
	assert.Equal(t, 1, report.Summary.TaskCount)
}

type failingRepo struct {
	real   domain.Repository
	broken string
}

func (r *failingRepo) OverdueWorks(ctx context.Context, orgID snowflake.ID, now time.Time) ([]workdomain.Work, error) {
	if r.broken == "works" {
		return nil, errors.New("boom")
	}
	return r.real.OverdueWorks(ctx, orgID, now)
}

func (r *failingRepo) OverduePeriodTasks(ctx context.Context, orgID snowflake.ID, now time.Time) ([]workdomain.PeriodTask, error) {
	if r.broken == "period_tasks" {
		return nil, errors.New("boom")
	}
	return r.real.OverduePeriodTasks(ctx, orgID, now)
}

func (r *failingRepo) OverdueWorkTasks(ctx context.Context, orgID snowflake.ID, now time.Time) ([]workdomain.WorkTask, error) {
	if r.broken == "work_tasks" {
		return nil, errors.New("boom")
	}
	return r.real.OverdueWorkTasks(ctx, orgID, now)
}

func TestReportFailsClosedWhenAnySourceFails(t *testing.T) {
	for _, source := range []string{"works", "period_tasks", "work_tasks"} {
		t.Run(source, func(t *testing.T) {
			f := newFixture(t)
			f.createWork(t, timePtr(f.now.Add(-24*time.Hour)), workdomain.StatusPending, false)

			svc := New(Params{
				DB:     f.db,
				Log:    zap.NewNop(),
				Clock:  f.clock,
				Repo:   &failingRepo{real: repository.Provide(f.db), broken: source},
				Holder: config.NewStaticOverdueConfigHolder(config.DefaultOverdueConfig()),
			})

			_, err := svc.Report(f.ctx, domain.ReportFilter{})
			require.Error(t, err)
		})
	}
}

func TestSetReasonStampsBothFields(t *testing.T) {
	f := newFixture(t)
	work := f.createWork(t, timePtr(f.now.Add(-3*24*time.Hour)), workdomain.StatusPending, false)

	updated, err := f.svc.SetReason(f.ctx, domain.SetReasonRequest{
		WorkID: work.ID.String(),
		Reason: "waiting on client records",
	})
	require.NoError(t, err)
	require.NotNil(t, updated.OverdueReason)
	assert.Equal(t, "waiting on client records", *updated.OverdueReason)
	require.NotNil(t, updated.OverdueMarkedAt)
	assert.Equal(t, f.now, updated.OverdueMarkedAt.UTC())

	var stored workdomain.Work
	require.NoError(t, f.db.Where("id = ?", work.ID).Take(&stored).Error)
	require.NotNil(t, stored.OverdueReason)
	require.NotNil(t, stored.OverdueMarkedAt)
}

func TestSetReasonClearsBothFields(t *testing.T) {
	f := newFixture(t)
	work := f.createWork(t, timePtr(f.now.Add(-3*24*time.Hour)), workdomain.StatusPending, false)

	_, err := f.svc.SetReason(f.ctx, domain.SetReasonRequest{
		WorkID: work.ID.String(),
		Reason: "first pass",
	})
	require.NoError(t, err)

	cleared, err := f.svc.SetReason(f.ctx, domain.SetReasonRequest{
		WorkID: work.ID.String(),
		Reason: "",
	})
	require.NoError(t, err)
	assert.Nil(t, cleared.OverdueReason)
	assert.Nil(t, cleared.OverdueMarkedAt)

	var stored workdomain.Work
	require.NoError(t, f.db.Where("id = ?", work.ID).Take(&stored).Error)
	assert.Nil(t, stored.OverdueReason)
	assert.Nil(t, stored.OverdueMarkedAt)
}

func TestSetReasonRejectsNonOverdueWork(t *testing.T) {
	f := newFixture(t)

	future := f.createWork(t, timePtr(f.now.Add(24*time.Hour)), workdomain.StatusPending, false)
	_, err := f.svc.SetReason(f.ctx, domain.SetReasonRequest{WorkID: future.ID.String(), Reason: "too early"})
	assert.ErrorIs(t, err, domain.ErrNotOverdue)

	done := f.createWork(t, timePtr(f.now.Add(-24*time.Hour)), workdomain.StatusCompleted, false)
	_, err = f.svc.SetReason(f.ctx, domain.SetReasonRequest{WorkID: done.ID.String(), Reason: "already done"})
	assert.ErrorIs(t, err, domain.ErrNotOverdue)

	noDue := f.createWork(t, nil, workdomain.StatusPending, false)
	_, err = f.svc.SetReason(f.ctx, domain.SetReasonRequest{WorkID: noDue.ID.String(), Reason: "no due date"})
	assert.ErrorIs(t, err, domain.ErrNotOverdue)
}

func TestSetReasonUnknownWork(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.SetReason(f.ctx, domain.SetReasonRequest{WorkID: f.node.Generate().String(), Reason: "x"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.SetReason(f.ctx, domain.SetReasonRequest{WorkID: "not-a-number", Reason: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}
