package scheduler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	catalogdomain "github.com/smallbiznis/opsdesk/internal/catalog/domain"
	"github.com/smallbiznis/opsdesk/internal/clock"
	customerdomain "github.com/smallbiznis/opsdesk/internal/customer/domain"
	"github.com/smallbiznis/opsdesk/internal/orgcontext"
	staffdomain "github.com/smallbiznis/opsdesk/internal/staff/domain"
	workdomain "github.com/smallbiznis/opsdesk/internal/work/domain"
	workservice "github.com/smallbiznis/opsdesk/internal/work/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestPeriodBounds(t *testing.T) {
	now := time.Date(2026, time.February, 17, 14, 30, 0, 0, time.UTC)

	name, start, end, err := PeriodBounds(workdomain.FrequencyMonthly, now)
	require.NoError(t, err)
	assert.Equal(t, "Feb 2026", name)
	assert.Equal(t, time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC), end)

	name, start, end, err = PeriodBounds(workdomain.FrequencyQuarterly, now)
	require.NoError(t, err)
	assert.Equal(t, "Q1 2026", name)
	assert.Equal(t, time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC), end)

	name, start, end, err = PeriodBounds(workdomain.FrequencyYearly, now)
	require.NoError(t, err)
	assert.Equal(t, "2026", name)
	assert.Equal(t, time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2027, time.January, 1, 0, 0, 0, 0, time.UTC), end)

	_, _, _, err = PeriodBounds(workdomain.Frequency("weekly"), now)
	assert.Error(t, err)
}

func TestPeriodBoundsQuarterEdges(t *testing.T) {
	cases := []struct {
		month time.Month
		name  string
	}{
		{time.March, "Q1 2026"},
		{time.April, "Q2 2026"},
		{time.September, "Q3 2026"},
		{time.October, "Q4 2026"},
		{time.December, "Q4 2026"},
	}
	for _, tc := range cases {
		name, _, _, err := PeriodBounds(workdomain.FrequencyQuarterly, time.Date(2026, tc.month, 15, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		assert.Equal(t, tc.name, name)
	}
}

type schedulerFixture struct {
	db    *gorm.DB
	node  *snowflake.Node
	svc   workdomain.Service
	clk   *clock.FakeClock
	sched *Scheduler
	orgID snowflake.ID
	ctx   context.Context
}

func newSchedulerFixture(t *testing.T) *schedulerFixture {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

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

	svc := workservice.New(workservice.Params{DB: db, Log: zap.NewNop(), GenID: node})
	clk := clock.NewFakeClock(time.Date(2026, time.March, 10, 8, 0, 0, 0, time.UTC))

	sched, err := New(Params{
		DB:      db,
		Log:     zap.NewNop(),
		Clock:   clk,
		WorkSvc: svc,
	})
	require.NoError(t, err)

	orgID := node.Generate()
	return &schedulerFixture{
		db:    db,
		node:  node,
		svc:   svc,
		clk:   clk,
		sched: sched,
		orgID: orgID,
		ctx:   orgcontext.WithOrgID(context.Background(), int64(orgID)),
	}
}

func (f *schedulerFixture) seedWork(t *testing.T, recurring bool, frequency string, templates ...string) workdomain.Work {
	t.Helper()
	custID := f.node.Generate()
	require.NoError(t, f.db.Create(&customerdomain.Customer{
		ID: custID, OrgID: f.orgID, Name: "Acme Ltd",
	}).Error)
	srvID := f.node.Generate()
	require.NoError(t, f.db.Create(&catalogdomain.ServiceOffering{
		ID: srvID, OrgID: f.orgID, Name: "Bookkeeping", Code: fmt.Sprintf("svc-%d", srvID),
	}).Error)

	work, err := f.svc.CreateWork(f.ctx, workdomain.CreateWorkRequest{
		Title:         "VAT Return",
		CustomerID:    custID.String(),
		ServiceID:     srvID.String(),
		Recurring:     recurring,
		Frequency:     frequency,
		TaskTemplates: templates,
	})
	require.NoError(t, err)
	return work
}

func (f *schedulerFixture) periods(t *testing.T, workID snowflake.ID) []workdomain.RecurringPeriod {
	t.Helper()
	var periods []workdomain.RecurringPeriod
	require.NoError(t, f.db.Where("work_id = ?", workID).Order("period_start asc").Find(&periods).Error)
	return periods
}

func TestRunOnceGeneratesCurrentPeriod(t *testing.T) {
	f := newSchedulerFixture(t)
	work := f.seedWork(t, true, "monthly", "Reconcile ledger")

	require.NoError(t, f.sched.RunOnce(context.Background()))

	periods := f.periods(t, work.ID)
	require.Len(t, periods, 1)
	assert.Equal(t, "Mar 2026", periods[0].Name)
	assert.True(t, periods[0].PeriodStart.Equal(time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, periods[0].PeriodEnd.Equal(time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)))

	var tasks []workdomain.PeriodTask
	require.NoError(t, f.db.Where("period_id = ?", periods[0].ID).Find(&tasks).Error)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Reconcile ledger", tasks[0].Title)
}

func TestRunOnceIsIdempotentWithinPeriod(t *testing.T) {
	f := newSchedulerFixture(t)
	work := f.seedWork(t, true, "monthly", "Reconcile ledger")

	require.NoError(t, f.sched.RunOnce(context.Background()))
	f.clk.Advance(24 * time.Hour)
	require.NoError(t, f.sched.RunOnce(context.Background()))

	assert.Len(t, f.periods(t, work.ID), 1)

	var tasks int64
	require.NoError(t, f.db.Model(&workdomain.PeriodTask{}).Where("work_id = ?", work.ID).Count(&tasks).Error)
	assert.EqualValues(t, 1, tasks)
}

func TestRunOnceRollsIntoNextPeriod(t *testing.T) {
	f := newSchedulerFixture(t)
	work := f.seedWork(t, true, "monthly")

	require.NoError(t, f.sched.RunOnce(context.Background()))
	f.clk.Set(time.Date(2026, time.April, 2, 8, 0, 0, 0, time.UTC))
	require.NoError(t, f.sched.RunOnce(context.Background()))

	periods := f.periods(t, work.ID)
	require.Len(t, periods, 2)
	assert.Equal(t, "Mar 2026", periods[0].Name)
	assert.Equal(t, "Apr 2026", periods[1].Name)
}

func TestRunOnceSkipsNonRecurringAndTerminalWorks(t *testing.T) {
	f := newSchedulerFixture(t)
	adhoc := f.seedWork(t, false, "")
	recurring := f.seedWork(t, true, "quarterly")
	cancelled := f.seedWork(t, true, "monthly")
	_, err := f.svc.UpdateWorkStatus(f.ctx, cancelled.ID.String(), "cancelled")
	require.NoError(t, err)

	require.NoError(t, f.sched.RunOnce(context.Background()))

	assert.Empty(t, f.periods(t, adhoc.ID))
	assert.Empty(t, f.periods(t, cancelled.ID))
	require.Len(t, f.periods(t, recurring.ID), 1)
	assert.Equal(t, "Q1 2026", f.periods(t, recurring.ID)[0].Name)
}

func TestRunOnceAggregatesPerWorkFailures(t *testing.T) {
	f := newSchedulerFixture(t)
	healthy := f.seedWork(t, true, "monthly")

	// A recurring work with a frequency the bounds math cannot place
	// should not block period generation for the rest of the batch.
	broken := f.seedWork(t, true, "yearly")
	require.NoError(t, f.db.Model(&workdomain.Work{}).
		Where("id = ?", broken.ID).
		Update("frequency", "weekly").Error)

	err := f.sched.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), broken.ID.String())

	assert.Len(t, f.periods(t, healthy.ID), 1)
	assert.Empty(t, f.periods(t, broken.ID))
}

func TestNewRequiresCoreDependencies(t *testing.T) {
	_, err := New(Params{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
