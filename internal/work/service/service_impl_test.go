package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	catalogdomain "github.com/smallbiznis/opsdesk/internal/catalog/domain"
	customerdomain "github.com/smallbiznis/opsdesk/internal/customer/domain"
	"github.com/smallbiznis/opsdesk/internal/orgcontext"
	staffdomain "github.com/smallbiznis/opsdesk/internal/staff/domain"
	"github.com/smallbiznis/opsdesk/internal/work/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db     *gorm.DB
	node   *snowflake.Node
	svc    domain.Service
	orgID  snowflake.ID
	ctx    context.Context
	custID snowflake.ID
	srvID  snowflake.ID
}

func newFixture(t *testing.T) *fixture {
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
		&domain.Work{},
		&domain.RecurringPeriod{},
		&domain.PeriodTask{},
		&domain.WorkTask{},
	))

	orgID := node.Generate()
	custID := node.Generate()
	require.NoError(t, db.Create(&customerdomain.Customer{
		ID: custID, OrgID: orgID, Name: "Acme Ltd", Email: "acme@example.com",
	}).Error)
	srvID := node.Generate()
	require.NoError(t, db.Create(&catalogdomain.ServiceOffering{
		ID: srvID, OrgID: orgID, Name: "Payroll", Code: "payroll",
	}).Error)

	return &fixture{
		db:     db,
		node:   node,
		svc:    New(Params{DB: db, Log: zap.NewNop(), GenID: node}),
		orgID:  orgID,
		ctx:    orgcontext.WithOrgID(context.Background(), int64(orgID)),
		custID: custID,
		srvID:  srvID,
	}
}

func (f *fixture) createRecurring(t *testing.T, templates ...string) domain.Work {
	t.Helper()
	work, err := f.svc.CreateWork(f.ctx, domain.CreateWorkRequest{
		Title:         "Monthly payroll",
		CustomerID:    f.custID.String(),
		ServiceID:     f.srvID.String(),
		Recurring:     true,
		Frequency:     "monthly",
		TaskTemplates: templates,
	})
	require.NoError(t, err)
	return work
}

func (f *fixture) createAdhoc(t *testing.T) domain.Work {
	t.Helper()
	work, err := f.svc.CreateWork(f.ctx, domain.CreateWorkRequest{
		Title:      "Year-end filing",
		CustomerID: f.custID.String(),
		ServiceID:  f.srvID.String(),
	})
	require.NoError(t, err)
	return work
}

func TestCreateWorkValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateWork(f.ctx, domain.CreateWorkRequest{
		Title: "", CustomerID: f.custID.String(), ServiceID: f.srvID.String(),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidTitle)

	_, err = f.svc.CreateWork(f.ctx, domain.CreateWorkRequest{
		Title: "x", CustomerID: "nope", ServiceID: f.srvID.String(),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidCustomer)

	_, err = f.svc.CreateWork(f.ctx, domain.CreateWorkRequest{
		Title: "x", CustomerID: f.custID.String(), ServiceID: f.srvID.String(),
		Priority: "extreme",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidPriority)

	// Frequency is required for recurring works and ignored otherwise.
	_, err = f.svc.CreateWork(f.ctx, domain.CreateWorkRequest{
		Title: "x", CustomerID: f.custID.String(), ServiceID: f.srvID.String(),
		Recurring: true, Frequency: "fortnightly",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidFrequency)

	work, err := f.svc.CreateWork(f.ctx, domain.CreateWorkRequest{
		Title: "x", CustomerID: f.custID.String(), ServiceID: f.srvID.String(),
		Frequency: "fortnightly",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.Frequency(""), work.Frequency)
	assert.Equal(t, domain.PriorityMedium, work.Priority)
	assert.Equal(t, domain.StatusPending, work.Status)

	_, err = f.svc.CreateWork(context.Background(), domain.CreateWorkRequest{
		Title: "x", CustomerID: f.custID.String(), ServiceID: f.srvID.String(),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidOrganization)
}

func TestUpdateWorkStatusStampsCompletedAt(t *testing.T) {
	f := newFixture(t)
	work := f.createAdhoc(t)

	updated, err := f.svc.UpdateWorkStatus(f.ctx, work.ID.String(), "completed")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, updated.Status)
	require.NotNil(t, updated.CompletedAt)

	reopened, err := f.svc.UpdateWorkStatus(f.ctx, work.ID.String(), "in_progress")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, reopened.Status)
	assert.Nil(t, reopened.CompletedAt)

	_, err = f.svc.UpdateWorkStatus(f.ctx, work.ID.String(), "done")
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestEnsurePeriodMaterializesTemplates(t *testing.T) {
	f := newFixture(t)
	work := f.createRecurring(t, "Run payroll", " Submit RTI ", "")

	start := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)
	period, created, err := f.svc.EnsurePeriod(f.ctx, domain.EnsurePeriodRequest{
		WorkID:      work.ID.String(),
		Name:        "Mar 2026",
		PeriodStart: start,
		PeriodEnd:   end,
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "Mar 2026", period.Name)

	tasks, err := f.svc.ListPeriodTasks(f.ctx, period.ID.String())
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	titles := []string{tasks[0].Title, tasks[1].Title}
	assert.ElementsMatch(t, []string{"Run payroll", "Submit RTI"}, titles)
	for _, task := range tasks {
		require.NotNil(t, task.DueDate)
		assert.True(t, task.DueDate.Equal(end))
		assert.Equal(t, work.Priority, task.Priority)
		assert.Equal(t, work.ID, task.WorkID)
	}
}

func TestEnsurePeriodIsIdempotent(t *testing.T) {
	f := newFixture(t)
	work := f.createRecurring(t, "Run payroll")

	req := domain.EnsurePeriodRequest{
		WorkID:      work.ID.String(),
		Name:        "Mar 2026",
		PeriodStart: time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC),
	}

	first, created, err := f.svc.EnsurePeriod(f.ctx, req)
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := f.svc.EnsurePeriod(f.ctx, req)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	// Templates are materialized once, on first creation only.
	tasks, err := f.svc.ListPeriodTasks(f.ctx, first.ID.String())
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
}

func TestEnsurePeriodRejectsNonRecurringWork(t *testing.T) {
	f := newFixture(t)
	work := f.createAdhoc(t)

	_, _, err := f.svc.EnsurePeriod(f.ctx, domain.EnsurePeriodRequest{
		WorkID:      work.ID.String(),
		Name:        "Mar 2026",
		PeriodStart: time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidPeriod)
}

func TestCreateWorkTaskRejectsRecurringWork(t *testing.T) {
	f := newFixture(t)
	recurring := f.createRecurring(t)

	_, err := f.svc.CreateWorkTask(f.ctx, domain.CreateTaskRequest{
		WorkID: recurring.ID.String(),
		Title:  "Should not exist",
	})
	assert.ErrorIs(t, err, domain.ErrRecurringWorkTask)

	adhoc := f.createAdhoc(t)
	task, err := f.svc.CreateWorkTask(f.ctx, domain.CreateTaskRequest{
		WorkID: adhoc.ID.String(),
		Title:  "Collect documents",
	})
	require.NoError(t, err)
	assert.Equal(t, adhoc.ID, task.WorkID)
}

func TestCreatePeriodTaskRequiresPeriodInOrg(t *testing.T) {
	f := newFixture(t)
	work := f.createRecurring(t)

	period, _, err := f.svc.EnsurePeriod(f.ctx, domain.EnsurePeriodRequest{
		WorkID:      work.ID.String(),
		Name:        "Q1 2026",
		PeriodStart: time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	task, err := f.svc.CreatePeriodTask(f.ctx, domain.CreateTaskRequest{
		PeriodID: period.ID.String(),
		Title:    "Review VAT",
	})
	require.NoError(t, err)
	assert.Equal(t, period.ID, task.PeriodID)
	assert.Equal(t, work.ID, task.WorkID)

	otherCtx := orgcontext.WithOrgID(context.Background(), int64(f.node.Generate()))
	_, err = f.svc.CreatePeriodTask(otherCtx, domain.CreateTaskRequest{
		PeriodID: period.ID.String(),
		Title:    "Cross-tenant",
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateTaskStatusByKind(t *testing.T) {
	f := newFixture(t)
	adhoc := f.createAdhoc(t)
	task, err := f.svc.CreateWorkTask(f.ctx, domain.CreateTaskRequest{
		WorkID: adhoc.ID.String(),
		Title:  "Chase client",
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.UpdateTaskStatus(f.ctx, "work", task.ID.String(), "completed"))

	var stored domain.WorkTask
	require.NoError(t, f.db.Where("id = ?", task.ID).Take(&stored).Error)
	assert.Equal(t, domain.StatusCompleted, stored.Status)
	assert.NotNil(t, stored.CompletedAt)

	require.NoError(t, f.svc.UpdateTaskStatus(f.ctx, "work", task.ID.String(), "pending"))
	require.NoError(t, f.db.Where("id = ?", task.ID).Take(&stored).Error)
	assert.Nil(t, stored.CompletedAt)

	err = f.svc.UpdateTaskStatus(f.ctx, "periodical", task.ID.String(), "completed")
	assert.ErrorIs(t, err, domain.ErrInvalidTaskKind)

	err = f.svc.UpdateTaskStatus(f.ctx, "period", task.ID.String(), "completed")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteWorkCascades(t *testing.T) {
	f := newFixture(t)
	work := f.createRecurring(t, "Run payroll")
	period, _, err := f.svc.EnsurePeriod(f.ctx, domain.EnsurePeriodRequest{
		WorkID:      work.ID.String(),
		Name:        "Mar 2026",
		PeriodStart: time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteWork(f.ctx, work.ID.String()))

	var periods int64
	require.NoError(t, f.db.Model(&domain.RecurringPeriod{}).Where("work_id = ?", work.ID).Count(&periods).Error)
	assert.Zero(t, periods)

	var tasks int64
	require.NoError(t, f.db.Model(&domain.PeriodTask{}).Where("period_id = ?", period.ID).Count(&tasks).Error)
	assert.Zero(t, tasks)

	assert.ErrorIs(t, f.svc.DeleteWork(f.ctx, work.ID.String()), domain.ErrNotFound)
}

func TestListWorksFilters(t *testing.T) {
	f := newFixture(t)
	f.createRecurring(t)
	f.createAdhoc(t)

	recurring := true
	works, err := f.svc.ListWorks(f.ctx, domain.ListWorkRequest{Recurring: &recurring})
	require.NoError(t, err)
	require.Len(t, works, 1)
	assert.True(t, works[0].Recurring)

	works, err = f.svc.ListWorks(f.ctx, domain.ListWorkRequest{Status: "pending"})
	require.NoError(t, err)
	assert.Len(t, works, 2)

	_, err = f.svc.ListWorks(f.ctx, domain.ListWorkRequest{Status: "bogus"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}
