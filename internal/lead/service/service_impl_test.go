package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	customerdomain "github.com/smallbiznis/opsdesk/internal/customer/domain"
	"github.com/smallbiznis/opsdesk/internal/lead/domain"
	"github.com/smallbiznis/opsdesk/internal/orgcontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db    *gorm.DB
	node  *snowflake.Node
	svc   domain.Service
	orgID snowflake.ID
	ctx   context.Context
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
		&domain.Lead{},
		&customerdomain.Customer{},
	))

	orgID := node.Generate()
	return &fixture{
		db:    db,
		node:  node,
		svc:   New(Params{DB: db, Log: zap.NewNop(), GenID: node}),
		orgID: orgID,
		ctx:   orgcontext.WithOrgID(context.Background(), int64(orgID)),
	}
}

func (f *fixture) createLead(t *testing.T, name string) domain.Lead {
	t.Helper()
	lead, err := f.svc.Create(f.ctx, domain.CreateLeadRequest{
		Name:   name,
		Email:  "lead@example.com",
		Source: "referral",
	})
	require.NoError(t, err)
	return lead
}

func TestCreateTrimsAndDefaults(t *testing.T) {
	f := newFixture(t)

	lead, err := f.svc.Create(f.ctx, domain.CreateLeadRequest{
		Name:   "  Jordan Mills  ",
		Email:  " jordan@example.com ",
		Source: "web",
	})
	require.NoError(t, err)
	assert.Equal(t, "Jordan Mills", lead.Name)
	assert.Equal(t, "jordan@example.com", lead.Email)
	assert.Equal(t, domain.StatusNew, lead.Status)

	_, err = f.svc.Create(f.ctx, domain.CreateLeadRequest{Name: "   "})
	assert.ErrorIs(t, err, domain.ErrInvalidName)
}

func TestUpdateCannotForceConvertedStatus(t *testing.T) {
	f := newFixture(t)
	lead := f.createLead(t, "Jordan Mills")

	updated, err := f.svc.Update(f.ctx, domain.UpdateLeadRequest{
		ID:     lead.ID.String(),
		Name:   lead.Name,
		Status: "qualified",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusQualified, updated.Status)

	_, err = f.svc.Update(f.ctx, domain.UpdateLeadRequest{
		ID:     lead.ID.String(),
		Name:   lead.Name,
		Status: "converted",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestConvertToCustomerCreatesCustomer(t *testing.T) {
	f := newFixture(t)
	lead := f.createLead(t, "Jordan Mills")

	converted, err := f.svc.ConvertToCustomer(f.ctx, lead.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConverted, converted.Status)
	require.NotNil(t, converted.CustomerID)

	var customer customerdomain.Customer
	require.NoError(t, f.db.Where("id = ?", *converted.CustomerID).Take(&customer).Error)
	assert.Equal(t, f.orgID, customer.OrgID)
	assert.Equal(t, "Jordan Mills", customer.Name)
	assert.Equal(t, lead.ID.String(), customer.Metadata["lead_id"])
}

func TestConvertToCustomerIsIdempotent(t *testing.T) {
	f := newFixture(t)
	lead := f.createLead(t, "Jordan Mills")

	first, err := f.svc.ConvertToCustomer(f.ctx, lead.ID.String())
	require.NoError(t, err)
	second, err := f.svc.ConvertToCustomer(f.ctx, lead.ID.String())
	require.NoError(t, err)
	assert.Equal(t, first.CustomerID, second.CustomerID)

	var customers int64
	require.NoError(t, f.db.Model(&customerdomain.Customer{}).
		Where("org_id = ?", f.orgID).Count(&customers).Error)
	assert.EqualValues(t, 1, customers)
}

func TestConvertToCustomerRejectsLostLead(t *testing.T) {
	f := newFixture(t)
	lead := f.createLead(t, "Jordan Mills")
	_, err := f.svc.Update(f.ctx, domain.UpdateLeadRequest{
		ID:     lead.ID.String(),
		Name:   lead.Name,
		Status: "lost",
	})
	require.NoError(t, err)

	_, err = f.svc.ConvertToCustomer(f.ctx, lead.ID.String())
	assert.ErrorIs(t, err, domain.ErrLeadLost)

	_, err = f.svc.ConvertToCustomer(f.ctx, f.node.Generate().String())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPipelineCountsByStatus(t *testing.T) {
	f := newFixture(t)
	f.createLead(t, "A")
	f.createLead(t, "B")
	qualified := f.createLead(t, "C")
	_, err := f.svc.Update(f.ctx, domain.UpdateLeadRequest{
		ID:     qualified.ID.String(),
		Name:   qualified.Name,
		Status: "qualified",
	})
	require.NoError(t, err)
	converted := f.createLead(t, "D")
	_, err = f.svc.ConvertToCustomer(f.ctx, converted.ID.String())
	require.NoError(t, err)

	counts, err := f.svc.Pipeline(f.ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, counts.New)
	assert.EqualValues(t, 1, counts.Qualified)
	assert.EqualValues(t, 1, counts.Converted)
	assert.Zero(t, counts.Lost)
}

func TestListFiltersByStatusAndSource(t *testing.T) {
	f := newFixture(t)
	f.createLead(t, "A")
	other, err := f.svc.Create(f.ctx, domain.CreateLeadRequest{Name: "B", Source: "web"})
	require.NoError(t, err)

	leads, err := f.svc.List(f.ctx, domain.ListLeadRequest{Source: "web"})
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, other.ID, leads[0].ID)

	_, err = f.svc.List(f.ctx, domain.ListLeadRequest{Status: "bogus"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	leads, err = f.svc.List(orgcontext.WithOrgID(context.Background(), int64(f.node.Generate())), domain.ListLeadRequest{})
	require.NoError(t, err)
	assert.Empty(t, leads)
}

func TestDeleteLead(t *testing.T) {
	f := newFixture(t)
	lead := f.createLead(t, "A")

	require.NoError(t, f.svc.Delete(f.ctx, lead.ID.String()))
	assert.ErrorIs(t, f.svc.Delete(f.ctx, lead.ID.String()), domain.ErrNotFound)

	_, err := f.svc.GetByID(f.ctx, lead.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
