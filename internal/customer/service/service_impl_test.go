package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/opsdesk/internal/customer/domain"
	"github.com/smallbiznis/opsdesk/internal/customer/repository"
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

	require.NoError(t, db.AutoMigrate(&domain.Customer{}))

	orgID := node.Generate()
	return &fixture{
		db:    db,
		node:  node,
		svc:   New(Params{DB: db, Log: zap.NewNop(), GenID: node, Repo: repository.Provide()}),
		orgID: orgID,
		ctx:   orgcontext.WithOrgID(context.Background(), int64(orgID)),
	}
}

func (f *fixture) createCustomer(t *testing.T, name, email string) domain.Customer {
	t.Helper()
	customer, err := f.svc.Create(f.ctx, domain.CreateCustomerRequest{Name: name, Email: email})
	require.NoError(t, err)
	return customer
}

func TestCreateValidatesNameAndEmail(t *testing.T) {
	f := newFixture(t)

	customer, err := f.svc.Create(f.ctx, domain.CreateCustomerRequest{
		Name:    "  Acme Ltd  ",
		Email:   " billing@acme.example ",
		TaxID:   " GB123456789 ",
		Address: "1 High Street",
	})
	require.NoError(t, err)
	assert.Equal(t, "Acme Ltd", customer.Name)
	assert.Equal(t, "billing@acme.example", customer.Email)
	assert.Equal(t, "GB123456789", customer.TaxID)

	_, err = f.svc.Create(f.ctx, domain.CreateCustomerRequest{Name: " ", Email: "a@b.com"})
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = f.svc.Create(f.ctx, domain.CreateCustomerRequest{Name: "x", Email: "not-an-email"})
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)

	_, err = f.svc.Create(context.Background(), domain.CreateCustomerRequest{Name: "x", Email: "a@b.com"})
	assert.ErrorIs(t, err, domain.ErrInvalidOrganization)
}

func TestUpdateRewritesContactFields(t *testing.T) {
	f := newFixture(t)
	customer := f.createCustomer(t, "Acme Ltd", "old@acme.example")

	updated, err := f.svc.Update(f.ctx, domain.UpdateCustomerRequest{
		ID:    customer.ID.String(),
		Name:  "Acme Holdings",
		Email: "new@acme.example",
		Phone: "020 7946 0000",
	})
	require.NoError(t, err)
	assert.Equal(t, "Acme Holdings", updated.Name)
	assert.Equal(t, "new@acme.example", updated.Email)
	assert.Equal(t, "020 7946 0000", updated.Phone)

	_, err = f.svc.Update(f.ctx, domain.UpdateCustomerRequest{
		ID: f.node.Generate().String(), Name: "x", Email: "a@b.com",
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.Update(f.ctx, domain.UpdateCustomerRequest{
		ID: "garbage", Name: "x", Email: "a@b.com",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}

func TestListFiltersAndPaginates(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 3; i++ {
		f.createCustomer(t, fmt.Sprintf("Customer %d", i), fmt.Sprintf("c%d@example.com", i))
	}

	resp, err := f.svc.List(f.ctx, domain.ListCustomerRequest{Email: "c1@example.com"})
	require.NoError(t, err)
	require.Len(t, resp.Customers, 1)
	assert.Equal(t, "Customer 1", resp.Customers[0].Name)

	resp, err = f.svc.List(f.ctx, domain.ListCustomerRequest{PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, resp.Customers, 2)
	assert.True(t, resp.HasMore)

	otherCtx := orgcontext.WithOrgID(context.Background(), int64(f.node.Generate()))
	resp, err = f.svc.List(otherCtx, domain.ListCustomerRequest{})
	require.NoError(t, err)
	assert.Empty(t, resp.Customers)
}

func TestGetAndDeleteScopedToOrganization(t *testing.T) {
	f := newFixture(t)
	customer := f.createCustomer(t, "Acme Ltd", "billing@acme.example")

	got, err := f.svc.GetByID(f.ctx, domain.GetCustomerRequest{ID: customer.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, customer.ID, got.ID)

	otherCtx := orgcontext.WithOrgID(context.Background(), int64(f.node.Generate()))
	_, err = f.svc.GetByID(otherCtx, domain.GetCustomerRequest{ID: customer.ID.String()})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, f.svc.Delete(f.ctx, customer.ID.String()))
	assert.ErrorIs(t, f.svc.Delete(f.ctx, customer.ID.String()), domain.ErrNotFound)
}
