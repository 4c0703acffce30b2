package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/opsdesk/internal/accounting/domain"
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
		&domain.AccountGroup{},
		&domain.LedgerAccount{},
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

func (f *fixture) createGroup(t *testing.T, name, kind string) domain.AccountGroup {
	t.Helper()
	group, err := f.svc.CreateGroup(f.ctx, domain.CreateGroupRequest{Name: name, Kind: kind})
	require.NoError(t, err)
	return group
}

func TestCreateGroupValidation(t *testing.T) {
	f := newFixture(t)

	group := f.createGroup(t, "Operating Expenses", "expense")
	assert.Equal(t, domain.GroupKindExpense, group.Kind)

	_, err := f.svc.CreateGroup(f.ctx, domain.CreateGroupRequest{Name: " ", Kind: "expense"})
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = f.svc.CreateGroup(f.ctx, domain.CreateGroupRequest{Name: "x", Kind: "misc"})
	assert.ErrorIs(t, err, domain.ErrInvalidKind)

	_, err = f.svc.CreateGroup(f.ctx, domain.CreateGroupRequest{Name: "Operating Expenses", Kind: "income"})
	assert.ErrorIs(t, err, domain.ErrDuplicateName)

	// Other organizations may reuse the name.
	otherCtx := orgcontext.WithOrgID(context.Background(), int64(f.node.Generate()))
	_, err = f.svc.CreateGroup(otherCtx, domain.CreateGroupRequest{Name: "Operating Expenses", Kind: "expense"})
	assert.NoError(t, err)
}

func TestDeleteGroupRefusedWhileAccountsRemain(t *testing.T) {
	f := newFixture(t)
	group := f.createGroup(t, "Income", "income")
	account, err := f.svc.CreateAccount(f.ctx, domain.CreateAccountRequest{
		GroupID: group.ID.String(),
		Code:    "4000",
		Name:    "Sales",
	})
	require.NoError(t, err)

	err = f.svc.DeleteGroup(f.ctx, group.ID.String())
	assert.ErrorIs(t, err, domain.ErrGroupNotEmpty)

	require.NoError(t, f.svc.DeleteAccount(f.ctx, account.ID.String()))
	require.NoError(t, f.svc.DeleteGroup(f.ctx, group.ID.String()))
	assert.ErrorIs(t, f.svc.DeleteGroup(f.ctx, group.ID.String()), domain.ErrNotFound)
}

func TestCreateAccountValidation(t *testing.T) {
	f := newFixture(t)
	group := f.createGroup(t, "Income", "income")

	account, err := f.svc.CreateAccount(f.ctx, domain.CreateAccountRequest{
		GroupID: group.ID.String(),
		Code:    " SALES-4000 ",
		Name:    "Sales",
	})
	require.NoError(t, err)
	assert.Equal(t, "sales-4000", account.Code)
	assert.True(t, account.Active)

	_, err = f.svc.CreateAccount(f.ctx, domain.CreateAccountRequest{
		GroupID: f.node.Generate().String(),
		Code:    "4001",
		Name:    "x",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidGroup)

	_, err = f.svc.CreateAccount(f.ctx, domain.CreateAccountRequest{
		GroupID: group.ID.String(),
		Code:    "sales-4000",
		Name:    "Duplicate",
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateCode)
}

func TestUpdateAccountMovesGroupAndTogglesActive(t *testing.T) {
	f := newFixture(t)
	income := f.createGroup(t, "Income", "income")
	expenses := f.createGroup(t, "Expenses", "expense")
	account, err := f.svc.CreateAccount(f.ctx, domain.CreateAccountRequest{
		GroupID: income.ID.String(),
		Code:    "4000",
		Name:    "Sales",
	})
	require.NoError(t, err)

	inactive := false
	updated, err := f.svc.UpdateAccount(f.ctx, domain.UpdateAccountRequest{
		ID:      account.ID.String(),
		GroupID: expenses.ID.String(),
		Name:    "Reclassified",
		Active:  &inactive,
	})
	require.NoError(t, err)
	assert.Equal(t, expenses.ID, updated.GroupID)
	assert.False(t, updated.Active)

	_, err = f.svc.UpdateAccount(f.ctx, domain.UpdateAccountRequest{
		ID:      account.ID.String(),
		GroupID: f.node.Generate().String(),
		Name:    "x",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidGroup)
}

func TestListAccountsFilters(t *testing.T) {
	f := newFixture(t)
	income := f.createGroup(t, "Income", "income")
	expenses := f.createGroup(t, "Expenses", "expense")

	_, err := f.svc.CreateAccount(f.ctx, domain.CreateAccountRequest{
		GroupID: income.ID.String(), Code: "4000", Name: "Sales",
	})
	require.NoError(t, err)
	rent, err := f.svc.CreateAccount(f.ctx, domain.CreateAccountRequest{
		GroupID: expenses.ID.String(), Code: "6000", Name: "Rent",
	})
	require.NoError(t, err)
	inactive := false
	_, err = f.svc.UpdateAccount(f.ctx, domain.UpdateAccountRequest{
		ID: rent.ID.String(), Name: "Rent", Active: &inactive,
	})
	require.NoError(t, err)

	accounts, err := f.svc.ListAccounts(f.ctx, domain.ListAccountFilter{GroupID: expenses.ID.String()})
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "6000", accounts[0].Code)
	require.NotNil(t, accounts[0].Group)
	assert.Equal(t, "Expenses", accounts[0].Group.Name)

	active := true
	accounts, err = f.svc.ListAccounts(f.ctx, domain.ListAccountFilter{Active: &active})
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "4000", accounts[0].Code)
}
