package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/opsdesk/internal/orgcontext"
	"github.com/smallbiznis/opsdesk/internal/staff/domain"
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

	require.NoError(t, db.AutoMigrate(&domain.StaffMember{}))

	orgID := node.Generate()
	return &fixture{
		db:    db,
		node:  node,
		svc:   New(Params{DB: db, Log: zap.NewNop(), GenID: node}),
		orgID: orgID,
		ctx:   orgcontext.WithOrgID(context.Background(), int64(orgID)),
	}
}

func TestCreateNormalizesEmailAndRole(t *testing.T) {
	f := newFixture(t)

	member, err := f.svc.Create(f.ctx, domain.CreateStaffRequest{
		Email:       " Sam@Example.COM ",
		DisplayName: "Sam Field",
	})
	require.NoError(t, err)
	assert.Equal(t, "sam@example.com", member.Email)
	assert.Equal(t, domain.RoleMember, member.Role)
	assert.True(t, member.Active)

	_, err = f.svc.Create(f.ctx, domain.CreateStaffRequest{
		Email: "not-an-email", DisplayName: "x",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)

	_, err = f.svc.Create(f.ctx, domain.CreateStaffRequest{
		Email: "a@b.com", DisplayName: "  ",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidDisplayName)

	_, err = f.svc.Create(f.ctx, domain.CreateStaffRequest{
		Email: "a@b.com", DisplayName: "x", Role: "superuser",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidRole)
}

func TestUpdateTogglesActive(t *testing.T) {
	f := newFixture(t)
	member, err := f.svc.Create(f.ctx, domain.CreateStaffRequest{
		Email: "sam@example.com", DisplayName: "Sam Field", Role: "admin",
	})
	require.NoError(t, err)

	inactive := false
	updated, err := f.svc.Update(f.ctx, domain.UpdateStaffRequest{
		ID:          member.ID.String(),
		DisplayName: "Sam Field",
		Role:        "member",
		Active:      &inactive,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleMember, updated.Role)
	assert.False(t, updated.Active)

	// Omitting Active leaves the flag untouched.
	updated, err = f.svc.Update(f.ctx, domain.UpdateStaffRequest{
		ID:          member.ID.String(),
		DisplayName: "Sam F",
	})
	require.NoError(t, err)
	assert.False(t, updated.Active)
}

func TestResolveOrLinkFindsByAuthUserID(t *testing.T) {
	f := newFixture(t)
	member, err := f.svc.Create(f.ctx, domain.CreateStaffRequest{
		Email: "sam@example.com", DisplayName: "Sam Field",
	})
	require.NoError(t, err)
	authID := "auth0|abc123"
	require.NoError(t, f.db.Model(&domain.StaffMember{}).
		Where("id = ?", member.ID).
		Update("auth_user_id", authID).Error)

	resolved, err := f.svc.ResolveOrLink(f.ctx, domain.ResolveRequest{AuthUserID: authID})
	require.NoError(t, err)
	assert.Equal(t, member.ID, resolved.ID)
}

func TestResolveOrLinkBackfillsByEmail(t *testing.T) {
	f := newFixture(t)
	member, err := f.svc.Create(f.ctx, domain.CreateStaffRequest{
		Email: "sam@example.com", DisplayName: "Sam Field",
	})
	require.NoError(t, err)

	resolved, err := f.svc.ResolveOrLink(f.ctx, domain.ResolveRequest{
		AuthUserID: "auth0|abc123",
		Email:      " SAM@example.com ",
	})
	require.NoError(t, err)
	assert.Equal(t, member.ID, resolved.ID)
	require.NotNil(t, resolved.AuthUserID)
	assert.Equal(t, "auth0|abc123", *resolved.AuthUserID)

	// The link is persisted, so the next resolve hits the auth id path.
	var stored domain.StaffMember
	require.NoError(t, f.db.Where("id = ?", member.ID).Take(&stored).Error)
	require.NotNil(t, stored.AuthUserID)
	assert.Equal(t, "auth0|abc123", *stored.AuthUserID)
}

func TestResolveOrLinkUnknownPrincipal(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ResolveOrLink(f.ctx, domain.ResolveRequest{AuthUserID: ""})
	assert.ErrorIs(t, err, domain.ErrInvalidID)

	_, err = f.svc.ResolveOrLink(f.ctx, domain.ResolveRequest{AuthUserID: "auth0|zzz"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.ResolveOrLink(f.ctx, domain.ResolveRequest{
		AuthUserID: "auth0|zzz",
		Email:      "nobody@example.com",
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListOrdersByDisplayName(t *testing.T) {
	f := newFixture(t)
	for _, name := range []string{"Zoe", "Alex", "Mira"} {
		_, err := f.svc.Create(f.ctx, domain.CreateStaffRequest{
			Email:       fmt.Sprintf("%s@example.com", name),
			DisplayName: name,
		})
		require.NoError(t, err)
	}

	members, err := f.svc.List(f.ctx)
	require.NoError(t, err)
	require.Len(t, members, 3)
	assert.Equal(t, "Alex", members[0].DisplayName)
	assert.Equal(t, "Zoe", members[2].DisplayName)

	members, err = f.svc.List(orgcontext.WithOrgID(context.Background(), int64(f.node.Generate())))
	require.NoError(t, err)
	assert.Empty(t, members)
}
