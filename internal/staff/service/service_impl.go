package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/opsdesk/internal/orgcontext"
	"github.com/smallbiznis/opsdesk/internal/staff/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("staff.service"),
		genID: p.GenID,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateStaffRequest) (domain.StaffMember, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.StaffMember{}, domain.ErrInvalidOrganization
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return domain.StaffMember{}, domain.ErrInvalidEmail
	}
	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		return domain.StaffMember{}, domain.ErrInvalidDisplayName
	}
	role, err := parseRole(req.Role)
	if err != nil {
		return domain.StaffMember{}, err
	}

	now := time.Now().UTC()
	member := domain.StaffMember{
		ID:          s.genID.Generate(),
		OrgID:       orgID,
		Email:       email,
		DisplayName: displayName,
		Role:        role,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.db.WithContext(ctx).Create(&member).Error; err != nil {
		return domain.StaffMember{}, err
	}
	return member, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateStaffRequest) (domain.StaffMember, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.StaffMember{}, domain.ErrInvalidOrganization
	}

	id, err := parseID(req.ID)
	if err != nil {
		return domain.StaffMember{}, err
	}

	var member domain.StaffMember
	err = s.db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, id).
		Take(&member).Error
	if err == gorm.ErrRecordNotFound {
		return domain.StaffMember{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.StaffMember{}, err
	}

	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		return domain.StaffMember{}, domain.ErrInvalidDisplayName
	}
	role, err := parseRole(req.Role)
	if err != nil {
		return domain.StaffMember{}, err
	}

	member.DisplayName = displayName
	member.Role = role
	if req.Active != nil {
		member.Active = *req.Active
	}
	member.UpdatedAt = time.Now().UTC()

	if err := s.db.WithContext(ctx).Save(&member).Error; err != nil {
		return domain.StaffMember{}, err
	}
	return member, nil
}

func (s *Service) List(ctx context.Context) ([]domain.StaffMember, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	var members []domain.StaffMember
	err := s.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("display_name asc").
		Find(&members).Error
	if err != nil {
		return nil, err
	}
	return members, nil
}

func (s *Service) GetByID(ctx context.Context, rawID string) (domain.StaffMember, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.StaffMember{}, domain.ErrInvalidOrganization
	}

	id, err := parseID(rawID)
	if err != nil {
		return domain.StaffMember{}, err
	}

	var member domain.StaffMember
	err = s.db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, id).
		Take(&member).Error
	if err == gorm.ErrRecordNotFound {
		return domain.StaffMember{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.StaffMember{}, err
	}
	return member, nil
}

// ResolveOrLink resolves an authenticated principal to a staff row in one
// place instead of scattering two-phase lookups through report code.
func (s *Service) ResolveOrLink(ctx context.Context, req domain.ResolveRequest) (domain.StaffMember, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.StaffMember{}, domain.ErrInvalidOrganization
	}

	authUserID := strings.TrimSpace(req.AuthUserID)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if authUserID == "" {
		return domain.StaffMember{}, domain.ErrInvalidID
	}

	var member domain.StaffMember
	err := s.db.WithContext(ctx).
		Where("org_id = ? AND auth_user_id = ?", orgID, authUserID).
		Take(&member).Error
	if err == nil {
		return member, nil
	}
	if err != gorm.ErrRecordNotFound {
		return domain.StaffMember{}, err
	}

	if email == "" {
		return domain.StaffMember{}, domain.ErrNotFound
	}

	err = s.db.WithContext(ctx).
		Where("org_id = ? AND email = ? AND auth_user_id IS NULL", orgID, email).
		Take(&member).Error
	if err == gorm.ErrRecordNotFound {
		return domain.StaffMember{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.StaffMember{}, err
	}

	member.AuthUserID = &authUserID
	member.UpdatedAt = time.Now().UTC()
	err = s.db.WithContext(ctx).
		Model(&domain.StaffMember{}).
		Where("org_id = ? AND id = ?", orgID, member.ID).
		Updates(map[string]any{
			"auth_user_id": authUserID,
			"updated_at":   member.UpdatedAt,
		}).Error
	if err != nil {
		return domain.StaffMember{}, err
	}

	s.log.Info("linked staff member to auth identity",
		zap.String("staff_id", member.ID.String()),
	)
	return member, nil
}

func parseRole(raw string) (domain.Role, error) {
	role := domain.Role(strings.ToLower(strings.TrimSpace(raw)))
	if role == "" {
		return domain.RoleMember, nil
	}
	switch role {
	case domain.RoleOwner, domain.RoleAdmin, domain.RoleMember:
		return role, nil
	default:
		return "", domain.ErrInvalidRole
	}
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
