package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/opsdesk/internal/organization/domain"
	"github.com/smallbiznis/opsdesk/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
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
		log:   p.Log.Named("organization.service"),
		genID: p.GenID,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateOrganizationRequest) (domain.Organization, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Organization{}, domain.ErrInvalidName
	}

	now := time.Now().UTC()
	org := domain.Organization{
		ID:           s.genID.Generate(),
		Name:         name,
		Slug:         slug.Make(name),
		SupportEmail: strings.TrimSpace(req.SupportEmail),
		CountryCode:  strings.ToUpper(strings.TrimSpace(req.CountryCode)),
		TimezoneName: strings.TrimSpace(req.TimezoneName),
		Metadata:     datatypes.JSONMap{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.db.WithContext(ctx).Create(&org).Error; err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Organization{}, domain.ErrDuplicateSlug
		}
		return domain.Organization{}, err
	}
	return org, nil
}

func (s *Service) GetByID(ctx context.Context, rawID string) (domain.Organization, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(rawID))
	if err != nil || id == 0 {
		return domain.Organization{}, domain.ErrInvalidID
	}

	var org domain.Organization
	err = s.db.WithContext(ctx).Where("id = ?", id).Take(&org).Error
	if err == gorm.ErrRecordNotFound {
		return domain.Organization{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Organization{}, err
	}
	return org, nil
}

func (s *Service) GetBySlug(ctx context.Context, rawSlug string) (domain.Organization, error) {
	value := strings.TrimSpace(rawSlug)
	if value == "" {
		return domain.Organization{}, domain.ErrInvalidID
	}

	var org domain.Organization
	err := s.db.WithContext(ctx).Where("slug = ?", value).Take(&org).Error
	if err == gorm.ErrRecordNotFound {
		return domain.Organization{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Organization{}, err
	}
	return org, nil
}

func (s *Service) List(ctx context.Context) ([]domain.Organization, error) {
	var orgs []domain.Organization
	if err := s.db.WithContext(ctx).Order("created_at asc").Find(&orgs).Error; err != nil {
		return nil, err
	}
	return orgs, nil
}
