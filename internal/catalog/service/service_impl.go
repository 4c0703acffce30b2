package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/opsdesk/internal/catalog/domain"
	"github.com/smallbiznis/opsdesk/internal/orgcontext"
	"github.com/smallbiznis/opsdesk/pkg/db"
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
		log:   p.Log.Named("catalog.service"),
		genID: p.GenID,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateServiceRequest) (domain.ServiceOffering, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.ServiceOffering{}, domain.ErrInvalidOrganization
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.ServiceOffering{}, domain.ErrInvalidName
	}
	if req.DefaultRate < 0 {
		return domain.ServiceOffering{}, domain.ErrInvalidRate
	}

	code := strings.TrimSpace(req.Code)
	if code == "" {
		code = name
	}
	code = slug.Make(code)

	now := time.Now().UTC()
	offering := domain.ServiceOffering{
		ID:          s.genID.Generate(),
		OrgID:       orgID,
		Name:        name,
		Code:        code,
		Description: strings.TrimSpace(req.Description),
		DefaultRate: req.DefaultRate,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.db.WithContext(ctx).Create(&offering).Error; err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.ServiceOffering{}, domain.ErrDuplicateCode
		}
		return domain.ServiceOffering{}, err
	}
	return offering, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateServiceRequest) (domain.ServiceOffering, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.ServiceOffering{}, domain.ErrInvalidOrganization
	}

	id, err := parseID(req.ID)
	if err != nil {
		return domain.ServiceOffering{}, err
	}

	var offering domain.ServiceOffering
	err = s.db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, id).
		Take(&offering).Error
	if err == gorm.ErrRecordNotFound {
		return domain.ServiceOffering{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.ServiceOffering{}, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.ServiceOffering{}, domain.ErrInvalidName
	}
	if req.DefaultRate < 0 {
		return domain.ServiceOffering{}, domain.ErrInvalidRate
	}

	offering.Name = name
	offering.Description = strings.TrimSpace(req.Description)
	offering.DefaultRate = req.DefaultRate
	if req.Active != nil {
		offering.Active = *req.Active
	}
	offering.UpdatedAt = time.Now().UTC()

	if err := s.db.WithContext(ctx).Save(&offering).Error; err != nil {
		return domain.ServiceOffering{}, err
	}
	return offering, nil
}

func (s *Service) List(ctx context.Context, req domain.ListServiceRequest) ([]domain.ServiceOffering, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	stmt := s.db.WithContext(ctx).
		Model(&domain.ServiceOffering{}).
		Where("org_id = ?", orgID)
	if req.ActiveOnly {
		stmt = stmt.Where("active = ?", true)
	}

	var offerings []domain.ServiceOffering
	if err := stmt.Order("name asc").Find(&offerings).Error; err != nil {
		return nil, err
	}
	return offerings, nil
}

func (s *Service) GetByID(ctx context.Context, rawID string) (domain.ServiceOffering, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.ServiceOffering{}, domain.ErrInvalidOrganization
	}

	id, err := parseID(rawID)
	if err != nil {
		return domain.ServiceOffering{}, err
	}

	var offering domain.ServiceOffering
	err = s.db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, id).
		Take(&offering).Error
	if err == gorm.ErrRecordNotFound {
		return domain.ServiceOffering{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.ServiceOffering{}, err
	}
	return offering, nil
}

func (s *Service) Delete(ctx context.Context, rawID string) error {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.ErrInvalidOrganization
	}

	id, err := parseID(rawID)
	if err != nil {
		return err
	}

	result := s.db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, id).
		Delete(&domain.ServiceOffering{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
