package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	customerdomain "github.com/smallbiznis/opsdesk/internal/customer/domain"
	"github.com/smallbiznis/opsdesk/internal/lead/domain"
	"github.com/smallbiznis/opsdesk/internal/orgcontext"
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
		log:   p.Log.Named("lead.service"),
		genID: p.GenID,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateLeadRequest) (domain.Lead, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Lead{}, domain.ErrInvalidOrganization
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Lead{}, domain.ErrInvalidName
	}

	now := time.Now().UTC()
	lead := domain.Lead{
		ID:             s.genID.Generate(),
		OrgID:          orgID,
		Name:           name,
		Email:          strings.TrimSpace(req.Email),
		Phone:          strings.TrimSpace(req.Phone),
		Source:         strings.TrimSpace(req.Source),
		Status:         domain.StatusNew,
		EstimatedValue: req.EstimatedValue,
		Notes:          strings.TrimSpace(req.Notes),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.db.WithContext(ctx).Create(&lead).Error; err != nil {
		return domain.Lead{}, err
	}
	return lead, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateLeadRequest) (domain.Lead, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Lead{}, domain.ErrInvalidOrganization
	}

	id, err := parseID(req.ID)
	if err != nil {
		return domain.Lead{}, err
	}

	var lead domain.Lead
	err = s.db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, id).
		Take(&lead).Error
	if err == gorm.ErrRecordNotFound {
		return domain.Lead{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Lead{}, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Lead{}, domain.ErrInvalidName
	}

	if req.Status != "" {
		status, err := parseStatus(req.Status)
		if err != nil {
			return domain.Lead{}, err
		}
		// Conversion has side effects; it only happens through ConvertToCustomer.
		if status == domain.StatusConverted && lead.Status != domain.StatusConverted {
			return domain.Lead{}, domain.ErrInvalidStatus
		}
		lead.Status = status
	}

	lead.Name = name
	lead.Email = strings.TrimSpace(req.Email)
	lead.Phone = strings.TrimSpace(req.Phone)
	lead.Source = strings.TrimSpace(req.Source)
	lead.EstimatedValue = req.EstimatedValue
	lead.Notes = strings.TrimSpace(req.Notes)
	lead.UpdatedAt = time.Now().UTC()

	if err := s.db.WithContext(ctx).Save(&lead).Error; err != nil {
		return domain.Lead{}, err
	}
	return lead, nil
}

func (s *Service) List(ctx context.Context, req domain.ListLeadRequest) ([]domain.Lead, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	stmt := s.db.WithContext(ctx).
		Model(&domain.Lead{}).
		Where("org_id = ?", orgID)
	if status := strings.TrimSpace(req.Status); status != "" {
		parsed, err := parseStatus(status)
		if err != nil {
			return nil, err
		}
		stmt = stmt.Where("status = ?", parsed)
	}
	if source := strings.TrimSpace(req.Source); source != "" {
		stmt = stmt.Where("source = ?", source)
	}

	var leads []domain.Lead
	if err := stmt.Order("created_at desc, id desc").Find(&leads).Error; err != nil {
		return nil, err
	}
	return leads, nil
}

func (s *Service) GetByID(ctx context.Context, rawID string) (domain.Lead, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Lead{}, domain.ErrInvalidOrganization
	}

	id, err := parseID(rawID)
	if err != nil {
		return domain.Lead{}, err
	}

	var lead domain.Lead
	err = s.db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, id).
		Take(&lead).Error
	if err == gorm.ErrRecordNotFound {
		return domain.Lead{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Lead{}, err
	}
	return lead, nil
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
		Delete(&domain.Lead{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Service) ConvertToCustomer(ctx context.Context, rawID string) (domain.Lead, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Lead{}, domain.ErrInvalidOrganization
	}

	id, err := parseID(rawID)
	if err != nil {
		return domain.Lead{}, err
	}

	var lead domain.Lead
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("org_id = ? AND id = ?", orgID, id).Take(&lead).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return domain.ErrNotFound
			}
			return err
		}

		if lead.Status == domain.StatusConverted && lead.CustomerID != nil {
			return nil
		}
		if lead.Status == domain.StatusLost {
			return domain.ErrLeadLost
		}

		now := time.Now().UTC()
		customer := customerdomain.Customer{
			ID:        s.genID.Generate(),
			OrgID:     orgID,
			Name:      lead.Name,
			Email:     lead.Email,
			Phone:     lead.Phone,
			Metadata:  datatypes.JSONMap{"lead_id": lead.ID.String(), "source": lead.Source},
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.Create(&customer).Error; err != nil {
			return err
		}

		lead.Status = domain.StatusConverted
		lead.CustomerID = &customer.ID
		lead.UpdatedAt = now
		return tx.Save(&lead).Error
	})
	if err != nil {
		return domain.Lead{}, err
	}

	return lead, nil
}

func (s *Service) Pipeline(ctx context.Context) (domain.PipelineCounts, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.PipelineCounts{}, domain.ErrInvalidOrganization
	}

	var rows []struct {
		Status domain.Status
		Count  int64
	}
	err := s.db.WithContext(ctx).
		Model(&domain.Lead{}).
		Select("status, count(*) as count").
		Where("org_id = ?", orgID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return domain.PipelineCounts{}, err
	}

	var counts domain.PipelineCounts
	for _, row := range rows {
		switch row.Status {
		case domain.StatusNew:
			counts.New = row.Count
		case domain.StatusContacted:
			counts.Contacted = row.Count
		case domain.StatusQualified:
			counts.Qualified = row.Count
		case domain.StatusConverted:
			counts.Converted = row.Count
		case domain.StatusLost:
			counts.Lost = row.Count
		}
	}
	return counts, nil
}

func parseStatus(raw string) (domain.Status, error) {
	status := domain.Status(strings.ToLower(strings.TrimSpace(raw)))
	switch status {
	case domain.StatusNew, domain.StatusContacted, domain.StatusQualified,
		domain.StatusConverted, domain.StatusLost:
		return status, nil
	default:
		return "", domain.ErrInvalidStatus
	}
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
