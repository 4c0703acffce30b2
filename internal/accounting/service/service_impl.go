package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/opsdesk/internal/accounting/domain"
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
		log:   p.Log.Named("accounting.service"),
		genID: p.GenID,
	}
}

func (s *Service) CreateGroup(ctx context.Context, req domain.CreateGroupRequest) (domain.AccountGroup, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.AccountGroup{}, domain.ErrInvalidOrganization
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.AccountGroup{}, domain.ErrInvalidName
	}
	kind, err := parseKind(req.Kind)
	if err != nil {
		return domain.AccountGroup{}, err
	}

	now := time.Now().UTC()
	group := domain.AccountGroup{
		ID:        s.genID.Generate(),
		OrgID:     orgID,
		Name:      name,
		Kind:      kind,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(&group).Error; err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.AccountGroup{}, domain.ErrDuplicateName
		}
		return domain.AccountGroup{}, err
	}
	return group, nil
}

func (s *Service) UpdateGroup(ctx context.Context, req domain.UpdateGroupRequest) (domain.AccountGroup, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.AccountGroup{}, domain.ErrInvalidOrganization
	}

	id, err := parseID(req.ID)
	if err != nil {
		return domain.AccountGroup{}, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.AccountGroup{}, domain.ErrInvalidName
	}
	kind, err := parseKind(req.Kind)
	if err != nil {
		return domain.AccountGroup{}, err
	}

	var group domain.AccountGroup
	err = s.db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, id).
		Take(&group).Error
	if err == gorm.ErrRecordNotFound {
		return domain.AccountGroup{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.AccountGroup{}, err
	}

	group.Name = name
	group.Kind = kind
	group.UpdatedAt = time.Now().UTC()
	if err := s.db.WithContext(ctx).Save(&group).Error; err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.AccountGroup{}, domain.ErrDuplicateName
		}
		return domain.AccountGroup{}, err
	}
	return group, nil
}

func (s *Service) ListGroups(ctx context.Context) ([]domain.AccountGroup, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	var groups []domain.AccountGroup
	err := s.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("name asc").
		Find(&groups).Error
	if err != nil {
		return nil, err
	}
	return groups, nil
}

func (s *Service) DeleteGroup(ctx context.Context, rawID string) error {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.ErrInvalidOrganization
	}

	id, err := parseID(rawID)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&domain.LedgerAccount{}).
			Where("org_id = ? AND group_id = ?", orgID, id).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return domain.ErrGroupNotEmpty
		}

		result := tx.Where("org_id = ? AND id = ?", orgID, id).Delete(&domain.AccountGroup{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

func (s *Service) CreateAccount(ctx context.Context, req domain.CreateAccountRequest) (domain.LedgerAccount, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.LedgerAccount{}, domain.ErrInvalidOrganization
	}

	groupID, err := parseID(req.GroupID)
	if err != nil {
		return domain.LedgerAccount{}, domain.ErrInvalidGroup
	}
	err = s.db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, groupID).
		Take(&domain.AccountGroup{}).Error
	if err == gorm.ErrRecordNotFound {
		return domain.LedgerAccount{}, domain.ErrInvalidGroup
	}
	if err != nil {
		return domain.LedgerAccount{}, err
	}

	code := strings.ToLower(strings.TrimSpace(req.Code))
	if code == "" {
		return domain.LedgerAccount{}, domain.ErrInvalidCode
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.LedgerAccount{}, domain.ErrInvalidName
	}

	now := time.Now().UTC()
	account := domain.LedgerAccount{
		ID:          s.genID.Generate(),
		OrgID:       orgID,
		GroupID:     groupID,
		Code:        code,
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.WithContext(ctx).Create(&account).Error; err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.LedgerAccount{}, domain.ErrDuplicateCode
		}
		return domain.LedgerAccount{}, err
	}
	return account, nil
}

func (s *Service) UpdateAccount(ctx context.Context, req domain.UpdateAccountRequest) (domain.LedgerAccount, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.LedgerAccount{}, domain.ErrInvalidOrganization
	}

	id, err := parseID(req.ID)
	if err != nil {
		return domain.LedgerAccount{}, err
	}

	var account domain.LedgerAccount
	err = s.db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, id).
		Take(&account).Error
	if err == gorm.ErrRecordNotFound {
		return domain.LedgerAccount{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.LedgerAccount{}, err
	}

	if strings.TrimSpace(req.GroupID) != "" {
		groupID, err := parseID(req.GroupID)
		if err != nil {
			return domain.LedgerAccount{}, domain.ErrInvalidGroup
		}
		err = s.db.WithContext(ctx).
			Where("org_id = ? AND id = ?", orgID, groupID).
			Take(&domain.AccountGroup{}).Error
		if err == gorm.ErrRecordNotFound {
			return domain.LedgerAccount{}, domain.ErrInvalidGroup
		}
		if err != nil {
			return domain.LedgerAccount{}, err
		}
		account.GroupID = groupID
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.LedgerAccount{}, domain.ErrInvalidName
	}
	account.Name = name
	account.Description = strings.TrimSpace(req.Description)
	if req.Active != nil {
		account.Active = *req.Active
	}
	account.UpdatedAt = time.Now().UTC()

	if err := s.db.WithContext(ctx).Save(&account).Error; err != nil {
		return domain.LedgerAccount{}, err
	}
	return account, nil
}

func (s *Service) ListAccounts(ctx context.Context, filter domain.ListAccountFilter) ([]domain.LedgerAccount, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	stmt := s.db.WithContext(ctx).
		Where("ledger_accounts.org_id = ?", orgID).
		Preload("Group")
	if filter.GroupID != "" {
		groupID, err := parseID(filter.GroupID)
		if err != nil {
			return nil, domain.ErrInvalidGroup
		}
		stmt = stmt.Where("ledger_accounts.group_id = ?", groupID)
	}
	if filter.Active != nil {
		stmt = stmt.Where("ledger_accounts.active = ?", *filter.Active)
	}

	var accounts []domain.LedgerAccount
	if err := stmt.Order("ledger_accounts.code asc").Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

func (s *Service) GetAccount(ctx context.Context, rawID string) (domain.LedgerAccount, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.LedgerAccount{}, domain.ErrInvalidOrganization
	}

	id, err := parseID(rawID)
	if err != nil {
		return domain.LedgerAccount{}, err
	}

	var account domain.LedgerAccount
	err = s.db.WithContext(ctx).
		Where("ledger_accounts.org_id = ? AND ledger_accounts.id = ?", orgID, id).
		Preload("Group").
		Take(&account).Error
	if err == gorm.ErrRecordNotFound {
		return domain.LedgerAccount{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.LedgerAccount{}, err
	}
	return account, nil
}

func (s *Service) DeleteAccount(ctx context.Context, rawID string) error {
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
		Delete(&domain.LedgerAccount{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func parseKind(raw string) (domain.GroupKind, error) {
	kind := domain.GroupKind(strings.ToLower(strings.TrimSpace(raw)))
	switch kind {
	case domain.GroupKindAsset, domain.GroupKindLiability, domain.GroupKindEquity,
		domain.GroupKindIncome, domain.GroupKindExpense:
		return kind, nil
	default:
		return "", domain.ErrInvalidKind
	}
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
