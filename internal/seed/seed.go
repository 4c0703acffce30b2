// Package seed bootstraps the default organization and chart of
// accounts so a fresh install is usable without manual setup.
package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	accountingdomain "github.com/smallbiznis/opsdesk/internal/accounting/domain"
	organizationdomain "github.com/smallbiznis/opsdesk/internal/organization/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultOrgName = "Main"
	defaultOrgSlug = "main"
)

type seedAccount struct {
	Code string
	Name string
}

type seedGroup struct {
	Name     string
	Kind     accountingdomain.GroupKind
	Accounts []seedAccount
}

// defaultChart is the starter chart of accounts for a service business.
var defaultChart = []seedGroup{
	{
		Name: "Current Assets",
		Kind: accountingdomain.GroupKindAsset,
		Accounts: []seedAccount{
			{Code: "cash", Name: "Cash"},
			{Code: "accounts_receivable", Name: "Accounts Receivable"},
		},
	},
	{
		Name: "Current Liabilities",
		Kind: accountingdomain.GroupKindLiability,
		Accounts: []seedAccount{
			{Code: "tax_payable", Name: "Tax Payable"},
			{Code: "accounts_payable", Name: "Accounts Payable"},
		},
	},
	{
		Name: "Income",
		Kind: accountingdomain.GroupKindIncome,
		Accounts: []seedAccount{
			{Code: "service_revenue", Name: "Service Revenue"},
		},
	},
	{
		Name: "Expenses",
		Kind: accountingdomain.GroupKindExpense,
		Accounts: []seedAccount{
			{Code: "office_expense", Name: "Office Expense"},
			{Code: "salaries_expense", Name: "Salaries Expense"},
		},
	},
}

// EnsureMainOrg seeds the default organization for startup bootstrap.
func EnsureMainOrg(db *gorm.DB) error {
	return ensureMainOrg(db, 0)
}

// EnsureMainOrgWithID seeds the default organization under a fixed id,
// used when DEFAULT_ORG pins the tenant for single-org installs.
func EnsureMainOrgWithID(db *gorm.DB, orgID int64) error {
	return ensureMainOrg(db, snowflake.ID(orgID))
}

func ensureMainOrg(db *gorm.DB, orgID snowflake.ID) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		org, err := ensureOrgTx(ctx, tx, node, orgID)
		if err != nil {
			return err
		}
		return ensureChartOfAccountsTx(ctx, tx, node, org.ID)
	})
}

func ensureOrgTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, orgID snowflake.ID) (organizationdomain.Organization, error) {
	var org organizationdomain.Organization
	err := tx.WithContext(ctx).
		Where("slug = ?", defaultOrgSlug).
		First(&org).Error
	if err == nil {
		return org, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return organizationdomain.Organization{}, err
	}

	id := orgID
	if id == 0 {
		id = node.Generate()
	}
	now := time.Now().UTC()
	org = organizationdomain.Organization{
		ID:        id,
		Name:      defaultOrgName,
		Slug:      defaultOrgSlug,
		IsDefault: true,
		Metadata:  datatypes.JSONMap{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.WithContext(ctx).Create(&org).Error; err != nil {
		return organizationdomain.Organization{}, err
	}
	return org, nil
}

func ensureChartOfAccountsTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, orgID snowflake.ID) error {
	now := time.Now().UTC()
	for _, groupSeed := range defaultChart {
		var group accountingdomain.AccountGroup
		err := tx.WithContext(ctx).
			Where("org_id = ? AND name = ?", orgID, groupSeed.Name).
			First(&group).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			group = accountingdomain.AccountGroup{
				ID:        node.Generate(),
				OrgID:     orgID,
				Name:      groupSeed.Name,
				Kind:      groupSeed.Kind,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := tx.WithContext(ctx).Create(&group).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		for _, accountSeed := range groupSeed.Accounts {
			var count int64
			err := tx.WithContext(ctx).
				Model(&accountingdomain.LedgerAccount{}).
				Where("org_id = ? AND code = ?", orgID, accountSeed.Code).
				Count(&count).Error
			if err != nil {
				return err
			}
			if count > 0 {
				continue
			}

			account := accountingdomain.LedgerAccount{
				ID:        node.Generate(),
				OrgID:     orgID,
				GroupID:   group.ID,
				Code:      accountSeed.Code,
				Name:      accountSeed.Name,
				Active:    true,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := tx.WithContext(ctx).Create(&account).Error; err != nil {
				return err
			}
		}
	}
	return nil
}
