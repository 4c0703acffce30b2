// Package domain contains the accounting master records: account
// groups and the chart of ledger accounts under them.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// GroupKind classifies an account group in the chart of accounts.
type GroupKind string

const (
	GroupKindAsset     GroupKind = "asset"
	GroupKindLiability GroupKind = "liability"
	GroupKindEquity    GroupKind = "equity"
	GroupKindIncome    GroupKind = "income"
	GroupKindExpense   GroupKind = "expense"
)

// AccountGroup is a named bucket of ledger accounts of one kind.
type AccountGroup struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID `gorm:"not null;index;uniqueIndex:ux_account_groups_org_name,priority:1" json:"org_id"`
	Name      string       `gorm:"not null;uniqueIndex:ux_account_groups_org_name,priority:2" json:"name"`
	Kind      GroupKind    `gorm:"type:text;not null" json:"kind"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (AccountGroup) TableName() string { return "account_groups" }

// LedgerAccount is one entry of the chart of accounts. Code is unique
// per organization.
type LedgerAccount struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID `gorm:"not null;index;uniqueIndex:ux_ledger_accounts_org_code,priority:1" json:"org_id"`
	GroupID     snowflake.ID `gorm:"not null;index" json:"group_id"`
	Code        string       `gorm:"type:text;not null;uniqueIndex:ux_ledger_accounts_org_code,priority:2" json:"code"`
	Name        string       `gorm:"type:text;not null" json:"name"`
	Description string       `gorm:"type:text" json:"description,omitempty"`
	Active      bool         `gorm:"not null;default:true" json:"active"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	Group *AccountGroup `gorm:"foreignKey:GroupID" json:"group,omitempty"`
}

// TableName sets the database table name.
func (LedgerAccount) TableName() string { return "ledger_accounts" }
