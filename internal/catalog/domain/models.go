package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// ServiceOffering is a billable service master (e.g. GST filing, bookkeeping).
type ServiceOffering struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID `gorm:"not null;uniqueIndex:ux_service_offerings_org_code,priority:1" json:"organization_id"`
	Name        string       `gorm:"not null" json:"name"`
	Code        string       `gorm:"not null;uniqueIndex:ux_service_offerings_org_code,priority:2" json:"code"`
	Description string       `json:"description,omitempty"`
	DefaultRate int64        `gorm:"not null;default:0" json:"default_rate"`
	Active      bool         `gorm:"not null;default:true" json:"active"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}
