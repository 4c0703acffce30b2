package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusNew       Status = "new"
	StatusContacted Status = "contacted"
	StatusQualified Status = "qualified"
	StatusConverted Status = "converted"
	StatusLost      Status = "lost"
)

type Lead struct {
	ID             snowflake.ID  `gorm:"primaryKey" json:"id"`
	OrgID          snowflake.ID  `gorm:"not null;index" json:"organization_id"`
	Name           string        `gorm:"not null" json:"name"`
	Email          string        `json:"email,omitempty"`
	Phone          string        `json:"phone,omitempty"`
	Source         string        `json:"source,omitempty"`
	Status         Status        `gorm:"not null;default:new;index" json:"status"`
	EstimatedValue int64         `gorm:"not null;default:0" json:"estimated_value"`
	Notes          string        `json:"notes,omitempty"`
	CustomerID     *snowflake.ID `gorm:"index" json:"customer_id,omitempty"`
	CreatedAt      time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}
