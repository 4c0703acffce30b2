package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// StaffMember is a back-office user who can be assigned works and tasks.
// AuthUserID links the row to the external auth provider identity; it is
// backfilled lazily for members created before the link existed.
type StaffMember struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID `gorm:"not null;index" json:"organization_id"`
	AuthUserID  *string      `gorm:"uniqueIndex" json:"auth_user_id,omitempty"`
	Email       string       `gorm:"not null;index" json:"email"`
	DisplayName string       `gorm:"not null" json:"display_name"`
	Role        Role         `gorm:"not null;default:member" json:"role"`
	Active      bool         `gorm:"not null;default:true" json:"active"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}
