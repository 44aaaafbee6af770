package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Role identifies which surface a session may use.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleReseller Role = "reseller"
)

// Admin is an operator account with full control over resellers,
// credits, and referral tokens.
type Admin struct {
	ID           snowflake.ID `gorm:"primaryKey"`
	Username     string       `gorm:"type:text;not null;uniqueIndex:ux_admins_username"`
	PasswordHash string       `gorm:"column:password_hash;type:text;not null"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Admin) TableName() string { return "admins" }

// Session is a server-side login session. Only the SHA-256 of the
// cookie token is stored.
type Session struct {
	ID        snowflake.ID   `gorm:"primaryKey"`
	TokenHash string         `gorm:"column:token_hash;type:text;not null;uniqueIndex:ux_sessions_token_hash"`
	Role      Role           `gorm:"type:text;not null"`
	AccountID snowflake.ID   `gorm:"column:account_id;not null;index"`
	ExpiresAt time.Time      `gorm:"column:expires_at;not null"`
	Metadata  datatypes.JSON `gorm:"column:metadata"`
	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Session) TableName() string { return "sessions" }

// Principal is the authenticated identity resolved from a session.
type Principal struct {
	Role      Role
	AccountID snowflake.ID
	Username  string
}
