package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Reseller is an account that buys credits and issues license keys.
// Credits is the spendable balance; one credit mints one key.
type Reseller struct {
	ID               snowflake.ID `gorm:"primaryKey"`
	Username         string       `gorm:"type:text;not null;uniqueIndex:ux_resellers_username"`
	PasswordHash     string       `gorm:"column:password_hash;type:text;not null"`
	Credits          int64        `gorm:"not null;default:0"`
	IsActive         bool         `gorm:"column:is_active;not null;default:true"`
	RegistrationDate time.Time    `gorm:"column:registration_date;not null"`
}

// TableName sets the database table name.
func (Reseller) TableName() string { return "resellers" }
