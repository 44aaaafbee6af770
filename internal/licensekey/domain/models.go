package domain

import (
	"time"

	"github.com/aestrial/keymaster/internal/catalog"
	"github.com/bwmarrin/snowflake"
)

// LicenseKey is a license credential entitling use of one game.
// KeyString is immutable once created and globally unique across resellers.
type LicenseKey struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	KeyString   string       `gorm:"column:key_string;type:text;not null;uniqueIndex:ux_license_keys_key_string"`
	Game        catalog.Game `gorm:"type:text;not null"`
	ResellerID  snowflake.ID `gorm:"column:reseller_id;not null;index"`
	DeviceLimit int          `gorm:"column:device_limit;not null"`
	ExpiresAt   time.Time    `gorm:"column:expires_at;not null"`
	IsRevoked   bool         `gorm:"column:is_revoked;not null;default:false"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (LicenseKey) TableName() string { return "license_keys" }

// Status derives the display status for a key at the given instant.
func (k *LicenseKey) Status(now time.Time) string {
	switch {
	case k.IsRevoked:
		return "REVOKED"
	case !now.Before(k.ExpiresAt):
		return "EXPIRED"
	default:
		return "ACTIVE"
	}
}
