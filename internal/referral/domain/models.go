package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// ReferralToken is a single-use invitation to register a reseller
// account. Once consumed it records which account it created.
type ReferralToken struct {
	ID        snowflake.ID  `gorm:"primaryKey"`
	Token     string        `gorm:"type:text;not null;uniqueIndex:ux_referral_tokens_token"`
	IsUsed    bool          `gorm:"column:is_used;not null;default:false"`
	UsedBy    *snowflake.ID `gorm:"column:used_by"`
	CreatedAt time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (ReferralToken) TableName() string { return "referral_tokens" }
