package domain

import (
	"context"
	"errors"
	"time"

	"github.com/aestrial/keymaster/internal/catalog"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Service interface {
	// Create mints a single key. When req.KeyString is empty a unique
	// key string is generated; a supplied string that already exists
	// fails with ErrDuplicateKey.
	Create(ctx context.Context, req CreateRequest) (*LicenseKey, error)
	GetByKeyString(ctx context.Context, keyString string) (*LicenseKey, error)
	GetByID(ctx context.Context, id snowflake.ID) (*LicenseKey, error)
	// ListByReseller returns the reseller's keys in insertion order.
	ListByReseller(ctx context.Context, resellerID snowflake.ID) ([]LicenseKey, error)
	// Revoke marks the key revoked. Revoking an already revoked key is a no-op.
	Revoke(ctx context.Context, id snowflake.ID) (*LicenseKey, error)
	// ExistsKeyString reports whether a key string is already taken.
	ExistsKeyString(ctx context.Context, keyString string) (bool, error)
}

type CreateRequest struct {
	Game        catalog.Game
	ResellerID  snowflake.ID
	DeviceLimit int
	ExpiresAt   time.Time
	// KeyString optionally pins a custom key string.
	KeyString string
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, key *LicenseKey) error
	FindByKeyString(ctx context.Context, db *gorm.DB, keyString string) (*LicenseKey, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*LicenseKey, error)
	ListByReseller(ctx context.Context, db *gorm.DB, resellerID snowflake.ID) ([]LicenseKey, error)
	MarkRevoked(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	ExistsKeyString(ctx context.Context, db *gorm.DB, keyString string) (bool, error)
}

var (
	ErrNotFound       = errors.New("key_not_found")
	ErrDuplicateKey   = errors.New("duplicate_key")
	ErrInvalidGame    = errors.New("invalid_game")
	ErrInvalidLimit   = errors.New("invalid_device_limit")
	ErrInvalidExpiry  = errors.New("invalid_expiry")
	ErrInvalidRequest = errors.New("invalid_request")
)
