package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Service interface {
	// TryBind registers deviceID under the key unless it is already
	// bound (idempotent) or the key's device limit is reached. Bindings
	// of one key are serialized, so exactly deviceLimit distinct
	// devices can ever succeed.
	TryBind(ctx context.Context, keyID snowflake.ID, deviceID string, deviceLimit int) (*BindResult, error)
	// ListDevices returns the key's bound devices ordered by first connection.
	ListDevices(ctx context.Context, keyID snowflake.ID) ([]Device, error)
	CountDevices(ctx context.Context, keyID snowflake.ID) (int, error)
	// Remove unbinds a device, freeing one slot on the key. It reports
	// whether a binding existed; a miss is a normal outcome, not an
	// error.
	Remove(ctx context.Context, keyID snowflake.ID, deviceID string) (bool, error)
}

type BindResult struct {
	// Bound is true when the device holds a slot after the call,
	// whether it was just registered or was already present.
	Bound bool
	// AlreadyBound distinguishes an idempotent re-verify from a fresh
	// registration.
	AlreadyBound bool
	Device       *Device
	// Count is the number of bound devices after the call.
	Count int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, device *Device) error
	Find(ctx context.Context, db *gorm.DB, keyID snowflake.ID, deviceID string) (*Device, error)
	ListByKey(ctx context.Context, db *gorm.DB, keyID snowflake.ID) ([]Device, error)
	CountByKey(ctx context.Context, db *gorm.DB, keyID snowflake.ID) (int64, error)
	Delete(ctx context.Context, db *gorm.DB, keyID snowflake.ID, deviceID string) (int64, error)
}

var (
	ErrNotFound        = errors.New("device_not_found")
	ErrInvalidDeviceID = errors.New("invalid_device_id")
)
