package repository

import (
	"context"
	"errors"

	devicedomain "github.com/aestrial/keymaster/internal/device/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() devicedomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, device *devicedomain.Device) error {
	return db.WithContext(ctx).Create(device).Error
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, keyID snowflake.ID, deviceID string) (*devicedomain.Device, error) {
	var device devicedomain.Device
	err := db.WithContext(ctx).
		Where("key_id = ? AND device_id = ?", keyID, deviceID).
		First(&device).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &device, nil
}

func (r *repo) ListByKey(ctx context.Context, db *gorm.DB, keyID snowflake.ID) ([]devicedomain.Device, error) {
	var devices []devicedomain.Device
	err := db.WithContext(ctx).
		Where("key_id = ?", keyID).
		Order("first_connected ASC, id ASC").
		Find(&devices).Error
	if err != nil {
		return nil, err
	}
	return devices, nil
}

func (r *repo) CountByKey(ctx context.Context, db *gorm.DB, keyID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&devicedomain.Device{}).
		Where("key_id = ?", keyID).
		Count(&count).Error
	return count, err
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, keyID snowflake.ID, deviceID string) (int64, error) {
	res := db.WithContext(ctx).
		Where("key_id = ? AND device_id = ?", keyID, deviceID).
		Delete(&devicedomain.Device{})
	return res.RowsAffected, res.Error
}
