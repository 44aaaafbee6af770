package repository

import (
	"context"
	"errors"

	licensekeydomain "github.com/aestrial/keymaster/internal/licensekey/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() licensekeydomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, key *licensekeydomain.LicenseKey) error {
	return db.WithContext(ctx).Create(key).Error
}

func (r *repo) FindByKeyString(ctx context.Context, db *gorm.DB, keyString string) (*licensekeydomain.LicenseKey, error) {
	var key licensekeydomain.LicenseKey
	err := db.WithContext(ctx).Where("key_string = ?", keyString).First(&key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &key, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*licensekeydomain.LicenseKey, error) {
	var key licensekeydomain.LicenseKey
	err := db.WithContext(ctx).Where("id = ?", id).First(&key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &key, nil
}

func (r *repo) ListByReseller(ctx context.Context, db *gorm.DB, resellerID snowflake.ID) ([]licensekeydomain.LicenseKey, error) {
	var keys []licensekeydomain.LicenseKey
	err := db.WithContext(ctx).
		Where("reseller_id = ?", resellerID).
		Order("id ASC").
		Find(&keys).Error
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (r *repo) MarkRevoked(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).
		Model(&licensekeydomain.LicenseKey{}).
		Where("id = ?", id).
		Update("is_revoked", true).Error
}

func (r *repo) ExistsKeyString(ctx context.Context, db *gorm.DB, keyString string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&licensekeydomain.LicenseKey{}).
		Where("key_string = ?", keyString).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
