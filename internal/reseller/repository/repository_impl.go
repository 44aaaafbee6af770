package repository

import (
	"context"
	"errors"

	resellerdomain "github.com/aestrial/keymaster/internal/reseller/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() resellerdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, reseller *resellerdomain.Reseller) error {
	return db.WithContext(ctx).Create(reseller).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*resellerdomain.Reseller, error) {
	var reseller resellerdomain.Reseller
	err := db.WithContext(ctx).Where("id = ?", id).First(&reseller).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &reseller, nil
}

func (r *repo) FindByUsername(ctx context.Context, db *gorm.DB, username string) (*resellerdomain.Reseller, error) {
	var reseller resellerdomain.Reseller
	err := db.WithContext(ctx).Where("username = ?", username).First(&reseller).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &reseller, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]resellerdomain.Reseller, error) {
	var resellers []resellerdomain.Reseller
	err := db.WithContext(ctx).Order("id ASC").Find(&resellers).Error
	if err != nil {
		return nil, err
	}
	return resellers, nil
}

func (r *repo) SetActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool) error {
	return db.WithContext(ctx).
		Model(&resellerdomain.Reseller{}).
		Where("id = ?", id).
		Update("is_active", active).Error
}
