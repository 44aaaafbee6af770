package repository

import (
	"context"
	"errors"

	referraldomain "github.com/aestrial/keymaster/internal/referral/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() referraldomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, token *referraldomain.ReferralToken) error {
	return db.WithContext(ctx).Create(token).Error
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, token string) (*referraldomain.ReferralToken, error) {
	var out referraldomain.ReferralToken
	err := db.WithContext(ctx).Where("token = ?", token).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]referraldomain.ReferralToken, error) {
	var tokens []referraldomain.ReferralToken
	err := db.WithContext(ctx).Order("id DESC").Find(&tokens).Error
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

func (r *repo) Consume(ctx context.Context, db *gorm.DB, token string, usedBy snowflake.ID) (int64, error) {
	res := db.WithContext(ctx).
		Model(&referraldomain.ReferralToken{}).
		Where("token = ? AND is_used = ?", token, false).
		Updates(map[string]any{
			"is_used": true,
			"used_by": usedBy,
		})
	return res.RowsAffected, res.Error
}
