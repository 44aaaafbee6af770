package repository

import (
	"context"
	"errors"

	creditdomain "github.com/aestrial/keymaster/internal/credit/domain"
	resellerdomain "github.com/aestrial/keymaster/internal/reseller/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() creditdomain.Repository {
	return &repo{}
}

func (r *repo) Balance(ctx context.Context, db *gorm.DB, resellerID snowflake.ID) (int64, bool, error) {
	var reseller resellerdomain.Reseller
	err := db.WithContext(ctx).
		Select("credits").
		Where("id = ?", resellerID).
		First(&reseller).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return reseller.Credits, true, nil
}

// Debit pushes the balance check into the UPDATE itself so concurrent
// debits cannot interleave between a read and a write.
func (r *repo) Debit(ctx context.Context, db *gorm.DB, resellerID snowflake.ID, amount int64) (int64, error) {
	res := db.WithContext(ctx).
		Model(&resellerdomain.Reseller{}).
		Where("id = ? AND credits >= ?", resellerID, amount).
		Update("credits", gorm.Expr("credits - ?", amount))
	return res.RowsAffected, res.Error
}

func (r *repo) Grant(ctx context.Context, db *gorm.DB, resellerID snowflake.ID, amount int64) (int64, error) {
	res := db.WithContext(ctx).
		Model(&resellerdomain.Reseller{}).
		Where("id = ?", resellerID).
		Update("credits", gorm.Expr("credits + ?", amount))
	return res.RowsAffected, res.Error
}
