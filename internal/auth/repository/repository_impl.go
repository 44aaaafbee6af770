package repository

import (
	"context"
	"errors"
	"time"

	authdomain "github.com/aestrial/keymaster/internal/auth/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() authdomain.Repository {
	return &repo{}
}

func (r *repo) FindAdminByUsername(ctx context.Context, db *gorm.DB, username string) (*authdomain.Admin, error) {
	var admin authdomain.Admin
	err := db.WithContext(ctx).Where("username = ?", username).First(&admin).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &admin, nil
}

func (r *repo) FindAdminByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*authdomain.Admin, error) {
	var admin authdomain.Admin
	err := db.WithContext(ctx).Where("id = ?", id).First(&admin).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &admin, nil
}

func (r *repo) CountAdmins(ctx context.Context, db *gorm.DB) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Model(&authdomain.Admin{}).Count(&count).Error
	return count, err
}

func (r *repo) InsertAdmin(ctx context.Context, db *gorm.DB, admin *authdomain.Admin) error {
	return db.WithContext(ctx).Create(admin).Error
}

func (r *repo) InsertSession(ctx context.Context, db *gorm.DB, session *authdomain.Session) error {
	return db.WithContext(ctx).Create(session).Error
}

func (r *repo) FindSessionByTokenHash(ctx context.Context, db *gorm.DB, tokenHash string) (*authdomain.Session, error) {
	var session authdomain.Session
	err := db.WithContext(ctx).Where("token_hash = ?", tokenHash).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *repo) DeleteSessionByTokenHash(ctx context.Context, db *gorm.DB, tokenHash string) error {
	return db.WithContext(ctx).
		Where("token_hash = ?", tokenHash).
		Delete(&authdomain.Session{}).Error
}

func (r *repo) DeleteExpiredSessions(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&authdomain.Session{})
	return res.RowsAffected, res.Error
}
