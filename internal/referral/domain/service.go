package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Service interface {
	// Generate mints a fresh unused token.
	Generate(ctx context.Context) (*ReferralToken, error)
	// List returns all tokens, newest first.
	List(ctx context.Context) ([]ReferralToken, error)
	// Consume marks the token used by the given account. A token is
	// consumed at most once; a second attempt fails with ErrTokenUsed.
	Consume(ctx context.Context, token string, usedBy snowflake.ID) error
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, token *ReferralToken) error
	Find(ctx context.Context, db *gorm.DB, token string) (*ReferralToken, error)
	List(ctx context.Context, db *gorm.DB) ([]ReferralToken, error)
	// Consume flips is_used only when it is still false and reports the
	// rows affected, making the winner of a race unambiguous.
	Consume(ctx context.Context, db *gorm.DB, token string, usedBy snowflake.ID) (int64, error)
}

var (
	ErrTokenNotFound = errors.New("referral_token_not_found")
	ErrTokenUsed     = errors.New("referral_token_used")
)
