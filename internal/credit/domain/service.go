package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Service interface {
	// Balance returns the reseller's spendable credits.
	Balance(ctx context.Context, resellerID snowflake.ID) (int64, error)
	// Debit atomically subtracts amount and returns the new balance.
	// The balance never goes negative; an underfunded debit fails with
	// ErrInsufficientCredits and changes nothing.
	Debit(ctx context.Context, resellerID snowflake.ID, amount int64) (int64, error)
	// Grant adds amount to the balance and returns the new balance.
	Grant(ctx context.Context, resellerID snowflake.ID, amount int64) (int64, error)
}

type Repository interface {
	Balance(ctx context.Context, db *gorm.DB, resellerID snowflake.ID) (int64, bool, error)
	// Debit applies a guarded decrement and reports the rows affected;
	// zero means the balance was too low or the account does not exist.
	Debit(ctx context.Context, db *gorm.DB, resellerID snowflake.ID, amount int64) (int64, error)
	Grant(ctx context.Context, db *gorm.DB, resellerID snowflake.ID, amount int64) (int64, error)
}

var (
	ErrInsufficientCredits = errors.New("insufficient_credits")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrAccountNotFound     = errors.New("credit_account_not_found")
)
