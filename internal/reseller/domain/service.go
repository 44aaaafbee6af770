package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Service interface {
	// Register creates a reseller account, consuming the referral token
	// atomically with the account creation.
	Register(ctx context.Context, req RegisterRequest) (*Reseller, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Reseller, error)
	GetByUsername(ctx context.Context, username string) (*Reseller, error)
	// List returns all resellers in registration order.
	List(ctx context.Context) ([]Reseller, error)
	// SetActive sets the account's active flag and returns the updated
	// account. Setting the current value is a no-op, not an error.
	SetActive(ctx context.Context, id snowflake.ID, active bool) (*Reseller, error)
}

type RegisterRequest struct {
	Username      string
	Password      string
	ReferralToken string
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, reseller *Reseller) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Reseller, error)
	FindByUsername(ctx context.Context, db *gorm.DB, username string) (*Reseller, error)
	List(ctx context.Context, db *gorm.DB) ([]Reseller, error)
	SetActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool) error
}

var (
	ErrNotFound          = errors.New("reseller_not_found")
	ErrUsernameTaken     = errors.New("username_taken")
	ErrInvalidCredential = errors.New("invalid_credential")
	ErrInvalidRequest    = errors.New("invalid_request")
)
