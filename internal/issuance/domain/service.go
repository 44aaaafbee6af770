package domain

import (
	"context"
	"errors"
	"time"

	"github.com/aestrial/keymaster/internal/catalog"
	licensekeydomain "github.com/aestrial/keymaster/internal/licensekey/domain"
	"github.com/bwmarrin/snowflake"
)

type Service interface {
	// Issue mints Count keys and debits the reseller one credit per
	// key, all in one transaction. Either every key exists and the
	// balance is reduced, or nothing happened.
	Issue(ctx context.Context, req IssueRequest) (*IssueResult, error)
}

type IssueRequest struct {
	ResellerID  snowflake.ID
	Game        catalog.Game
	DeviceLimit int
	ExpiresAt   time.Time
	Count       int
	// CustomKey pins the string of the batch's first key; the rest are
	// always generated.
	CustomKey string
}

type IssueResult struct {
	Keys []licensekeydomain.LicenseKey
	// Balance is the reseller's credits after the debit.
	Balance int64
}

var ErrInvalidCount = errors.New("invalid_count")
