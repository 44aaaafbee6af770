package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Service interface {
	// LoginAdmin authenticates an operator and opens a session,
	// returning the raw cookie token.
	LoginAdmin(ctx context.Context, username, password string, meta SessionMetadata) (*LoginResult, error)
	// LoginReseller authenticates a reseller account. Suspended
	// accounts fail with ErrAccountSuspended.
	LoginReseller(ctx context.Context, username, password string, meta SessionMetadata) (*LoginResult, error)
	// Authenticate resolves a cookie token to its principal.
	Authenticate(ctx context.Context, token string) (*Principal, error)
	// Logout destroys the session behind the token. Unknown tokens are a no-op.
	Logout(ctx context.Context, token string) error
	// EnsureBootstrapAdmin creates the configured admin account when no
	// admins exist yet.
	EnsureBootstrapAdmin(ctx context.Context, username, password string) error
	// PurgeExpiredSessions drops every session past its expiry and
	// reports how many were removed.
	PurgeExpiredSessions(ctx context.Context) (int64, error)
}

type SessionMetadata struct {
	UserAgent string `json:"user_agent,omitempty"`
	RemoteIP  string `json:"remote_ip,omitempty"`
}

type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Principal Principal
}

type Repository interface {
	FindAdminByUsername(ctx context.Context, db *gorm.DB, username string) (*Admin, error)
	FindAdminByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Admin, error)
	CountAdmins(ctx context.Context, db *gorm.DB) (int64, error)
	InsertAdmin(ctx context.Context, db *gorm.DB, admin *Admin) error
	InsertSession(ctx context.Context, db *gorm.DB, session *Session) error
	FindSessionByTokenHash(ctx context.Context, db *gorm.DB, tokenHash string) (*Session, error)
	DeleteSessionByTokenHash(ctx context.Context, db *gorm.DB, tokenHash string) error
	DeleteExpiredSessions(ctx context.Context, db *gorm.DB, now time.Time) (int64, error)
}

var (
	ErrInvalidCredential = errors.New("invalid_credential")
	ErrAccountSuspended  = errors.New("account_suspended")
	ErrSessionNotFound   = errors.New("session_not_found")
	ErrSessionExpired    = errors.New("session_expired")
)
