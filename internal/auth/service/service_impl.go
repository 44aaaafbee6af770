package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	authdomain "github.com/aestrial/keymaster/internal/auth/domain"
	"github.com/aestrial/keymaster/internal/auth/password"
	"github.com/aestrial/keymaster/internal/clock"
	resellerdomain "github.com/aestrial/keymaster/internal/reseller/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// sessionTTL bounds how long a login cookie stays valid.
const sessionTTL = 7 * 24 * time.Hour

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Repo      authdomain.Repository
	Resellers resellerdomain.Repository
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	repo      authdomain.Repository
	resellers resellerdomain.Repository
}

func New(p Params) authdomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("auth.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		resellers: p.Resellers,
	}
}

func (s *Service) LoginAdmin(ctx context.Context, username, pass string, meta authdomain.SessionMetadata) (*authdomain.LoginResult, error) {
	username = strings.TrimSpace(username)

	admin, err := s.repo.FindAdminByUsername(ctx, s.db, username)
	if err != nil {
		return nil, err
	}
	if admin == nil || !password.Verify(pass, admin.PasswordHash) {
		return nil, authdomain.ErrInvalidCredential
	}

	principal := authdomain.Principal{
		Role:      authdomain.RoleAdmin,
		AccountID: admin.ID,
		Username:  admin.Username,
	}
	return s.openSession(ctx, principal, meta)
}

func (s *Service) LoginReseller(ctx context.Context, username, pass string, meta authdomain.SessionMetadata) (*authdomain.LoginResult, error) {
	username = strings.TrimSpace(username)

	reseller, err := s.resellers.FindByUsername(ctx, s.db, username)
	if err != nil {
		return nil, err
	}
	if reseller == nil || !password.Verify(pass, reseller.PasswordHash) {
		return nil, authdomain.ErrInvalidCredential
	}
	if !reseller.IsActive {
		return nil, authdomain.ErrAccountSuspended
	}

	principal := authdomain.Principal{
		Role:      authdomain.RoleReseller,
		AccountID: reseller.ID,
		Username:  reseller.Username,
	}
	return s.openSession(ctx, principal, meta)
}

func (s *Service) openSession(ctx context.Context, principal authdomain.Principal, meta authdomain.SessionMetadata) (*authdomain.LoginResult, error) {
	token, err := newSessionToken()
	if err != nil {
		return nil, err
	}

	metadata, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	session := &authdomain.Session{
		ID:        s.genID.Generate(),
		TokenHash: hashToken(token),
		Role:      principal.Role,
		AccountID: principal.AccountID,
		ExpiresAt: now.Add(sessionTTL),
		Metadata:  metadata,
		CreatedAt: now,
	}
	if err := s.repo.InsertSession(ctx, s.db, session); err != nil {
		return nil, err
	}

	s.log.Info("session opened",
		zap.String("role", string(principal.Role)),
		zap.Int64("account_id", int64(principal.AccountID)),
	)
	return &authdomain.LoginResult{
		Token:     token,
		ExpiresAt: session.ExpiresAt,
		Principal: principal,
	}, nil
}

func (s *Service) Authenticate(ctx context.Context, token string) (*authdomain.Principal, error) {
	if strings.TrimSpace(token) == "" {
		return nil, authdomain.ErrSessionNotFound
	}

	session, err := s.repo.FindSessionByTokenHash(ctx, s.db, hashToken(token))
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, authdomain.ErrSessionNotFound
	}
	if !s.clock.Now().Before(session.ExpiresAt) {
		if err := s.repo.DeleteSessionByTokenHash(ctx, s.db, session.TokenHash); err != nil {
			s.log.Warn("failed to purge expired session", zap.Error(err))
		}
		return nil, authdomain.ErrSessionExpired
	}

	switch session.Role {
	case authdomain.RoleAdmin:
		admin, err := s.repo.FindAdminByID(ctx, s.db, session.AccountID)
		if err != nil {
			return nil, err
		}
		if admin == nil {
			return nil, authdomain.ErrSessionNotFound
		}
		return &authdomain.Principal{
			Role:      authdomain.RoleAdmin,
			AccountID: admin.ID,
			Username:  admin.Username,
		}, nil
	case authdomain.RoleReseller:
		reseller, err := s.resellers.FindByID(ctx, s.db, session.AccountID)
		if err != nil {
			return nil, err
		}
		if reseller == nil {
			return nil, authdomain.ErrSessionNotFound
		}
		if !reseller.IsActive {
			return nil, authdomain.ErrAccountSuspended
		}
		return &authdomain.Principal{
			Role:      authdomain.RoleReseller,
			AccountID: reseller.ID,
			Username:  reseller.Username,
		}, nil
	default:
		return nil, authdomain.ErrSessionNotFound
	}
}

func (s *Service) Logout(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return nil
	}
	return s.repo.DeleteSessionByTokenHash(ctx, s.db, hashToken(token))
}

func (s *Service) EnsureBootstrapAdmin(ctx context.Context, username, pass string) error {
	username = strings.TrimSpace(username)
	if username == "" || pass == "" {
		return nil
	}

	count, err := s.repo.CountAdmins(ctx, s.db)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := password.Hash(pass)
	if err != nil {
		return err
	}
	admin := &authdomain.Admin{
		ID:           s.genID.Generate(),
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    s.clock.Now(),
	}
	if err := s.repo.InsertAdmin(ctx, s.db, admin); err != nil {
		return err
	}
	s.log.Info("bootstrap admin created", zap.String("username", username))
	return nil
}

func (s *Service) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	purged, err := s.repo.DeleteExpiredSessions(ctx, s.db, s.clock.Now())
	if err != nil {
		return 0, err
	}
	if purged > 0 {
		s.log.Info("expired sessions purged", zap.Int64("count", purged))
	}
	return purged, nil
}

func newSessionToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
