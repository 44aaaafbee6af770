package service

import (
	"context"
	"strings"

	"github.com/aestrial/keymaster/internal/auth/password"
	"github.com/aestrial/keymaster/internal/clock"
	referraldomain "github.com/aestrial/keymaster/internal/referral/domain"
	resellerdomain "github.com/aestrial/keymaster/internal/reseller/domain"
	dbpkg "github.com/aestrial/keymaster/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const minPasswordLength = 8

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     resellerdomain.Repository
	Referral referraldomain.Repository
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     resellerdomain.Repository
	referral referraldomain.Repository
}

func New(p Params) resellerdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("reseller.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		referral: p.Referral,
	}
}

// Register runs the username check, token consumption, and account
// insert in one transaction so a failed registration never burns the
// referral token.
func (s *Service) Register(ctx context.Context, req resellerdomain.RegisterRequest) (*resellerdomain.Reseller, error) {
	username := strings.TrimSpace(req.Username)
	token := strings.TrimSpace(req.ReferralToken)
	if username == "" || token == "" {
		return nil, resellerdomain.ErrInvalidRequest
	}
	if len(req.Password) < minPasswordLength {
		return nil, resellerdomain.ErrInvalidCredential
	}

	hash, err := password.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	reseller := &resellerdomain.Reseller{
		ID:               s.genID.Generate(),
		Username:         username,
		PasswordHash:     hash,
		Credits:          0,
		IsActive:         true,
		RegistrationDate: s.clock.Now(),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindByUsername(ctx, tx, username)
		if err != nil {
			return err
		}
		if existing != nil {
			return resellerdomain.ErrUsernameTaken
		}

		affected, err := s.referral.Consume(ctx, tx, token, reseller.ID)
		if err != nil {
			return err
		}
		if affected == 0 {
			existing, err := s.referral.Find(ctx, tx, token)
			if err != nil {
				return err
			}
			if existing == nil {
				return referraldomain.ErrTokenNotFound
			}
			return referraldomain.ErrTokenUsed
		}

		return s.repo.Insert(ctx, tx, reseller)
	})
	if err != nil {
		if dbpkg.IsDuplicateKeyErr(err) {
			return nil, resellerdomain.ErrUsernameTaken
		}
		return nil, err
	}

	s.log.Info("reseller registered",
		zap.Int64("reseller_id", int64(reseller.ID)),
		zap.String("username", username),
	)
	return reseller, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*resellerdomain.Reseller, error) {
	reseller, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if reseller == nil {
		return nil, resellerdomain.ErrNotFound
	}
	return reseller, nil
}

func (s *Service) GetByUsername(ctx context.Context, username string) (*resellerdomain.Reseller, error) {
	reseller, err := s.repo.FindByUsername(ctx, s.db, strings.TrimSpace(username))
	if err != nil {
		return nil, err
	}
	if reseller == nil {
		return nil, resellerdomain.ErrNotFound
	}
	return reseller, nil
}

func (s *Service) List(ctx context.Context) ([]resellerdomain.Reseller, error) {
	return s.repo.List(ctx, s.db)
}

func (s *Service) SetActive(ctx context.Context, id snowflake.ID, active bool) (*resellerdomain.Reseller, error) {
	var out *resellerdomain.Reseller
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		reseller, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if reseller == nil {
			return resellerdomain.ErrNotFound
		}
		if err := s.repo.SetActive(ctx, tx, id, active); err != nil {
			return err
		}
		reseller.IsActive = active
		out = reseller
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
