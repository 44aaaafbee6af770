package service

import (
	"context"
	"strings"
	"time"

	"github.com/aestrial/keymaster/internal/catalog"
	licensekeydomain "github.com/aestrial/keymaster/internal/licensekey/domain"
	dbpkg "github.com/aestrial/keymaster/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// maxGenerateAttempts bounds the defensive retry loop on key string
// collisions. Collisions are astronomically unlikely with 15 random
// characters, so hitting the bound signals a broken random source.
const maxGenerateAttempts = 5

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  licensekeydomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  licensekeydomain.Repository
}

func New(p Params) licensekeydomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("licensekey.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req licensekeydomain.CreateRequest) (*licensekeydomain.LicenseKey, error) {
	if !catalog.IsValid(req.Game) {
		return nil, licensekeydomain.ErrInvalidGame
	}
	if req.DeviceLimit <= 0 {
		return nil, licensekeydomain.ErrInvalidLimit
	}
	if req.ExpiresAt.IsZero() {
		return nil, licensekeydomain.ErrInvalidExpiry
	}
	if req.ResellerID == 0 {
		return nil, licensekeydomain.ErrInvalidRequest
	}

	keyString := strings.TrimSpace(req.KeyString)
	custom := keyString != ""

	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		if !custom {
			generated, err := GenerateKeyString(req.Game)
			if err != nil {
				return nil, err
			}
			keyString = generated
		}

		key := &licensekeydomain.LicenseKey{
			ID:          s.genID.Generate(),
			KeyString:   keyString,
			Game:        req.Game,
			ResellerID:  req.ResellerID,
			DeviceLimit: req.DeviceLimit,
			ExpiresAt:   req.ExpiresAt.UTC(),
			IsRevoked:   false,
			CreatedAt:   time.Now().UTC(),
		}

		err := s.repo.Insert(ctx, s.db, key)
		if err == nil {
			return key, nil
		}
		if !dbpkg.IsDuplicateKeyErr(err) {
			return nil, err
		}
		// The unique index caught a collision. A pinned string is a
		// caller error; a generated one is retried with a fresh draw.
		if custom {
			return nil, licensekeydomain.ErrDuplicateKey
		}
		s.log.Warn("generated key string collided, retrying",
			zap.String("game", string(req.Game)),
			zap.Int("attempt", attempt+1),
		)
	}

	return nil, licensekeydomain.ErrDuplicateKey
}

func (s *Service) GetByKeyString(ctx context.Context, keyString string) (*licensekeydomain.LicenseKey, error) {
	key, err := s.repo.FindByKeyString(ctx, s.db, strings.TrimSpace(keyString))
	if err != nil {
		return nil, err
	}
	if key == nil {
		return nil, licensekeydomain.ErrNotFound
	}
	return key, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*licensekeydomain.LicenseKey, error) {
	key, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if key == nil {
		return nil, licensekeydomain.ErrNotFound
	}
	return key, nil
}

func (s *Service) ListByReseller(ctx context.Context, resellerID snowflake.ID) ([]licensekeydomain.LicenseKey, error) {
	return s.repo.ListByReseller(ctx, s.db, resellerID)
}

func (s *Service) Revoke(ctx context.Context, id snowflake.ID) (*licensekeydomain.LicenseKey, error) {
	key, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if key == nil {
		return nil, licensekeydomain.ErrNotFound
	}
	if key.IsRevoked {
		return key, nil
	}

	if err := s.repo.MarkRevoked(ctx, s.db, id); err != nil {
		return nil, err
	}
	key.IsRevoked = true
	return key, nil
}

func (s *Service) ExistsKeyString(ctx context.Context, keyString string) (bool, error) {
	return s.repo.ExistsKeyString(ctx, s.db, strings.TrimSpace(keyString))
}
