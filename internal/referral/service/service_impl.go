package service

import (
	"context"
	"strings"
	"time"

	"github.com/aestrial/keymaster/internal/observability/metrics"
	referraldomain "github.com/aestrial/keymaster/internal/referral/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Metrics *metrics.Metrics
	Repo    referraldomain.Repository
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	metrics *metrics.Metrics
	repo    referraldomain.Repository
}

func New(p Params) referraldomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("referral.service"),
		genID:   p.GenID,
		metrics: p.Metrics,
		repo:    p.Repo,
	}
}

func (s *Service) Generate(ctx context.Context) (*referraldomain.ReferralToken, error) {
	token := &referraldomain.ReferralToken{
		ID:        s.genID.Generate(),
		Token:     strings.ReplaceAll(uuid.NewString(), "-", ""),
		IsUsed:    false,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Insert(ctx, s.db, token); err != nil {
		return nil, err
	}
	s.log.Info("referral token generated", zap.Int64("token_id", int64(token.ID)))
	return token, nil
}

func (s *Service) List(ctx context.Context) ([]referraldomain.ReferralToken, error) {
	return s.repo.List(ctx, s.db)
}

func (s *Service) Consume(ctx context.Context, token string, usedBy snowflake.ID) error {
	token = strings.TrimSpace(token)

	affected, err := s.repo.Consume(ctx, s.db, token, usedBy)
	if err != nil {
		return err
	}
	if affected == 0 {
		existing, err := s.repo.Find(ctx, s.db, token)
		if err != nil {
			return err
		}
		if existing == nil {
			return referraldomain.ErrTokenNotFound
		}
		return referraldomain.ErrTokenUsed
	}

	s.metrics.RecordTokenConsumed(ctx)
	return nil
}
