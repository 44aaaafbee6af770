package service

import (
	"context"

	creditdomain "github.com/aestrial/keymaster/internal/credit/domain"
	"github.com/aestrial/keymaster/internal/observability/metrics"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Metrics *metrics.Metrics
	Repo    creditdomain.Repository
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	metrics *metrics.Metrics
	repo    creditdomain.Repository
}

func New(p Params) creditdomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("credit.service"),
		metrics: p.Metrics,
		repo:    p.Repo,
	}
}

func (s *Service) Balance(ctx context.Context, resellerID snowflake.ID) (int64, error) {
	balance, found, err := s.repo.Balance(ctx, s.db, resellerID)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, creditdomain.ErrAccountNotFound
	}
	return balance, nil
}

func (s *Service) Debit(ctx context.Context, resellerID snowflake.ID, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, creditdomain.ErrInvalidAmount
	}

	affected, err := s.repo.Debit(ctx, s.db, resellerID, amount)
	if err != nil {
		return 0, err
	}
	if affected == 0 {
		// Distinguish a missing account from an underfunded one.
		_, found, err := s.repo.Balance(ctx, s.db, resellerID)
		if err != nil {
			return 0, err
		}
		if !found {
			return 0, creditdomain.ErrAccountNotFound
		}
		return 0, creditdomain.ErrInsufficientCredits
	}

	s.metrics.RecordCreditsDebited(ctx, amount)
	return s.Balance(ctx, resellerID)
}

func (s *Service) Grant(ctx context.Context, resellerID snowflake.ID, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, creditdomain.ErrInvalidAmount
	}

	affected, err := s.repo.Grant(ctx, s.db, resellerID, amount)
	if err != nil {
		return 0, err
	}
	if affected == 0 {
		return 0, creditdomain.ErrAccountNotFound
	}

	s.metrics.RecordCreditsGranted(ctx, amount)
	s.log.Info("credits granted",
		zap.Int64("reseller_id", int64(resellerID)),
		zap.Int64("amount", amount),
	)
	return s.Balance(ctx, resellerID)
}
