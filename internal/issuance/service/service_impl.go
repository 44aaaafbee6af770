package service

import (
	"context"
	"strings"
	"time"

	"github.com/aestrial/keymaster/internal/catalog"
	creditdomain "github.com/aestrial/keymaster/internal/credit/domain"
	issuancedomain "github.com/aestrial/keymaster/internal/issuance/domain"
	licensekeydomain "github.com/aestrial/keymaster/internal/licensekey/domain"
	licensekeyservice "github.com/aestrial/keymaster/internal/licensekey/service"
	"github.com/aestrial/keymaster/internal/observability/metrics"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// maxBatchSize caps one issuance request. Larger batches should be
// split by the caller.
const maxBatchSize = 100

// maxGenerateAttempts bounds the uniqueness retry when minting a key
// string; collisions are vanishingly rare in practice.
const maxGenerateAttempts = 5

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Metrics *metrics.Metrics
	Keys    licensekeydomain.Repository
	Credits creditdomain.Repository
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	metrics *metrics.Metrics
	keys    licensekeydomain.Repository
	credits creditdomain.Repository
}

func New(p Params) issuancedomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("issuance.service"),
		genID:   p.GenID,
		metrics: p.Metrics,
		keys:    p.Keys,
		credits: p.Credits,
	}
}

func (s *Service) Issue(ctx context.Context, req issuancedomain.IssueRequest) (*issuancedomain.IssueResult, error) {
	if !catalog.IsValid(req.Game) {
		return nil, licensekeydomain.ErrInvalidGame
	}
	if req.DeviceLimit <= 0 {
		return nil, licensekeydomain.ErrInvalidLimit
	}
	if req.ExpiresAt.IsZero() {
		return nil, licensekeydomain.ErrInvalidExpiry
	}
	if req.Count <= 0 || req.Count > maxBatchSize {
		return nil, issuancedomain.ErrInvalidCount
	}
	customKey := strings.TrimSpace(req.CustomKey)

	var result issuancedomain.IssueResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// A taken custom string rejects the request before credits are
		// even looked at.
		if customKey != "" {
			taken, err := s.keys.ExistsKeyString(ctx, tx, customKey)
			if err != nil {
				return err
			}
			if taken {
				return licensekeydomain.ErrDuplicateKey
			}
		}

		// Debit before minting: a failed mint rolls the credits back,
		// while a short balance never mints anything.
		affected, err := s.credits.Debit(ctx, tx, req.ResellerID, int64(req.Count))
		if err != nil {
			return err
		}
		if affected == 0 {
			_, found, err := s.credits.Balance(ctx, tx, req.ResellerID)
			if err != nil {
				return err
			}
			if !found {
				return creditdomain.ErrAccountNotFound
			}
			return creditdomain.ErrInsufficientCredits
		}

		keys := make([]licensekeydomain.LicenseKey, 0, req.Count)
		for i := 0; i < req.Count; i++ {
			var keyString string
			// The custom string covers only the first key of a batch;
			// the rest always get fresh ones.
			if i == 0 && customKey != "" {
				keyString = customKey
			} else {
				generated, err := s.uniqueKeyString(ctx, tx, req.Game)
				if err != nil {
					return err
				}
				keyString = generated
			}

			key := licensekeydomain.LicenseKey{
				ID:          s.genID.Generate(),
				KeyString:   keyString,
				Game:        req.Game,
				ResellerID:  req.ResellerID,
				DeviceLimit: req.DeviceLimit,
				ExpiresAt:   req.ExpiresAt.UTC(),
				CreatedAt:   time.Now().UTC(),
			}
			if err := s.keys.Insert(ctx, tx, &key); err != nil {
				return err
			}
			keys = append(keys, key)
		}

		balance, _, err := s.credits.Balance(ctx, tx, req.ResellerID)
		if err != nil {
			return err
		}
		result = issuancedomain.IssueResult{Keys: keys, Balance: balance}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordKeysIssued(ctx, string(req.Game), int64(req.Count))
	s.metrics.RecordCreditsDebited(ctx, int64(req.Count))
	s.log.Info("keys issued",
		zap.Int64("reseller_id", int64(req.ResellerID)),
		zap.String("game", string(req.Game)),
		zap.Int("count", req.Count),
	)
	return &result, nil
}

func (s *Service) uniqueKeyString(ctx context.Context, tx *gorm.DB, game catalog.Game) (string, error) {
	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		keyString, err := licensekeyservice.GenerateKeyString(game)
		if err != nil {
			return "", err
		}
		taken, err := s.keys.ExistsKeyString(ctx, tx, keyString)
		if err != nil {
			return "", err
		}
		if !taken {
			return keyString, nil
		}
	}
	return "", licensekeydomain.ErrDuplicateKey
}
