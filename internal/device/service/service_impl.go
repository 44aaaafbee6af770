package service

import (
	"context"
	"strings"
	"sync"

	"github.com/aestrial/keymaster/internal/clock"
	devicedomain "github.com/aestrial/keymaster/internal/device/domain"
	dbpkg "github.com/aestrial/keymaster/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  devicedomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  devicedomain.Repository

	// binds serializes TryBind per key so the count-then-insert check
	// cannot admit more devices than the key's limit.
	mu    sync.Mutex
	binds map[snowflake.ID]*sync.Mutex
}

func New(p Params) devicedomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("device.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
		binds: make(map[snowflake.ID]*sync.Mutex),
	}
}

func (s *Service) keyLock(keyID snowflake.ID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.binds[keyID]
	if !ok {
		lock = &sync.Mutex{}
		s.binds[keyID] = lock
	}
	return lock
}

func (s *Service) TryBind(ctx context.Context, keyID snowflake.ID, deviceID string, deviceLimit int) (*devicedomain.BindResult, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil, devicedomain.ErrInvalidDeviceID
	}

	lock := s.keyLock(keyID)
	lock.Lock()
	defer lock.Unlock()

	var result devicedomain.BindResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.Find(ctx, tx, keyID, deviceID)
		if err != nil {
			return err
		}
		count, err := s.repo.CountByKey(ctx, tx, keyID)
		if err != nil {
			return err
		}

		if existing != nil {
			result = devicedomain.BindResult{
				Bound:        true,
				AlreadyBound: true,
				Device:       existing,
				Count:        int(count),
			}
			return nil
		}
		if int(count) >= deviceLimit {
			result = devicedomain.BindResult{Count: int(count)}
			return nil
		}

		device := &devicedomain.Device{
			ID:             s.genID.Generate(),
			KeyID:          keyID,
			DeviceID:       deviceID,
			FirstConnected: s.clock.Now(),
		}
		if err := s.repo.Insert(ctx, tx, device); err != nil {
			return err
		}
		result = devicedomain.BindResult{
			Bound:  true,
			Device: device,
			Count:  int(count) + 1,
		}
		return nil
	})
	if err != nil {
		// The unique index is the backstop for writers outside this
		// process. Treat a race on the same device as already bound.
		if dbpkg.IsDuplicateKeyErr(err) {
			existing, findErr := s.repo.Find(ctx, s.db, keyID, deviceID)
			if findErr != nil || existing == nil {
				return nil, err
			}
			count, countErr := s.repo.CountByKey(ctx, s.db, keyID)
			if countErr != nil {
				return nil, countErr
			}
			return &devicedomain.BindResult{
				Bound:        true,
				AlreadyBound: true,
				Device:       existing,
				Count:        int(count),
			}, nil
		}
		return nil, err
	}
	return &result, nil
}

func (s *Service) ListDevices(ctx context.Context, keyID snowflake.ID) ([]devicedomain.Device, error) {
	return s.repo.ListByKey(ctx, s.db, keyID)
}

func (s *Service) CountDevices(ctx context.Context, keyID snowflake.ID) (int, error) {
	count, err := s.repo.CountByKey(ctx, s.db, keyID)
	return int(count), err
}

func (s *Service) Remove(ctx context.Context, keyID snowflake.ID, deviceID string) (bool, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return false, devicedomain.ErrInvalidDeviceID
	}

	lock := s.keyLock(keyID)
	lock.Lock()
	defer lock.Unlock()

	affected, err := s.repo.Delete(ctx, s.db, keyID, deviceID)
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
