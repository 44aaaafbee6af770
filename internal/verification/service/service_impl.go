package service

import (
	"context"
	"errors"
	"strings"

	"github.com/aestrial/keymaster/internal/clock"
	devicedomain "github.com/aestrial/keymaster/internal/device/domain"
	licensekeydomain "github.com/aestrial/keymaster/internal/licensekey/domain"
	"github.com/aestrial/keymaster/internal/observability/metrics"
	verificationdomain "github.com/aestrial/keymaster/internal/verification/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Client-facing decision messages. Launchers match on these strings,
// so they must stay stable.
const (
	msgKeyNotFound  = "Invalid license key"
	msgGameMismatch = "License key is not valid for this game"
	msgRevoked      = "License key has been revoked"
	msgExpired      = "License key has expired"
	msgDeviceLimit  = "Device limit reached for this license key"
	msgValid        = "License valid"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	Clock   clock.Clock
	Metrics *metrics.Metrics
	Keys    licensekeydomain.Service
	Devices devicedomain.Service
}

type Service struct {
	log     *zap.Logger
	clock   clock.Clock
	metrics *metrics.Metrics
	keys    licensekeydomain.Service
	devices devicedomain.Service
}

func New(p Params) verificationdomain.Service {
	return &Service{
		log:     p.Log.Named("verification.service"),
		clock:   p.Clock,
		metrics: p.Metrics,
		keys:    p.Keys,
		devices: p.Devices,
	}
}

func (s *Service) Verify(ctx context.Context, req verificationdomain.VerifyRequest) (*verificationdomain.Result, error) {
	keyString := strings.TrimSpace(req.KeyString)
	deviceID := strings.TrimSpace(req.DeviceID)

	key, err := s.keys.GetByKeyString(ctx, keyString)
	if err != nil && !errors.Is(err, licensekeydomain.ErrNotFound) {
		return nil, err
	}
	if key == nil {
		return s.deny(ctx, req, verificationdomain.ReasonKeyNotFound, msgKeyNotFound), nil
	}
	if key.Game != req.Game {
		return s.deny(ctx, req, verificationdomain.ReasonGameMismatch, msgGameMismatch), nil
	}
	if key.IsRevoked {
		return s.deny(ctx, req, verificationdomain.ReasonRevoked, msgRevoked), nil
	}
	if !s.clock.Now().Before(key.ExpiresAt) {
		result := s.deny(ctx, req, verificationdomain.ReasonExpired, msgExpired)
		expiry := key.ExpiresAt
		result.Expiry = &expiry
		return result, nil
	}

	expiry := key.ExpiresAt
	result := &verificationdomain.Result{
		Valid:       true,
		Reason:      verificationdomain.ReasonValid,
		Message:     msgValid,
		Expiry:      &expiry,
		DeviceLimit: key.DeviceLimit,
	}

	if req.RegisterDevice {
		bind, err := s.devices.TryBind(ctx, key.ID, deviceID, key.DeviceLimit)
		if err != nil {
			return nil, err
		}
		result.CurrentDevices = bind.Count
		if !bind.Bound {
			result.Valid = false
			result.Reason = verificationdomain.ReasonDeviceLimit
			result.Message = msgDeviceLimit
			s.record(ctx, req, result.Reason)
			return result, nil
		}
		result.AlreadyBound = bind.AlreadyBound
		result.CanRegister = true
		s.record(ctx, req, verificationdomain.ReasonValid)
		return result, nil
	}

	// Non-mutating path: report what a registering call would decide
	// without consuming a slot.
	existing, err := s.devices.ListDevices(ctx, key.ID)
	if err != nil {
		return nil, err
	}
	result.CurrentDevices = len(existing)
	bound := false
	for _, d := range existing {
		if d.DeviceID == deviceID {
			bound = true
			break
		}
	}
	switch {
	case bound:
		result.AlreadyBound = true
		result.CanRegister = true
	case len(existing) < key.DeviceLimit:
		result.CanRegister = true
	default:
		result.Valid = false
		result.Reason = verificationdomain.ReasonDeviceLimit
		result.Message = msgDeviceLimit
	}
	s.record(ctx, req, result.Reason)
	return result, nil
}

func (s *Service) deny(ctx context.Context, req verificationdomain.VerifyRequest, reason verificationdomain.Reason, message string) *verificationdomain.Result {
	s.record(ctx, req, reason)
	return &verificationdomain.Result{
		Valid:   false,
		Reason:  reason,
		Message: message,
	}
}

func (s *Service) record(ctx context.Context, req verificationdomain.VerifyRequest, reason verificationdomain.Reason) {
	s.metrics.RecordVerification(ctx, string(req.Game), string(reason))
	s.log.Debug("verification decided",
		zap.String("game", string(req.Game)),
		zap.String("outcome", string(reason)),
		zap.Bool("register_device", req.RegisterDevice),
	)
}
