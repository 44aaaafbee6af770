package domain

import (
	"context"
	"time"

	"github.com/aestrial/keymaster/internal/catalog"
)

// Reason classifies a verification decision. Checks run in a fixed
// order, so a key that is both revoked and expired reports revoked.
type Reason string

const (
	ReasonValid        Reason = "valid"
	ReasonKeyNotFound  Reason = "key_not_found"
	ReasonGameMismatch Reason = "game_mismatch"
	ReasonRevoked      Reason = "revoked"
	ReasonExpired      Reason = "expired"
	ReasonDeviceLimit  Reason = "device_limit"
)

type Service interface {
	// Verify runs the full decision for one key, game, and device.
	// With RegisterDevice set the device is bound when a slot is free;
	// without it the call never writes and reports CanRegister instead.
	Verify(ctx context.Context, req VerifyRequest) (*Result, error)
}

type VerifyRequest struct {
	KeyString      string
	Game           catalog.Game
	DeviceID       string
	RegisterDevice bool
}

type Result struct {
	Valid   bool
	Reason  Reason
	Message string

	// Populated once the key itself passed checks.
	Expiry         *time.Time
	DeviceLimit    int
	CurrentDevices int

	// CanRegister is only meaningful on non-mutating calls.
	CanRegister bool
	// AlreadyBound reports an idempotent re-verify of a bound device.
	AlreadyBound bool
}
