package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aestrial/keymaster/internal/clock"
	devicedomain "github.com/aestrial/keymaster/internal/device/domain"
	"github.com/aestrial/keymaster/internal/device/repository"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (devicedomain.Service, *clock.FakeClock) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(&devicedomain.Device{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	fc := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fc,
		Repo:  repository.Provide(),
	})
	return svc, fc
}

func TestTryBindRegistersUpToLimit(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	keyID := snowflake.ID(100)

	for i := 0; i < 2; i++ {
		res, err := svc.TryBind(ctx, keyID, fmt.Sprintf("device-%d", i), 2)
		if err != nil {
			t.Fatalf("TryBind %d: %v", i, err)
		}
		if !res.Bound || res.AlreadyBound {
			t.Fatalf("TryBind %d: result %+v, want fresh bind", i, res)
		}
		if res.Count != i+1 {
			t.Fatalf("TryBind %d: count = %d, want %d", i, res.Count, i+1)
		}
	}

	res, err := svc.TryBind(ctx, keyID, "device-overflow", 2)
	if err != nil {
		t.Fatalf("TryBind overflow: %v", err)
	}
	if res.Bound {
		t.Fatal("bind beyond the device limit must fail")
	}
	if res.Count != 2 {
		t.Fatalf("count = %d, want 2", res.Count)
	}
}

func TestTryBindIdempotent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	keyID := snowflake.ID(200)

	first, err := svc.TryBind(ctx, keyID, "device-a", 1)
	if err != nil {
		t.Fatalf("TryBind: %v", err)
	}

	// Re-verifying from a bound device must succeed even at the limit
	// and must not consume another slot.
	again, err := svc.TryBind(ctx, keyID, "device-a", 1)
	if err != nil {
		t.Fatalf("second TryBind: %v", err)
	}
	if !again.Bound || !again.AlreadyBound {
		t.Fatalf("result %+v, want idempotent rebind", again)
	}
	if again.Device.ID != first.Device.ID {
		t.Fatalf("rebind returned device %v, want %v", again.Device.ID, first.Device.ID)
	}
	if again.Count != 1 {
		t.Fatalf("count = %d, want 1", again.Count)
	}
}

func TestTryBindConcurrentNeverExceedsLimit(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	keyID := snowflake.ID(300)

	const workers = 16
	const limit = 3

	var wg sync.WaitGroup
	results := make([]*devicedomain.BindResult, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.TryBind(ctx, keyID, fmt.Sprintf("device-%d", i), limit)
		}(i)
	}
	wg.Wait()

	bound := 0
	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("TryBind %d: %v", i, errs[i])
		}
		if results[i].Bound {
			bound++
		}
	}
	if bound != limit {
		t.Fatalf("%d binds succeeded, want exactly %d", bound, limit)
	}

	count, err := svc.CountDevices(ctx, keyID)
	if err != nil {
		t.Fatalf("CountDevices: %v", err)
	}
	if count != limit {
		t.Fatalf("stored devices = %d, want %d", count, limit)
	}
}

func TestRemoveFreesSlot(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	keyID := snowflake.ID(400)

	if _, err := svc.TryBind(ctx, keyID, "device-a", 1); err != nil {
		t.Fatalf("TryBind: %v", err)
	}

	blocked, err := svc.TryBind(ctx, keyID, "device-b", 1)
	if err != nil {
		t.Fatalf("TryBind: %v", err)
	}
	if blocked.Bound {
		t.Fatal("second device bound despite limit 1")
	}

	removed, err := svc.Remove(ctx, keyID, "device-a")
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if !removed {
		t.Fatal("existing binding not removed")
	}

	res, err := svc.TryBind(ctx, keyID, "device-b", 1)
	if err != nil {
		t.Fatalf("TryBind after remove: %v", err)
	}
	if !res.Bound {
		t.Fatal("slot not freed after device removal")
	}

	removed, err = svc.Remove(ctx, keyID, "device-a")
	if err != nil {
		t.Fatalf("Remove miss: %v", err)
	}
	if removed {
		t.Fatal("removing an unbound device reported a removal")
	}
}

func TestListDevicesOrder(t *testing.T) {
	svc, fc := newTestService(t)
	ctx := context.Background()
	keyID := snowflake.ID(500)

	for _, id := range []string{"first", "second", "third"} {
		if _, err := svc.TryBind(ctx, keyID, id, 5); err != nil {
			t.Fatalf("TryBind %s: %v", id, err)
		}
		fc.Advance(time.Minute)
	}

	devices, err := svc.ListDevices(ctx, keyID)
	if err != nil {
		t.Fatalf("ListDevices: %v", err)
	}
	if len(devices) != 3 {
		t.Fatalf("got %d devices, want 3", len(devices))
	}
	for i, want := range []string{"first", "second", "third"} {
		if devices[i].DeviceID != want {
			t.Fatalf("position %d: got %q, want %q", i, devices[i].DeviceID, want)
		}
	}
}
