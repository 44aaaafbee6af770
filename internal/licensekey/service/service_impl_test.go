package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aestrial/keymaster/internal/catalog"
	licensekeydomain "github.com/aestrial/keymaster/internal/licensekey/domain"
	"github.com/aestrial/keymaster/internal/licensekey/repository"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
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

	if err := db.AutoMigrate(&licensekeydomain.LicenseKey{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestService(t *testing.T) (licensekeydomain.Service, *gorm.DB) {
	t.Helper()

	db := newTestDB(t)
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
	})
	return svc, db
}

func TestCreateGeneratesKey(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	key, err := svc.Create(ctx, licensekeydomain.CreateRequest{
		Game:        catalog.GamePUBGMobile,
		ResellerID:  42,
		DeviceLimit: 3,
		ExpiresAt:   time.Now().Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if key.KeyString == "" {
		t.Fatal("expected generated key string")
	}
	if key.IsRevoked {
		t.Fatal("new key must not be revoked")
	}

	got, err := svc.GetByKeyString(ctx, key.KeyString)
	if err != nil {
		t.Fatalf("GetByKeyString: %v", err)
	}
	if got.ID != key.ID {
		t.Fatalf("looked up key %v, want %v", got.ID, key.ID)
	}
}

func TestCreateCustomKeyString(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	req := licensekeydomain.CreateRequest{
		Game:        catalog.GameStandoff2,
		ResellerID:  42,
		DeviceLimit: 1,
		ExpiresAt:   time.Now().Add(time.Hour),
		KeyString:   "STDF-CUSTOM-KEY-00001",
	}
	key, err := svc.Create(ctx, req)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if key.KeyString != req.KeyString {
		t.Fatalf("key string = %q, want %q", key.KeyString, req.KeyString)
	}

	if _, err := svc.Create(ctx, req); !errors.Is(err, licensekeydomain.ErrDuplicateKey) {
		t.Fatalf("duplicate custom key: got %v, want ErrDuplicateKey", err)
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	expiry := time.Now().Add(time.Hour)

	cases := []struct {
		name string
		req  licensekeydomain.CreateRequest
		want error
	}{
		{
			name: "unknown game",
			req:  licensekeydomain.CreateRequest{Game: "TETRIS", ResellerID: 1, DeviceLimit: 1, ExpiresAt: expiry},
			want: licensekeydomain.ErrInvalidGame,
		},
		{
			name: "zero device limit",
			req:  licensekeydomain.CreateRequest{Game: catalog.GamePUBGMobile, ResellerID: 1, DeviceLimit: 0, ExpiresAt: expiry},
			want: licensekeydomain.ErrInvalidLimit,
		},
		{
			name: "missing expiry",
			req:  licensekeydomain.CreateRequest{Game: catalog.GamePUBGMobile, ResellerID: 1, DeviceLimit: 1},
			want: licensekeydomain.ErrInvalidExpiry,
		},
		{
			name: "missing reseller",
			req:  licensekeydomain.CreateRequest{Game: catalog.GamePUBGMobile, DeviceLimit: 1, ExpiresAt: expiry},
			want: licensekeydomain.ErrInvalidRequest,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, tc.req); !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestRevokeIdempotent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	key, err := svc.Create(ctx, licensekeydomain.CreateRequest{
		Game:        catalog.GameLastIsland,
		ResellerID:  7,
		DeviceLimit: 2,
		ExpiresAt:   time.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	revoked, err := svc.Revoke(ctx, key.ID)
	if err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if !revoked.IsRevoked {
		t.Fatal("key not marked revoked")
	}

	again, err := svc.Revoke(ctx, key.ID)
	if err != nil {
		t.Fatalf("second Revoke: %v", err)
	}
	if !again.IsRevoked {
		t.Fatal("second revoke lost the revoked flag")
	}

	if _, err := svc.Revoke(ctx, snowflake.ID(999999)); !errors.Is(err, licensekeydomain.ErrNotFound) {
		t.Fatalf("revoke missing key: got %v, want ErrNotFound", err)
	}
}

func TestListByResellerInsertionOrder(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	var want []string
	for i := 0; i < 4; i++ {
		key, err := svc.Create(ctx, licensekeydomain.CreateRequest{
			Game:        catalog.GamePUBGMobile,
			ResellerID:  9,
			DeviceLimit: 1,
			ExpiresAt:   time.Now().Add(time.Hour),
		})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		want = append(want, key.KeyString)
	}

	keys, err := svc.ListByReseller(ctx, 9)
	if err != nil {
		t.Fatalf("ListByReseller: %v", err)
	}
	if len(keys) != len(want) {
		t.Fatalf("got %d keys, want %d", len(keys), len(want))
	}
	for i, k := range keys {
		if k.KeyString != want[i] {
			t.Fatalf("position %d: got %q, want %q", i, k.KeyString, want[i])
		}
	}
}
