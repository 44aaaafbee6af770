package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aestrial/keymaster/internal/catalog"
	creditdomain "github.com/aestrial/keymaster/internal/credit/domain"
	creditrepo "github.com/aestrial/keymaster/internal/credit/repository"
	issuancedomain "github.com/aestrial/keymaster/internal/issuance/domain"
	licensekeydomain "github.com/aestrial/keymaster/internal/licensekey/domain"
	licensekeyrepo "github.com/aestrial/keymaster/internal/licensekey/repository"
	"github.com/aestrial/keymaster/internal/observability/metrics"
	resellerdomain "github.com/aestrial/keymaster/internal/reseller/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (issuancedomain.Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&licensekeydomain.LicenseKey{}, &resellerdomain.Reseller{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	m, err := metrics.New(metrics.Config{}, noop.NewMeterProvider())
	require.NoError(t, err)

	svc := New(Params{
		DB:      db,
		Log:     zap.NewNop(),
		GenID:   node,
		Metrics: m,
		Keys:    licensekeyrepo.Provide(),
		Credits: creditrepo.Provide(),
	})
	return svc, db
}

func seedReseller(t *testing.T, db *gorm.DB, id snowflake.ID, credits int64) {
	t.Helper()
	reseller := resellerdomain.Reseller{
		ID:               id,
		Username:         fmt.Sprintf("reseller-%d", id),
		PasswordHash:     "x",
		Credits:          credits,
		IsActive:         true,
		RegistrationDate: time.Now().UTC(),
	}
	require.NoError(t, db.Create(&reseller).Error)
}

func countKeys(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(&licensekeydomain.LicenseKey{}).Count(&count).Error)
	return count
}

func loadBalance(t *testing.T, db *gorm.DB, id snowflake.ID) int64 {
	t.Helper()
	var reseller resellerdomain.Reseller
	require.NoError(t, db.First(&reseller, "id = ?", id).Error)
	return reseller.Credits
}

func TestIssueBatchDebitsOncePerKey(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	seedReseller(t, db, 1, 5)

	res, err := svc.Issue(ctx, issuancedomain.IssueRequest{
		ResellerID:  1,
		Game:        catalog.GamePUBGMobile,
		DeviceLimit: 2,
		ExpiresAt:   time.Now().Add(30 * 24 * time.Hour),
		Count:       3,
	})
	require.NoError(t, err)
	require.Len(t, res.Keys, 3)
	assert.Equal(t, int64(2), res.Balance)

	seen := make(map[string]bool)
	for _, key := range res.Keys {
		assert.False(t, seen[key.KeyString], "duplicate key string %q in batch", key.KeyString)
		seen[key.KeyString] = true
		assert.Equal(t, snowflake.ID(1), key.ResellerID)
		assert.Equal(t, catalog.GamePUBGMobile, key.Game)
	}
}

func TestIssueInsufficientCreditsMintsNothing(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	seedReseller(t, db, 1, 2)

	_, err := svc.Issue(ctx, issuancedomain.IssueRequest{
		ResellerID:  1,
		Game:        catalog.GamePUBGMobile,
		DeviceLimit: 1,
		ExpiresAt:   time.Now().Add(time.Hour),
		Count:       3,
	})
	require.ErrorIs(t, err, creditdomain.ErrInsufficientCredits)

	assert.Equal(t, int64(0), countKeys(t, db), "keys minted despite failed debit")
	assert.Equal(t, int64(2), loadBalance(t, db, 1), "balance changed on failed issuance")
}

func TestIssueCustomKey(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	seedReseller(t, db, 1, 5)

	req := issuancedomain.IssueRequest{
		ResellerID:  1,
		Game:        catalog.GameStandoff2,
		DeviceLimit: 1,
		ExpiresAt:   time.Now().Add(time.Hour),
		Count:       1,
		CustomKey:   "STDF-MYOWN-KEY00-00001",
	}
	res, err := svc.Issue(ctx, req)
	require.NoError(t, err)
	require.Len(t, res.Keys, 1)
	assert.Equal(t, req.CustomKey, res.Keys[0].KeyString)

	// A duplicate custom key fails without minting or debiting.
	_, err = svc.Issue(ctx, req)
	require.ErrorIs(t, err, licensekeydomain.ErrDuplicateKey)
	assert.Equal(t, int64(1), countKeys(t, db))
	assert.Equal(t, int64(4), loadBalance(t, db, 1))
}

func TestIssueDuplicateCustomKeyWinsOverShortBalance(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	seedReseller(t, db, 1, 5)

	req := issuancedomain.IssueRequest{
		ResellerID:  1,
		Game:        catalog.GamePUBGMobile,
		DeviceLimit: 1,
		ExpiresAt:   time.Now().Add(time.Hour),
		Count:       1,
		CustomKey:   "PBGM-AAAAA-BBBBB-CCCCC",
	}
	_, err := svc.Issue(ctx, req)
	require.NoError(t, err)

	// An unfunded account retrying the taken string gets the duplicate
	// reported before credits are consulted.
	seedReseller(t, db, 2, 0)
	req.ResellerID = 2
	_, err = svc.Issue(ctx, req)
	require.ErrorIs(t, err, licensekeydomain.ErrDuplicateKey)
	assert.Equal(t, int64(1), countKeys(t, db))
	assert.Equal(t, int64(0), loadBalance(t, db, 2))
}

func TestIssueCustomKeyCoversOnlyFirstOfBatch(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	seedReseller(t, db, 1, 5)

	res, err := svc.Issue(ctx, issuancedomain.IssueRequest{
		ResellerID:  1,
		Game:        catalog.GamePUBGMobile,
		DeviceLimit: 1,
		ExpiresAt:   time.Now().Add(time.Hour),
		Count:       3,
		CustomKey:   "PBGM-FIRST-KEYOF-BATCH",
	})
	require.NoError(t, err)
	require.Len(t, res.Keys, 3)
	assert.Equal(t, "PBGM-FIRST-KEYOF-BATCH", res.Keys[0].KeyString)
	assert.NotEqual(t, res.Keys[0].KeyString, res.Keys[1].KeyString)
	assert.NotEqual(t, res.Keys[1].KeyString, res.Keys[2].KeyString)
	assert.Equal(t, int64(2), res.Balance)
}

func TestIssueValidation(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	seedReseller(t, db, 1, 100)
	expiry := time.Now().Add(time.Hour)

	cases := []struct {
		name string
		req  issuancedomain.IssueRequest
		want error
	}{
		{
			name: "unknown game",
			req:  issuancedomain.IssueRequest{ResellerID: 1, Game: "TETRIS", DeviceLimit: 1, ExpiresAt: expiry, Count: 1},
			want: licensekeydomain.ErrInvalidGame,
		},
		{
			name: "zero count",
			req:  issuancedomain.IssueRequest{ResellerID: 1, Game: catalog.GamePUBGMobile, DeviceLimit: 1, ExpiresAt: expiry, Count: 0},
			want: issuancedomain.ErrInvalidCount,
		},
		{
			name: "oversized batch",
			req:  issuancedomain.IssueRequest{ResellerID: 1, Game: catalog.GamePUBGMobile, DeviceLimit: 1, ExpiresAt: expiry, Count: 101},
			want: issuancedomain.ErrInvalidCount,
		},
		{
			name: "unknown reseller",
			req:  issuancedomain.IssueRequest{ResellerID: 999, Game: catalog.GamePUBGMobile, DeviceLimit: 1, ExpiresAt: expiry, Count: 1},
			want: creditdomain.ErrAccountNotFound,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Issue(ctx, tc.req)
			require.ErrorIs(t, err, tc.want)
		})
	}
}
