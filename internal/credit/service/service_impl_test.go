package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	creditdomain "github.com/aestrial/keymaster/internal/credit/domain"
	"github.com/aestrial/keymaster/internal/credit/repository"
	"github.com/aestrial/keymaster/internal/observability/metrics"
	resellerdomain "github.com/aestrial/keymaster/internal/reseller/domain"
	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (creditdomain.Service, *gorm.DB) {
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

	if err := db.AutoMigrate(&resellerdomain.Reseller{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	m, err := metrics.New(metrics.Config{}, noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	svc := New(Params{
		DB:      db,
		Log:     zap.NewNop(),
		Metrics: m,
		Repo:    repository.Provide(),
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
	if err := db.Create(&reseller).Error; err != nil {
		t.Fatalf("seed reseller: %v", err)
	}
}

func TestDebitAndBalance(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	seedReseller(t, db, 1, 10)

	balance, err := svc.Debit(ctx, 1, 3)
	if err != nil {
		t.Fatalf("Debit: %v", err)
	}
	if balance != 7 {
		t.Fatalf("balance = %d, want 7", balance)
	}

	got, err := svc.Balance(ctx, 1)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if got != 7 {
		t.Fatalf("Balance = %d, want 7", got)
	}
}

func TestDebitInsufficientLeavesBalanceUntouched(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	seedReseller(t, db, 1, 2)

	if _, err := svc.Debit(ctx, 1, 3); !errors.Is(err, creditdomain.ErrInsufficientCredits) {
		t.Fatalf("got %v, want ErrInsufficientCredits", err)
	}

	balance, err := svc.Balance(ctx, 1)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if balance != 2 {
		t.Fatalf("failed debit changed balance to %d", balance)
	}
}

func TestDebitValidation(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	seedReseller(t, db, 1, 5)

	if _, err := svc.Debit(ctx, 1, 0); !errors.Is(err, creditdomain.ErrInvalidAmount) {
		t.Fatalf("zero amount: got %v, want ErrInvalidAmount", err)
	}
	if _, err := svc.Debit(ctx, 1, -2); !errors.Is(err, creditdomain.ErrInvalidAmount) {
		t.Fatalf("negative amount: got %v, want ErrInvalidAmount", err)
	}
	if _, err := svc.Debit(ctx, 999, 1); !errors.Is(err, creditdomain.ErrAccountNotFound) {
		t.Fatalf("unknown account: got %v, want ErrAccountNotFound", err)
	}
}

func TestGrant(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	seedReseller(t, db, 1, 0)

	balance, err := svc.Grant(ctx, 1, 25)
	if err != nil {
		t.Fatalf("Grant: %v", err)
	}
	if balance != 25 {
		t.Fatalf("balance = %d, want 25", balance)
	}

	if _, err := svc.Grant(ctx, 1, 0); !errors.Is(err, creditdomain.ErrInvalidAmount) {
		t.Fatalf("zero grant: got %v, want ErrInvalidAmount", err)
	}
	if _, err := svc.Grant(ctx, 999, 5); !errors.Is(err, creditdomain.ErrAccountNotFound) {
		t.Fatalf("unknown account: got %v, want ErrAccountNotFound", err)
	}
}

func TestConcurrentDebitsNeverGoNegative(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	seedReseller(t, db, 1, 5)

	const workers = 20

	var wg sync.WaitGroup
	succeeded := make([]bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := svc.Debit(ctx, 1, 1); err == nil {
				succeeded[i] = true
			}
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, ok := range succeeded {
		if ok {
			wins++
		}
	}
	if wins != 5 {
		t.Fatalf("%d debits succeeded, want exactly 5", wins)
	}

	balance, err := svc.Balance(ctx, 1)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if balance != 0 {
		t.Fatalf("final balance = %d, want 0", balance)
	}
}
