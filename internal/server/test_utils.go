package server

import (
	"fmt"
	"testing"
	"time"

	authdomain "github.com/aestrial/keymaster/internal/auth/domain"
	authrepo "github.com/aestrial/keymaster/internal/auth/repository"
	authservice "github.com/aestrial/keymaster/internal/auth/service"
	"github.com/aestrial/keymaster/internal/auth/session"
	"github.com/aestrial/keymaster/internal/clock"
	"github.com/aestrial/keymaster/internal/config"
	creditrepo "github.com/aestrial/keymaster/internal/credit/repository"
	creditservice "github.com/aestrial/keymaster/internal/credit/service"
	devicedomain "github.com/aestrial/keymaster/internal/device/domain"
	devicerepo "github.com/aestrial/keymaster/internal/device/repository"
	deviceservice "github.com/aestrial/keymaster/internal/device/service"
	issuanceservice "github.com/aestrial/keymaster/internal/issuance/service"
	licensekeydomain "github.com/aestrial/keymaster/internal/licensekey/domain"
	licensekeyrepo "github.com/aestrial/keymaster/internal/licensekey/repository"
	licensekeyservice "github.com/aestrial/keymaster/internal/licensekey/service"
	"github.com/aestrial/keymaster/internal/observability"
	"github.com/aestrial/keymaster/internal/observability/metrics"
	referraldomain "github.com/aestrial/keymaster/internal/referral/domain"
	referralrepo "github.com/aestrial/keymaster/internal/referral/repository"
	referralservice "github.com/aestrial/keymaster/internal/referral/service"
	resellerdomain "github.com/aestrial/keymaster/internal/reseller/domain"
	resellerrepo "github.com/aestrial/keymaster/internal/reseller/repository"
	resellerservice "github.com/aestrial/keymaster/internal/reseller/service"
	verificationservice "github.com/aestrial/keymaster/internal/verification/service"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testServer struct {
	server *Server
	engine *gin.Engine
	db     *gorm.DB
	clock  *clock.FakeClock
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

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

	if err := db.AutoMigrate(
		&authdomain.Admin{},
		&authdomain.Session{},
		&resellerdomain.Reseller{},
		&referraldomain.ReferralToken{},
		&licensekeydomain.LicenseKey{},
		&devicedomain.Device{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	m, err := metrics.New(metrics.Config{}, noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	fc := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	log := zap.NewNop()
	cfg := config.Config{AppName: "keymaster", HTTPAddr: ":0"}

	keySvc := licensekeyservice.New(licensekeyservice.Params{
		DB: db, Log: log, GenID: node, Repo: licensekeyrepo.Provide(),
	})
	deviceSvc := deviceservice.New(deviceservice.Params{
		DB: db, Log: log, GenID: node, Clock: fc, Repo: devicerepo.Provide(),
	})
	creditSvc := creditservice.New(creditservice.Params{
		DB: db, Log: log, Metrics: m, Repo: creditrepo.Provide(),
	})
	referralSvc := referralservice.New(referralservice.Params{
		DB: db, Log: log, GenID: node, Metrics: m, Repo: referralrepo.Provide(),
	})
	resellerSvc := resellerservice.New(resellerservice.Params{
		DB: db, Log: log, GenID: node, Clock: fc,
		Repo: resellerrepo.Provide(), Referral: referralrepo.Provide(),
	})
	authSvc := authservice.New(authservice.Params{
		DB: db, Log: log, GenID: node, Clock: fc,
		Repo: authrepo.Provide(), Resellers: resellerrepo.Provide(),
	})
	verifySvc := verificationservice.New(verificationservice.Params{
		Log: log, Clock: fc, Metrics: m, Keys: keySvc, Devices: deviceSvc,
	})
	issuanceSvc := issuanceservice.New(issuanceservice.Params{
		DB: db, Log: log, GenID: node, Metrics: m,
		Keys: licensekeyrepo.Provide(), Credits: creditrepo.Provide(),
	})

	engine := NewEngine(observability.Config{}, nil)
	srv := NewServer(ServerParams{
		Gin:         engine,
		Cfg:         cfg,
		Clock:       fc,
		Sessions:    session.NewManager(cfg),
		AuthSvc:     authSvc,
		KeySvc:      keySvc,
		DeviceSvc:   deviceSvc,
		CreditSvc:   creditSvc,
		ResellerSvc: resellerSvc,
		ReferralSvc: referralSvc,
		VerifySvc:   verifySvc,
		IssuanceSvc: issuanceSvc,
	})

	return &testServer{server: srv, engine: engine, db: db, clock: fc}
}
