package server

import (
	"context"
	"net/http"
	"time"

	"github.com/aestrial/keymaster/internal/auth"
	authdomain "github.com/aestrial/keymaster/internal/auth/domain"
	"github.com/aestrial/keymaster/internal/auth/session"
	"github.com/aestrial/keymaster/internal/clock"
	"github.com/aestrial/keymaster/internal/config"
	"github.com/aestrial/keymaster/internal/credit"
	creditdomain "github.com/aestrial/keymaster/internal/credit/domain"
	"github.com/aestrial/keymaster/internal/device"
	devicedomain "github.com/aestrial/keymaster/internal/device/domain"
	"github.com/aestrial/keymaster/internal/issuance"
	issuancedomain "github.com/aestrial/keymaster/internal/issuance/domain"
	"github.com/aestrial/keymaster/internal/licensekey"
	licensekeydomain "github.com/aestrial/keymaster/internal/licensekey/domain"
	"github.com/aestrial/keymaster/internal/observability"
	obsmiddleware "github.com/aestrial/keymaster/internal/observability/logger"
	obsmetrics "github.com/aestrial/keymaster/internal/observability/metrics"
	obstracing "github.com/aestrial/keymaster/internal/observability/tracing"
	"github.com/aestrial/keymaster/internal/referral"
	referraldomain "github.com/aestrial/keymaster/internal/referral/domain"
	"github.com/aestrial/keymaster/internal/reseller"
	resellerdomain "github.com/aestrial/keymaster/internal/reseller/domain"
	"github.com/aestrial/keymaster/internal/verification"
	verificationdomain "github.com/aestrial/keymaster/internal/verification/domain"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	auth.Module,
	licensekey.Module,
	device.Module,
	credit.Module,
	referral.Module,
	reseller.Module,
	verification.Module,
	issuance.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	clock        clock.Clock
	sessions     *session.Manager
	authSvc      authdomain.Service
	keySvc       licensekeydomain.Service
	deviceSvc    devicedomain.Service
	creditSvc    creditdomain.Service
	resellerSvc  resellerdomain.Service
	referralSvc  referraldomain.Service
	verifySvc    verificationdomain.Service
	issuanceSvc  issuancedomain.Service
	loginLimiter *rateLimiter
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	Clock       clock.Clock
	Sessions    *session.Manager
	AuthSvc     authdomain.Service
	KeySvc      licensekeydomain.Service
	DeviceSvc   devicedomain.Service
	CreditSvc   creditdomain.Service
	ResellerSvc resellerdomain.Service
	ReferralSvc referraldomain.Service
	VerifySvc   verificationdomain.Service
	IssuanceSvc issuancedomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		clock:        p.Clock,
		sessions:     p.Sessions,
		authSvc:      p.AuthSvc,
		keySvc:       p.KeySvc,
		deviceSvc:    p.DeviceSvc,
		creditSvc:    p.CreditSvc,
		resellerSvc:  p.ResellerSvc,
		referralSvc:  p.ReferralSvc,
		verifySvc:    p.VerifySvc,
		issuanceSvc:  p.IssuanceSvc,
		loginLimiter: newRateLimiter(10, 10*time.Minute),
	}

	svc.registerVerifyRoutes()
	svc.registerAuthRoutes()
	svc.registerAdminRoutes()
	svc.registerResellerRoutes()

	return svc
}
