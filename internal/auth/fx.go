package auth

import (
	"context"

	authdomain "github.com/aestrial/keymaster/internal/auth/domain"
	"github.com/aestrial/keymaster/internal/auth/repository"
	"github.com/aestrial/keymaster/internal/auth/service"
	"github.com/aestrial/keymaster/internal/auth/session"
	"github.com/aestrial/keymaster/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("auth",
	session.Module,
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Invoke(ensureBootstrapAdmin),
	fx.Invoke(purgeExpiredSessions),
)

func ensureBootstrapAdmin(lc fx.Lifecycle, cfg config.Config, svc authdomain.Service) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return svc.EnsureBootstrapAdmin(ctx, cfg.BootstrapAdminUsername, cfg.BootstrapAdminPassword)
		},
	})
}

func purgeExpiredSessions(lc fx.Lifecycle, svc authdomain.Service) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			_, err := svc.PurgeExpiredSessions(ctx)
			return err
		},
	})
}
