package referral

import (
	"github.com/aestrial/keymaster/internal/referral/repository"
	"github.com/aestrial/keymaster/internal/referral/service"
	"go.uber.org/fx"
)

var Module = fx.Module("referral.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
