package reseller

import (
	"github.com/aestrial/keymaster/internal/reseller/repository"
	"github.com/aestrial/keymaster/internal/reseller/service"
	"go.uber.org/fx"
)

var Module = fx.Module("reseller.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
