package credit

import (
	"github.com/aestrial/keymaster/internal/credit/repository"
	"github.com/aestrial/keymaster/internal/credit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("credit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
