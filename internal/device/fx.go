package device

import (
	"github.com/aestrial/keymaster/internal/device/repository"
	"github.com/aestrial/keymaster/internal/device/service"
	"go.uber.org/fx"
)

var Module = fx.Module("device.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
