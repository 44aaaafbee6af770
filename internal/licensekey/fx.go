package licensekey

import (
	"github.com/aestrial/keymaster/internal/licensekey/repository"
	"github.com/aestrial/keymaster/internal/licensekey/service"
	"go.uber.org/fx"
)

var Module = fx.Module("licensekey.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
