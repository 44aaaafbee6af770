package migration

import (
	authdomain "github.com/aestrial/keymaster/internal/auth/domain"
	"github.com/aestrial/keymaster/internal/config"
	devicedomain "github.com/aestrial/keymaster/internal/device/domain"
	licensekeydomain "github.com/aestrial/keymaster/internal/licensekey/domain"
	referraldomain "github.com/aestrial/keymaster/internal/referral/domain"
	resellerdomain "github.com/aestrial/keymaster/internal/reseller/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return RunMigrations(sqlDB)
		}

		// MySQL and SQLite deployments derive the schema from the
		// models instead of the Postgres migration files.
		return conn.AutoMigrate(
			&authdomain.Admin{},
			&authdomain.Session{},
			&resellerdomain.Reseller{},
			&referraldomain.ReferralToken{},
			&licensekeydomain.LicenseKey{},
			&devicedomain.Device{},
		)
	}),
)
