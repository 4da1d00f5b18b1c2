package migration

import (
	"github.com/ramonsarchive/ascend/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(run),
)

// run applies the embedded postgres migrations. Other dialects are provisioned out of band.
func run(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
	log = log.Named("migrations")
	if !cfg.DBRunMigrations {
		return nil
	}
	if conn.Dialector.Name() != "postgres" {
		log.Info("skipping sql migrations for non-postgres dialect",
			zap.String("dialect", conn.Dialector.Name()))
		return nil
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	version, err := RunMigrations(sqlDB)
	if err != nil {
		return err
	}
	log.Info("schema up to date", zap.Uint("version", version))
	return nil
}
