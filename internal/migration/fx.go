package migration

import (
	"github.com/smallbiznis/orderdesk/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg db.Config, log *zap.Logger) error {
		if db.IsSQLite(conn) {
			log.Info("migrating embedded schema")
			return AutoMigrate(conn)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		log.Info("applying versioned migrations", zap.String("dialect", cfg.Type))
		return RunMigrations(sqlDB, cfg.Type)
	}),
)
