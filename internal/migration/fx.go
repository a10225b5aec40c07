package migration

import (
	"context"

	"github.com/railzwaylabs/atelier/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		if err := Run(context.Background(), conn, cfg.Database.Driver); err != nil {
			return err
		}
		log.Info("database migrated", zap.String("driver", cfg.Database.Driver))
		return nil
	}),
)
