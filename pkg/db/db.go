package db

import (
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/railzwaylabs/atelier/internal/config"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	gormprom "gorm.io/plugin/prometheus"
)

var Module = fx.Module("db",
	fx.Provide(New),
)

type Params struct {
	fx.In

	Cfg config.Config
	Log *zap.Logger
}

// New opens the configured database and installs tracing and metrics plugins.
func New(p Params) (*gorm.DB, error) {
	dialector, err := Dialector(p.Cfg.Database)
	if err != nil {
		return nil, err
	}

	gormLogger := logger.Default.LogMode(logger.Warn)
	if p.Cfg.IsProduction() {
		gormLogger = logger.Default.LogMode(logger.Silent)
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := conn.Use(otelgorm.NewPlugin(otelgorm.WithDBName(p.Cfg.AppName))); err != nil {
		return nil, fmt.Errorf("install tracing plugin: %w", err)
	}
	if err := conn.Use(gormprom.New(gormprom.Config{
		DBName:          p.Cfg.AppName,
		RefreshInterval: 15,
		StartServer:     false,
	})); err != nil {
		p.Log.Warn("gorm prometheus plugin disabled", zap.Error(err))
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	if p.Cfg.Database.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(p.Cfg.Database.MaxOpenConns)
	}
	if p.Cfg.Database.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(p.Cfg.Database.MaxIdleConns)
	}
	if p.Cfg.Database.ConnMaxLife > 0 {
		sqlDB.SetConnMaxLifetime(p.Cfg.Database.ConnMaxLife)
	}

	p.Log.Info("database connected", zap.String("driver", p.Cfg.Database.Driver))
	return conn, nil
}

// Dialector picks the gorm dialector for the configured driver.
func Dialector(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "postgres", "postgresql":
		return postgres.Open(dsn), nil
	case "mysql":
		dsnCfg, err := mysqldriver.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("parse mysql dsn: %w", err)
		}
		// Migrations run multi-statement files; timestamps are stored in UTC.
		dsnCfg.MultiStatements = true
		dsnCfg.ParseTime = true
		dsnCfg.Loc = time.UTC
		return mysql.New(mysql.Config{DSN: dsnCfg.FormatDSN(), DSNConfig: dsnCfg}), nil
	case "sqlite":
		if dsn == "" {
			dsn = "file:atelier?mode=memory&cache=shared"
		}
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}
