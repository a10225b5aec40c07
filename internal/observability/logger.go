package observability

import (
	"strings"

	"github.com/railzwaylabs/atelier/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the process logger from the log section. When a watcher is
// given, log.level edits in the config file apply without a restart.
func NewLogger(cfg config.Config, watcher *config.Watcher) (*zap.Logger, error) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if l, ok := parseLevel(cfg.Log.Level); ok {
		level.SetLevel(l)
	}
	if watcher != nil {
		watcher.Subscribe(func(next config.Config) {
			if l, ok := parseLevel(next.Log.Level); ok {
				level.SetLevel(l)
			}
		})
	}

	zcfg := zap.NewProductionConfig()
	if strings.EqualFold(cfg.Log.Format, "console") {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = level
	zcfg.EncoderConfig.TimeKey = "ts"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	log, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	return log.With(
		zap.String("service", cfg.AppName),
		zap.String("env", cfg.Environment),
	), nil
}

func parseLevel(raw string) (zapcore.Level, bool) {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(raw)))); err != nil {
		return l, false
	}
	return l, true
}
