package observability

import (
	"github.com/railzwaylabs/atelier/internal/config"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("observability",
	fx.Provide(NewLogger),
	fx.Provide(NewMetrics),
	fx.Provide(NewTracerProvider),
	fx.Invoke(func(_ trace.TracerProvider) {}),
	fx.Invoke(func(w *config.Watcher, log *zap.Logger) { w.Start(log) }),
)
