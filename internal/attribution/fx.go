package attribution

import (
	"github.com/railzwaylabs/atelier/internal/attribution/service"
	"go.uber.org/fx"
)

var Module = fx.Module("attribution.service",
	fx.Provide(service.New),
)
