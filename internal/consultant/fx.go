package consultant

import (
	"github.com/railzwaylabs/atelier/internal/consultant/repository"
	"github.com/railzwaylabs/atelier/internal/consultant/service"
	"go.uber.org/fx"
)

var Module = fx.Module("consultant.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
