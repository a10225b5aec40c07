package commission

import (
	"github.com/railzwaylabs/atelier/internal/commission/domain"
	"github.com/railzwaylabs/atelier/internal/commission/repository"
	"github.com/railzwaylabs/atelier/internal/commission/service"
	"go.uber.org/fx"
)

var Module = fx.Module("commission.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(func(s domain.Service) domain.Calculator { return s }),
)
