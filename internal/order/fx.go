package order

import (
	"github.com/railzwaylabs/atelier/internal/order/repository"
	"github.com/railzwaylabs/atelier/internal/order/service"
	"go.uber.org/fx"
)

var Module = fx.Module("order.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
