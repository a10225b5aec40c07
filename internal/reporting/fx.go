package reporting

import (
	lockredis "github.com/railzwaylabs/atelier/internal/redis"
	"github.com/railzwaylabs/atelier/internal/reporting/domain"
	"github.com/railzwaylabs/atelier/internal/reporting/service"
	"go.uber.org/fx"
)

var Module = fx.Module("reporting.service",
	fx.Provide(func(l *lockredis.Lock) domain.Locker { return l }),
	fx.Provide(service.New),
)
