package work

import (
	"github.com/smallbiznis/opsdesk/internal/work/service"
	"go.uber.org/fx"
)

var Module = fx.Module("work.service",
	fx.Provide(service.New),
)
