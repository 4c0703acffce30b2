package overdue

import (
	"github.com/smallbiznis/opsdesk/internal/overdue/repository"
	"github.com/smallbiznis/opsdesk/internal/overdue/service"
	"go.uber.org/fx"
)

var Module = fx.Module("overdue.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
