package catalog

import (
	"github.com/flowmarket/flowmarket/internal/catalog/service"
	"go.uber.org/fx"
)

var Module = fx.Module("catalog.service",
	fx.Provide(service.NewService),
)
