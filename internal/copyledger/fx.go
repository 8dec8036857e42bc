package copyledger

import (
	"github.com/flowmarket/flowmarket/internal/copyledger/repository"
	"github.com/flowmarket/flowmarket/internal/copyledger/service"
	"go.uber.org/fx"
)

var Module = fx.Module("copyledger.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
