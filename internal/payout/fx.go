package payout

import (
	"github.com/flowmarket/flowmarket/internal/payout/repository"
	"github.com/flowmarket/flowmarket/internal/payout/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payout.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
	fx.Provide(service.NewAggregator),
	fx.Provide(service.NewDisburser),
	fx.Provide(service.NewEarnings),
)
