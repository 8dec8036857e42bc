package transfer

import (
	"strings"

	"github.com/flowmarket/flowmarket/internal/config"
	"github.com/flowmarket/flowmarket/internal/transfer/adapters"
	"github.com/flowmarket/flowmarket/internal/transfer/adapters/stripe"
	"github.com/flowmarket/flowmarket/internal/transfer/domain"
	"github.com/flowmarket/flowmarket/internal/transfer/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func provideRegistry() *adapters.Registry {
	return adapters.NewRegistry(stripe.NewFactory())
}

// provideAdapter returns a nil adapter when no provider is configured, so
// aggregate-only and local boots still come up. The disburser refuses to
// move records without one.
func provideAdapter(registry *adapters.Registry, cfg config.Config, log *zap.Logger) (domain.Adapter, error) {
	if strings.TrimSpace(cfg.Stripe.APIKey) == "" {
		log.Warn("stripe api key not configured, disbursement transfers disabled")
		return nil, nil
	}

	return registry.NewAdapter("stripe", domain.AdapterConfig{
		Config: map[string]any{
			"api_key":  cfg.Stripe.APIKey,
			"base_url": cfg.Stripe.BaseURL,
		},
	})
}

var Module = fx.Module("transfer",
	fx.Provide(
		provideRegistry,
		provideAdapter,
		repository.ProvideDestinationResolver,
	),
)
