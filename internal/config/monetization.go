package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// MonetizationConfig holds the payout tunables. The values are deliberately
// global: one cap per subscriber per period, one rate per qualifying copy.
type MonetizationConfig struct {
	// MonthlyCopyCap is the number of copies per user per billing period
	// that count toward creator payouts. Copies beyond the cap still
	// succeed but earn nothing.
	MonthlyCopyCap int `mapstructure:"monthlyCopyCap"`
	// RatePerCopy is the creator payout per qualifying copy, in minor
	// currency units.
	RatePerCopy int64 `mapstructure:"ratePerCopy"`
	// MinimumPayoutMinorUnits gates disbursement; aggregated amounts
	// below it stay pending.
	MinimumPayoutMinorUnits int64 `mapstructure:"minimumPayout"`
}

func DefaultMonetizationConfig() MonetizationConfig {
	return MonetizationConfig{
		MonthlyCopyCap:          100,
		RatePerCopy:             7,
		MinimumPayoutMinorUnits: 1000,
	}
}

type MonetizationConfigHolder struct {
	current atomic.Value // holds MonetizationConfig
}

func NewMonetizationConfigHolder() (*MonetizationConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("monetization")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/flowmarket/config")
	v.AddConfigPath("/etc/flowmarket")
	v.AddConfigPath(".")

	v.SetEnvPrefix("FLOWMARKET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultMonetizationConfig()
	v.SetDefault("monetization.monthlyCopyCap", defaults.MonthlyCopyCap)
	v.SetDefault("monetization.ratePerCopy", defaults.RatePerCopy)
	v.SetDefault("monetization.minimumPayout", defaults.MinimumPayoutMinorUnits)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg MonetizationConfig
	if err := v.UnmarshalKey("monetization", &cfg); err != nil {
		return nil, err
	}
	if err := validateMonetizationConfig(cfg); err != nil {
		return nil, err
	}

	holder := &MonetizationConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated MonetizationConfig
		if err := v.UnmarshalKey("monetization", &updated); err != nil {
			log.Printf("[monetization-config] reload failed: %v", err)
			return
		}
		if err := validateMonetizationConfig(updated); err != nil {
			log.Printf("[monetization-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[monetization-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticMonetizationHolder returns a holder pinned to cfg, for tests.
func NewStaticMonetizationHolder(cfg MonetizationConfig) *MonetizationConfigHolder {
	holder := &MonetizationConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *MonetizationConfigHolder) Get() MonetizationConfig {
	return h.current.Load().(MonetizationConfig)
}

func validateMonetizationConfig(cfg MonetizationConfig) error {
	if cfg.MonthlyCopyCap <= 0 {
		return errors.New("monetization.monthlyCopyCap must be positive")
	}
	if cfg.RatePerCopy <= 0 {
		return errors.New("monetization.ratePerCopy must be positive")
	}
	if cfg.MinimumPayoutMinorUnits < 0 {
		return errors.New("monetization.minimumPayout cannot be negative")
	}
	return nil
}
