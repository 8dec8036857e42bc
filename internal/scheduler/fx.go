package scheduler

import (
	"context"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/flowmarket/flowmarket/internal/config"
	"github.com/flowmarket/flowmarket/internal/ratelimit"
)

var Module = fx.Module("scheduler",
	fx.Provide(ProvideConfig),
	fx.Provide(ProvideLocker),
	fx.Provide(New),
	fx.Invoke(StartScheduler),
)

func ProvideConfig(cfg config.Config) Config {
	sched := Config{}
	if cfg.Scheduler.RunInterval > 0 {
		sched.RunInterval = time.Duration(cfg.Scheduler.RunInterval) * time.Second
	}
	return sched.withDefaults()
}

// ProvideLocker wires the redis run lock when SCHEDULER_REDIS_ADDR is set.
// A nil locker means single-instance mode.
func ProvideLocker(cfg config.Config) *ratelimit.Locker {
	addr := strings.TrimSpace(cfg.Scheduler.RedisAddr)
	if addr == "" {
		return nil
	}
	return ratelimit.NewLocker(redis.NewClient(&redis.Options{Addr: addr}))
}

func StartScheduler(lc fx.Lifecycle, cfg config.Config, sched *Scheduler) {
	if !cfg.Scheduler.Enabled {
		return
	}

	runCtx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go sched.RunForever(runCtx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
