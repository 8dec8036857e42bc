package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/flowmarket/flowmarket/internal/clock"
	"github.com/flowmarket/flowmarket/internal/config"
	"github.com/flowmarket/flowmarket/internal/copyledger"
	"github.com/flowmarket/flowmarket/internal/logger"
	"github.com/flowmarket/flowmarket/internal/metrics"
	"github.com/flowmarket/flowmarket/internal/migration"
	"github.com/flowmarket/flowmarket/internal/payout"
	"github.com/flowmarket/flowmarket/internal/scheduler"
	"github.com/flowmarket/flowmarket/internal/transfer"
	"github.com/flowmarket/flowmarket/pkg/db"
)

// Scheduler-only deployment: runs aggregation and disbursement against the
// shared database without serving any HTTP traffic.
func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		metrics.Module,

		// Domain services required by the payout jobs
		copyledger.Module,
		payout.Module,
		transfer.Module,

		// No server module.
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
