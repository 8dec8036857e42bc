package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/flowmarket/flowmarket/internal/clock"
	"github.com/flowmarket/flowmarket/internal/config"
	"github.com/flowmarket/flowmarket/internal/logger"
	"github.com/flowmarket/flowmarket/internal/migration"
	"github.com/flowmarket/flowmarket/internal/scheduler"
	"github.com/flowmarket/flowmarket/internal/server"
	"github.com/flowmarket/flowmarket/pkg/db"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// HTTP surface plus every domain module it carries
		server.Module,

		// Payout batch jobs run in-process in monolith mode
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
