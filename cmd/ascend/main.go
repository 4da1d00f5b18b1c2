package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/ramonsarchive/ascend/internal/auth"
	"github.com/ramonsarchive/ascend/internal/authorization"
	"github.com/ramonsarchive/ascend/internal/clock"
	"github.com/ramonsarchive/ascend/internal/config"
	"github.com/ramonsarchive/ascend/internal/logger"
	"github.com/ramonsarchive/ascend/internal/membership"
	"github.com/ramonsarchive/ascend/internal/migration"
	"github.com/ramonsarchive/ascend/internal/observability"
	"github.com/ramonsarchive/ascend/internal/providers"
	"github.com/ramonsarchive/ascend/internal/ratelimit"
	"github.com/ramonsarchive/ascend/internal/scope"
	"github.com/ramonsarchive/ascend/internal/server"
	"github.com/ramonsarchive/ascend/pkg/db"
	"github.com/ramonsarchive/ascend/pkg/redisclient"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		logger.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		redisclient.Module,
		clock.Module,
		migration.Module,

		// Functional Domains
		auth.Module,
		authorization.Module,
		scope.Module,
		ratelimit.Module,
		providers.Module,
		membership.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
