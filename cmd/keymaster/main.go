package main

import (
	"github.com/aestrial/keymaster/internal/clock"
	"github.com/aestrial/keymaster/internal/config"
	"github.com/aestrial/keymaster/internal/migration"
	"github.com/aestrial/keymaster/internal/observability"
	"github.com/aestrial/keymaster/internal/server"
	"github.com/aestrial/keymaster/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		server.Module,
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
