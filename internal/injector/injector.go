//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"

	"github.com/paulrobello/par-shape-2d/internal/config"
	"github.com/paulrobello/par-shape-2d/internal/core/game"
	"github.com/paulrobello/par-shape-2d/internal/server"
)

func InitializeServer(cfg config.Config) (*server.Server, func(), error) {
	wire.Build(ServerSet)
	return nil, nil, nil
}

func InitializeSession(cfg config.Config) (*game.Session, func(), error) {
	wire.Build(ProvideLogger, ProvideBus, ProvideScheduler, ProvideSession)
	return nil, nil, nil
}
