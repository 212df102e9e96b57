package injector

import (
	"github.com/google/wire"

	"github.com/paulrobello/par-shape-2d/internal/config"
	"github.com/paulrobello/par-shape-2d/internal/core/events/bus"
	"github.com/paulrobello/par-shape-2d/internal/core/flight"
	"github.com/paulrobello/par-shape-2d/internal/core/game"
	"github.com/paulrobello/par-shape-2d/internal/core/level"
	"github.com/paulrobello/par-shape-2d/internal/core/observability/log"
	"github.com/paulrobello/par-shape-2d/internal/core/scheduler"
	"github.com/paulrobello/par-shape-2d/internal/core/storage"
	"github.com/paulrobello/par-shape-2d/internal/server"
)

// CoreSet builds a session and its collaborators from a configuration.
var CoreSet = wire.NewSet(
	ProvideLogger,
	ProvideBus,
	ProvideScheduler,
	ProvideSession,
	ProvideTweener,
)

// ServerSet adds the level, snapshot store and websocket bridge on top of CoreSet.
var ServerSet = wire.NewSet(
	CoreSet,
	ProvideLevel,
	ProvideStore,
	ProvideServer,
)

func ProvideLogger(cfg config.Config) log.Log {
	return log.New(cfg.LogLevel())
}

func ProvideBus() bus.EventBus {
	return bus.New()
}

func ProvideScheduler(logger log.Log) *scheduler.Scheduler {
	return scheduler.New(logger)
}

func ProvideSession(cfg config.Config, b bus.EventBus, sched *scheduler.Scheduler, logger log.Log) (*game.Session, func(), error) {
	s, err := game.NewSession(cfg.Game(), b, sched, logger)
	if err != nil {
		return nil, nil, err
	}
	return s, func() { _ = s.Close() }, nil
}

func ProvideTweener(cfg config.Config, b bus.EventBus, sched *scheduler.Scheduler, logger log.Log) *flight.Tweener {
	return flight.NewTweener(cfg.Flight, b, sched, logger)
}

// ProvideLevel loads the configured level file, or the built-in demo level.
func ProvideLevel(cfg config.Config) (*level.Definition, error) {
	if cfg.Level.Path == "" {
		return level.Demo(), nil
	}
	return level.LoadFile(cfg.Level.Path)
}

// ProvideStore keeps snapshots on disk when a directory is configured, else in memory.
func ProvideStore(cfg config.Config, logger log.Log) (storage.Store, error) {
	if cfg.Storage.Dir == "" {
		return storage.NewMemoryStore(), nil
	}
	return storage.NewFileStore(cfg.Storage.Dir, logger)
}

func ProvideServer(
	cfg config.Config,
	session *game.Session,
	b bus.EventBus,
	tweener *flight.Tweener,
	def *level.Definition,
	store storage.Store,
	logger log.Log,
) *server.Server {
	return server.NewServer(cfg.Server, session, b, tweener, def, store, logger)
}
