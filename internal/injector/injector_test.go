package injector

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paulrobello/par-shape-2d/internal/config"
	"github.com/paulrobello/par-shape-2d/internal/core/level"
	"github.com/paulrobello/par-shape-2d/internal/core/storage"
)

func TestInitializeServer(t *testing.T) {
	cfg := config.Default()
	cfg.Log.Level = "error"
	srv, cleanup, err := InitializeServer(cfg)
	require.NoError(t, err)
	defer cleanup()
	assert.NotNil(t, srv)
	assert.Zero(t, srv.ClientCount())
}

func TestInitializeSession(t *testing.T) {
	cfg := config.Default()
	cfg.Log.Level = "error"
	s, cleanup, err := InitializeSession(cfg)
	require.NoError(t, err)
	defer cleanup()

	b, err := level.Demo().Build()
	require.NoError(t, err)
	require.NoError(t, s.Load(b, nil))
	assert.NotEmpty(t, s.Allocator().Containers())
}

func TestProvideStore(t *testing.T) {
	cfg := config.Default()
	st, err := ProvideStore(cfg, ProvideLogger(cfg))
	require.NoError(t, err)
	assert.IsType(t, &storage.MemoryStore{}, st)

	cfg.Storage.Dir = filepath.Join(t.TempDir(), "snapshots")
	st, err = ProvideStore(cfg, ProvideLogger(cfg))
	require.NoError(t, err)
	assert.IsType(t, &storage.FileStore{}, st)
}

func TestProvideLevelMissingFile(t *testing.T) {
	cfg := config.Default()
	cfg.Level.Path = filepath.Join(t.TempDir(), "nope.yaml")
	_, err := ProvideLevel(cfg)
	assert.Error(t, err)
}
