package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/paulrobello/par-shape-2d/internal/core/observability/log"
	"github.com/paulrobello/par-shape-2d/internal/core/slots"
)

const fileExt = ".snapshot.yaml"

var _ Store = (*FileStore)(nil)

// FileStore keeps one file per snapshot in a directory. Writes go through a temporary
// file and a rename so a crash never leaves a half-written snapshot behind.
type FileStore struct {
	dir    string
	logger log.Log
	stats  counters
}

// NewFileStore creates dir when it does not exist.
func NewFileStore(dir string, logger log.Log) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	return &FileStore{
		dir:    dir,
		logger: logger.With(log.String("component", "storage"), log.String("dir", dir)),
	}, nil
}

func (f *FileStore) path(key string) string { return filepath.Join(f.dir, key+fileExt) }

func (f *FileStore) Write(ctx context.Context, key string, snap slots.Snapshot) error {
	if err := ValidKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := Encode(snap)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(f.dir, "."+key+"-*")
	if err != nil {
		return fmt.Errorf("write %q: %w", key, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %q: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), f.path(key)); err != nil {
		return fmt.Errorf("write %q: %w", key, err)
	}
	f.stats.writes.Add(1)
	f.stats.bytesWritten.Add(uint64(len(raw)))
	f.logger.Debug("Snapshot written", log.String("key", key), log.Int("bytes", len(raw)))
	return nil
}

func (f *FileStore) Read(ctx context.Context, key string) (slots.Snapshot, error) {
	if err := ValidKey(key); err != nil {
		return slots.Snapshot{}, err
	}
	if err := ctx.Err(); err != nil {
		return slots.Snapshot{}, err
	}
	raw, err := os.ReadFile(f.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return slots.Snapshot{}, fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	if err != nil {
		return slots.Snapshot{}, fmt.Errorf("read %q: %w", key, err)
	}
	f.stats.reads.Add(1)
	snap, err := Decode(raw)
	if err != nil {
		f.stats.corrupted.Add(1)
		f.logger.Warn("Corrupted snapshot", log.String("key", key), log.Error(err))
		return slots.Snapshot{}, fmt.Errorf("read %q: %w", key, err)
	}
	return snap, nil
}

func (f *FileStore) Delete(_ context.Context, key string) error {
	if err := ValidKey(key); err != nil {
		return err
	}
	err := os.Remove(f.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	if err != nil {
		return err
	}
	f.stats.deletes.Add(1)
	return nil
}

func (f *FileStore) Keys(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, err
	}
	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, fileExt) {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, fileExt))
	}
	slices.Sort(keys)
	return keys, nil
}

func (f *FileStore) Statistics() Statistics { return f.stats.snapshot() }
