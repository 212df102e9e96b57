// Package storage persists session snapshots.
//
// Snapshots are stored as yaml documents inside a small envelope carrying a format
// version and an xxhash checksum of the document, so a truncated or hand-edited file is
// refused instead of being restored into an inconsistent session.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"gopkg.in/yaml.v3"

	"github.com/paulrobello/par-shape-2d/internal/core/slots"
	"github.com/paulrobello/par-shape-2d/pkg/generic"
)

const formatVersion = 1

var (
	ErrNotFound   = errors.New("snapshot not found")
	ErrInvalidKey = errors.New("invalid snapshot key")
	ErrChecksum   = errors.New("snapshot checksum mismatch")
	ErrVersion    = errors.New("unsupported snapshot version")
)

type Store interface {
	Write(ctx context.Context, key string, snap slots.Snapshot) error
	Read(ctx context.Context, key string) (slots.Snapshot, error)
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)

	Statistics() Statistics
}

type Statistics struct {
	Writes       uint64
	Reads        uint64
	Deletes      uint64
	BytesWritten uint64
	Corrupted    uint64
}

var buffers = generic.NewPool(func() *bytes.Buffer { return new(bytes.Buffer) }, (*bytes.Buffer).Reset)

type envelope struct {
	Version  int    `yaml:"version"`
	Checksum string `yaml:"checksum"`
	Snapshot string `yaml:"snapshot"`
}

// Encode renders a snapshot in its stored form.
func Encode(snap slots.Snapshot) ([]byte, error) {
	buf := buffers.Get()
	defer buffers.Put(buf)

	enc := yaml.NewEncoder(buf)
	enc.SetIndent(2)
	if err := enc.Encode(snap); err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return yaml.Marshal(envelope{
		Version:  formatVersion,
		Checksum: strconv.FormatUint(xxhash.Sum64(buf.Bytes()), 16),
		Snapshot: buf.String(),
	})
}

// Decode verifies and unpacks a stored snapshot.
func Decode(raw []byte) (slots.Snapshot, error) {
	var env envelope
	if err := yaml.Unmarshal(raw, &env); err != nil {
		return slots.Snapshot{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Version != formatVersion {
		return slots.Snapshot{}, fmt.Errorf("%w: %d", ErrVersion, env.Version)
	}
	sum := strconv.FormatUint(xxhash.Sum64String(env.Snapshot), 16)
	if sum != env.Checksum {
		return slots.Snapshot{}, fmt.Errorf("%w: have %s, want %s", ErrChecksum, sum, env.Checksum)
	}
	var snap slots.Snapshot
	if err := yaml.Unmarshal([]byte(env.Snapshot), &snap); err != nil {
		return slots.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

// ValidKey reports whether key can name a snapshot in every store.
func ValidKey(key string) error {
	if key == "" || len(key) > 128 || strings.ContainsAny(key, `/\:`) || strings.HasPrefix(key, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}
