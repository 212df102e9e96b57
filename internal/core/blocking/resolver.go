// Package blocking decides which pins can currently be pulled out of the board.
//
// A pin is extractable when its shape is visible and uncleared and no other visible,
// uncleared shape with a strictly lower depth overlaps a circle of pinRadius+margin
// around the pin.
package blocking

import (
	"context"
	"fmt"

	"github.com/paulrobello/par-shape-2d/internal/core/board"
	"github.com/paulrobello/par-shape-2d/internal/core/collision"
	"github.com/paulrobello/par-shape-2d/internal/core/observability/log"
	"github.com/paulrobello/par-shape-2d/pkg/concurrent"
)

// Mode selects how precise a check is.
type Mode uint8

const (
	// Exact runs the full two-phase collision test. Authoritative.
	Exact Mode = iota
	// Bounds compares bounding boxes only. It may report a pin blocked when it is not,
	// never the reverse.
	Bounds
)

func (m Mode) String() string {
	if m == Bounds {
		return "bounds"
	}
	return "exact"
}

type Config struct {
	PinRadius float64
	Margin    float64
	// Workers bounds the goroutines used by Refresh.
	Workers int
}

// Changes lists the pins whose flag flipped during a Refresh, in board order.
type Changes struct {
	Extractable []board.PinID
	Blocked     []board.PinID
}

func (c Changes) Empty() bool { return len(c.Extractable) == 0 && len(c.Blocked) == 0 }

type Resolver struct {
	board  *board.Board
	engine *collision.Engine
	cfg    Config
	logger log.Log
}

func NewResolver(b *board.Board, engine *collision.Engine, cfg Config, logger log.Log) *Resolver {
	return &Resolver{
		board:  b,
		engine: engine,
		cfg:    cfg,
		logger: logger.With(log.String("component", "blocking")),
	}
}

// Reset points the resolver at a different board.
func (r *Resolver) Reset(b *board.Board) { r.board = b }

func (r *Resolver) probeRadius() float64 { return r.cfg.PinRadius + r.cfg.Margin }

// Blockers returns the shapes in front of the pin that cover it, in board order. A pin
// that is unknown or already off the board has no blockers.
func (r *Resolver) Blockers(id board.PinID, mode Mode) []board.ShapeID {
	p, ok := r.board.Pin(id)
	if !ok || p.Removed {
		return nil
	}
	own, ok := r.board.Shape(p.Shape)
	if !ok {
		return nil
	}

	var out []board.ShapeID
	radius := r.probeRadius()
	for _, s := range r.board.Shapes() {
		if s.ID == own.ID || s.Cleared || s.Depth >= own.Depth || !r.board.ShapeVisible(s) {
			continue
		}
		var hit bool
		if mode == Bounds {
			hit = r.engine.BoundsOverlap(p.Position, radius, s.Body)
		} else {
			hit = r.engine.Intersects(p.Position, radius, s.Body)
		}
		if hit {
			out = append(out, s.ID)
		}
	}
	return out
}

// Check reports whether the pin may be extracted under the given mode.
func (r *Resolver) Check(id board.PinID, mode Mode) bool {
	p, ok := r.board.Pin(id)
	if !ok || p.Removed {
		return false
	}
	own, ok := r.board.Shape(p.Shape)
	if !ok || own.Cleared || !r.board.ShapeVisible(own) {
		return false
	}
	return len(r.Blockers(id, mode)) == 0
}

// IsExtractable is the authoritative exact check.
func (r *Resolver) IsExtractable(id board.PinID) bool { return r.Check(id, Exact) }

// Refresh recomputes the Extractable flag of every pin still on the board and not in
// flight. Checks run in parallel; flags are written afterwards on the calling goroutine.
func (r *Resolver) Refresh(ctx context.Context) (Changes, error) {
	var live []*board.Pin
	for _, p := range r.board.Pins() {
		if !p.Removed && !p.InFlight {
			live = append(live, p)
		}
	}

	results, err := concurrent.Map(ctx, live, r.cfg.Workers, func(_ context.Context, p *board.Pin) (bool, error) {
		return r.IsExtractable(p.ID), nil
	})
	if err != nil {
		return Changes{}, fmt.Errorf("refresh extractability: %w", err)
	}

	var changes Changes
	for i, p := range live {
		if results[i] == p.Extractable {
			continue
		}
		p.Extractable = results[i]
		if results[i] {
			changes.Extractable = append(changes.Extractable, p.ID)
		} else {
			changes.Blocked = append(changes.Blocked, p.ID)
		}
	}

	r.logger.Debug("Extractability refreshed",
		log.Int("checked", len(live)),
		log.Int("now_extractable", len(changes.Extractable)),
		log.Int("now_blocked", len(changes.Blocked)),
	)
	return changes, nil
}
