// Package collision decides whether a circle (a pin plus margin) overlaps a shape.
//
// Every test runs in two phases. The broad phase rejects on axis-aligned boxes; the
// narrow phase picks the most accurate outline available, in this order:
//   - composite parts, each as a rotated arbitrary polygon;
//   - the physics-resolved world-space vertex list, when the physics collaborator supplied one;
//   - the declared geometry kind;
//   - a fallback rectangle when nothing else is known.
//
// Preferring the resolved vertices keeps blocking in step with what the physics engine
// actually simulates.
package collision

import (
	"sync/atomic"

	"github.com/paulrobello/par-shape-2d/internal/core/geometry"
)

// Body is a shape as placed in the world.
type Body struct {
	Transform geometry.Transform
	Geometry  Geometry
	// Resolved is the physics engine's world-space outline with rotation baked in.
	Resolved []geometry.Vec
}

// Stats counts engine work since creation.
type Stats struct {
	Tests        uint64
	BroadRejects uint64
	Hits         uint64
}

// Engine is safe for concurrent use; it holds no per-body state.
type Engine struct {
	fallback Rectangle

	tests        atomic.Uint64
	broadRejects atomic.Uint64
	hits         atomic.Uint64
}

// NewEngine returns an engine that treats bodies without any geometry as the fallback rectangle.
func NewEngine(fallback Rectangle) *Engine {
	return &Engine{fallback: fallback}
}

// narrowPath selects the outline the narrow phase will test.
func (e *Engine) narrowPath(b Body) (Geometry, []geometry.Vec) {
	if c, ok := b.Geometry.(Composite); ok && len(c.Parts) > 0 {
		return c, nil
	}
	if len(b.Resolved) >= 3 {
		return nil, b.Resolved
	}
	if b.Geometry != nil {
		return b.Geometry, nil
	}
	return e.fallback, nil
}

// Bounds is the world-space box of the outline the narrow phase would test.
func (e *Engine) Bounds(b Body) geometry.Box {
	g, resolved := e.narrowPath(b)
	if resolved != nil {
		return geometry.BoxOf(resolved...)
	}
	return g.Bounds(b.Transform)
}

// BoundsOverlap is the broad phase alone: a cheap, conservative test. A false result
// guarantees Intersects is false too.
func (e *Engine) BoundsOverlap(center geometry.Vec, radius float64, b Body) bool {
	return geometry.CircleBox(center, radius).Overlaps(e.Bounds(b))
}

// Intersects runs the broad phase and then the exact narrow phase.
func (e *Engine) Intersects(center geometry.Vec, radius float64, b Body) bool {
	e.tests.Add(1)
	g, resolved := e.narrowPath(b)

	var box geometry.Box
	if resolved != nil {
		box = geometry.BoxOf(resolved...)
	} else {
		box = g.Bounds(b.Transform)
	}
	if !geometry.CircleBox(center, radius).Overlaps(box) {
		e.broadRejects.Add(1)
		return false
	}

	var hit bool
	if resolved != nil {
		hit = geometry.CircleIntersectsPolygon(center, radius, resolved)
	} else {
		hit = g.Intersects(b.Transform, center, radius)
	}
	if hit {
		e.hits.Add(1)
	}
	return hit
}

func (e *Engine) Stats() Stats {
	return Stats{
		Tests:        e.tests.Load(),
		BroadRejects: e.broadRejects.Load(),
		Hits:         e.hits.Load(),
	}
}
