// Package board is the live registry of layers, shapes and pins.
//
// The board is owned by a single goroutine. Pointers it hands out stay valid for the
// lifetime of the board and may be mutated only through board methods or by the
// routing layer's flag updates.
package board

import (
	"fmt"
	"math"
	"slices"

	"github.com/kamstrup/intmap"

	"github.com/paulrobello/par-shape-2d/internal/core/collision"
	"github.com/paulrobello/par-shape-2d/internal/core/geometry"
)

type Board struct {
	layers *intmap.Map[LayerID, *Layer]
	shapes *intmap.Map[ShapeID, *Shape]
	pins   *intmap.Map[PinID, *Pin]

	layerOrder []LayerID
	shapeOrder []ShapeID
	pinOrder   []PinID

	nextLayer LayerID
	nextShape ShapeID
	nextPin   PinID
}

func New() *Board {
	return &Board{
		layers: intmap.New[LayerID, *Layer](16),
		shapes: intmap.New[ShapeID, *Shape](64),
		pins:   intmap.New[PinID, *Pin](256),
	}
}

func (b *Board) AddLayer(depth int, visible bool) LayerID {
	b.nextLayer++
	id := b.nextLayer
	b.layers.Put(id, &Layer{ID: id, Depth: depth, Visible: visible})
	b.layerOrder = append(b.layerOrder, id)
	return id
}

func (b *Board) AddShape(layer LayerID, body collision.Body) (ShapeID, error) {
	l, ok := b.layers.Get(layer)
	if !ok {
		return 0, fmt.Errorf("add shape: %w: %d", ErrUnknownLayer, layer)
	}
	b.nextShape++
	id := b.nextShape
	b.shapes.Put(id, &Shape{ID: id, Layer: layer, Depth: l.Depth, Body: body})
	b.shapeOrder = append(b.shapeOrder, id)
	l.Shapes = append(l.Shapes, id)
	return id, nil
}

// AddPin fixes a pin to a shape at a position given in the shape's local frame.
func (b *Board) AddPin(shape ShapeID, color Color, local geometry.Vec) (PinID, error) {
	s, ok := b.shapes.Get(shape)
	if !ok {
		return NoPin, fmt.Errorf("add pin: %w: %d", ErrUnknownShape, shape)
	}
	if s.Cleared {
		return NoPin, fmt.Errorf("add pin: %w: %d", ErrShapeCleared, shape)
	}
	if !color.Valid() {
		return NoPin, fmt.Errorf("add pin: %w: %d", ErrUnknownColor, uint8(color))
	}
	b.nextPin++
	id := b.nextPin
	b.pins.Put(id, &Pin{
		ID:       id,
		Shape:    shape,
		Color:    color,
		Local:    local,
		Position: s.Body.Transform.ToWorld(local),
	})
	b.pinOrder = append(b.pinOrder, id)
	s.Pins = append(s.Pins, id)
	return id, nil
}

func (b *Board) Pin(id PinID) (*Pin, bool)       { return b.pins.Get(id) }
func (b *Board) Shape(id ShapeID) (*Shape, bool) { return b.shapes.Get(id) }
func (b *Board) Layer(id LayerID) (*Layer, bool) { return b.layers.Get(id) }

// Pins returns every pin in creation order.
func (b *Board) Pins() []*Pin {
	out := make([]*Pin, 0, len(b.pinOrder))
	for _, id := range b.pinOrder {
		p, _ := b.pins.Get(id)
		out = append(out, p)
	}
	return out
}

// Shapes returns every shape in creation order, cleared ones included.
func (b *Board) Shapes() []*Shape {
	out := make([]*Shape, 0, len(b.shapeOrder))
	for _, id := range b.shapeOrder {
		s, _ := b.shapes.Get(id)
		out = append(out, s)
	}
	return out
}

func (b *Board) Layers() []*Layer {
	out := make([]*Layer, 0, len(b.layerOrder))
	for _, id := range b.layerOrder {
		l, _ := b.layers.Get(id)
		out = append(out, l)
	}
	return out
}

// ShapeVisible reports whether the shape's layer is currently shown.
func (b *Board) ShapeVisible(s *Shape) bool {
	l, ok := b.layers.Get(s.Layer)
	return ok && l.Visible
}

func (b *Board) SetLayerVisible(id LayerID, visible bool) error {
	l, ok := b.layers.Get(id)
	if !ok {
		return fmt.Errorf("set visibility: %w: %d", ErrUnknownLayer, id)
	}
	l.Visible = visible
	return nil
}

// UpdateBody applies a transform (and optionally the physics-resolved outline) from the
// physics collaborator. Pins still fixed to the shape follow it.
func (b *Board) UpdateBody(id ShapeID, transform geometry.Transform, resolved []geometry.Vec) error {
	s, ok := b.shapes.Get(id)
	if !ok {
		return fmt.Errorf("update body: %w: %d", ErrUnknownShape, id)
	}
	s.Body.Transform = transform
	s.Body.Resolved = slices.Clone(resolved)
	for _, pid := range s.Pins {
		p, _ := b.pins.Get(pid)
		if p.Removed || p.InFlight {
			continue
		}
		p.Position = transform.ToWorld(p.Local)
	}
	return nil
}

// Detach removes a pin from its shape for good. The shape is cleared when none of its
// pins remain; cleared reports that transition.
func (b *Board) Detach(id PinID) (cleared bool, err error) {
	p, ok := b.pins.Get(id)
	if !ok {
		return false, fmt.Errorf("detach: %w: %d", ErrUnknownPin, id)
	}
	if p.Removed {
		return false, fmt.Errorf("detach: %w: %d", ErrPinRemoved, id)
	}
	p.Removed = true
	p.Extractable = false

	s, _ := b.shapes.Get(p.Shape)
	for _, pid := range s.Pins {
		other, _ := b.pins.Get(pid)
		if !other.Removed {
			return false, nil
		}
	}
	s.Cleared = true
	return true, nil
}

// AllCleared reports whether every shape has been cleared. An empty board counts as cleared.
func (b *Board) AllCleared() bool {
	for _, id := range b.shapeOrder {
		s, _ := b.shapes.Get(id)
		if !s.Cleared {
			return false
		}
	}
	return true
}

// ExtractableColors lists, without duplicates and in palette order, the colours of pins
// that can be picked right now.
func (b *Board) ExtractableColors() []Color {
	seen := make(map[Color]struct{})
	for _, id := range b.pinOrder {
		p, _ := b.pins.Get(id)
		if p.Extractable && !p.InFlight && !p.Removed {
			seen[p.Color] = struct{}{}
		}
	}
	out := make([]Color, 0, len(seen))
	for _, c := range Palette() {
		if _, ok := seen[c]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Outstanding counts pins still fixed to the board and not yet launched anywhere.
func (b *Board) Outstanding() int {
	n := 0
	for _, id := range b.pinOrder {
		p, _ := b.pins.Get(id)
		if !p.Removed && !p.InFlight {
			n++
		}
	}
	return n
}

// PinAt returns the front-most pin under a pointer. A pin is hit when its centre lies
// within radius+pinRadius of the point; ties on depth go to the nearest pin.
func (b *Board) PinAt(point geometry.Vec, radius, pinRadius float64) (PinID, bool) {
	best := NoPin
	bestDepth := math.MaxInt
	bestDist := math.Inf(1)
	for _, id := range b.pinOrder {
		p, _ := b.pins.Get(id)
		if p.Removed || p.InFlight {
			continue
		}
		s, _ := b.shapes.Get(p.Shape)
		if s.Cleared || !b.ShapeVisible(s) {
			continue
		}
		d := geometry.Distance(point, p.Position)
		if d > radius+pinRadius {
			continue
		}
		if s.Depth < bestDepth || (s.Depth == bestDepth && d < bestDist) {
			best, bestDepth, bestDist = id, s.Depth, d
		}
	}
	return best, best != NoPin
}
