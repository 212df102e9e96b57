// Package level describes puzzle layouts in yaml and builds boards from them.
package level

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/paulrobello/par-shape-2d/internal/core/board"
	"github.com/paulrobello/par-shape-2d/internal/core/collision"
	"github.com/paulrobello/par-shape-2d/internal/core/geometry"
)

var (
	ErrEmptyLevel   = errors.New("level has no pins")
	ErrUnknownKind  = errors.New("unknown shape kind")
	ErrInvalidShape = errors.New("invalid shape")
)

//go:embed demo.yaml
var demo []byte

// Definition is a level as written in a level file. Layers are listed front to back
// unless a depth is given explicitly.
type Definition struct {
	Name string `json:"name" yaml:"name"`
	// Containers optionally fixes the starting container colours.
	Containers []board.Color `json:"containers,omitempty" yaml:"containers,omitempty"`
	Layers     []Layer       `json:"layers" yaml:"layers"`
}

type Layer struct {
	Depth  *int    `json:"depth,omitempty" yaml:"depth,omitempty"`
	Hidden bool    `json:"hidden,omitempty" yaml:"hidden,omitempty"`
	Shapes []Shape `json:"shapes" yaml:"shapes"`
}

// Shape carries the parameters of every geometry kind; Kind selects which ones apply.
type Shape struct {
	Kind     string           `json:"kind" yaml:"kind"`
	Position geometry.Vec     `json:"position" yaml:"position"`
	Angle    float64          `json:"angle,omitempty" yaml:"angle,omitempty"`
	Radius   float64          `json:"radius,omitempty" yaml:"radius,omitempty"`
	Width    float64          `json:"width,omitempty" yaml:"width,omitempty"`
	Height   float64          `json:"height,omitempty" yaml:"height,omitempty"`
	Sides    int              `json:"sides,omitempty" yaml:"sides,omitempty"`
	Vertices []geometry.Vec   `json:"vertices,omitempty" yaml:"vertices,omitempty"`
	Parts    [][]geometry.Vec `json:"parts,omitempty" yaml:"parts,omitempty"`
	Pins     []Pin            `json:"pins" yaml:"pins"`
}

// Pin is placed in its shape's local frame.
type Pin struct {
	Color board.Color  `json:"color" yaml:"color"`
	At    geometry.Vec `json:"at" yaml:"at"`
}

// Load decodes a level definition. Unknown keys are rejected.
func Load(r io.Reader) (*Definition, error) {
	var d Definition
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("decode level: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

func LoadFile(path string) (*Definition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

// Demo is the built-in level used when no level file is configured.
func Demo() *Definition {
	d, err := Load(bytes.NewReader(demo))
	if err != nil {
		panic(fmt.Sprintf("level: broken demo level: %v", err))
	}
	return d
}

func (d *Definition) Validate() error {
	pins := 0
	for li, l := range d.Layers {
		for si, s := range l.Shapes {
			if _, err := s.Geometry(); err != nil {
				return fmt.Errorf("layer %d shape %d: %w", li, si, err)
			}
			for pi, p := range s.Pins {
				if !p.Color.Valid() {
					return fmt.Errorf("layer %d shape %d pin %d: %w", li, si, pi, board.ErrUnknownColor)
				}
			}
			pins += len(s.Pins)
		}
	}
	if pins == 0 {
		return fmt.Errorf("level %q: %w", d.Name, ErrEmptyLevel)
	}
	for i, c := range d.Containers {
		if !c.Valid() {
			return fmt.Errorf("container %d: %w", i, board.ErrUnknownColor)
		}
	}
	return nil
}

// Geometry turns the shape's parameters into a collision outline.
func (s Shape) Geometry() (collision.Geometry, error) {
	switch s.Kind {
	case "circle":
		if s.Radius <= 0 {
			return nil, fmt.Errorf("%w: circle radius %.1f", ErrInvalidShape, s.Radius)
		}
		return collision.Circle{Radius: s.Radius}, nil
	case "rectangle":
		if s.Width <= 0 || s.Height <= 0 {
			return nil, fmt.Errorf("%w: rectangle %.1fx%.1f", ErrInvalidShape, s.Width, s.Height)
		}
		return collision.Rectangle{Width: s.Width, Height: s.Height}, nil
	case "polygon":
		if s.Radius <= 0 || s.Sides < 3 {
			return nil, fmt.Errorf("%w: polygon radius %.1f sides %d", ErrInvalidShape, s.Radius, s.Sides)
		}
		return collision.Polygon{Radius: s.Radius, Sides: s.Sides}, nil
	case "capsule":
		if s.Width < s.Height || s.Height <= 0 {
			return nil, fmt.Errorf("%w: capsule %.1fx%.1f", ErrInvalidShape, s.Width, s.Height)
		}
		return collision.Capsule{Width: s.Width, Height: s.Height}, nil
	case "vertices":
		if len(s.Vertices) < 3 {
			return nil, fmt.Errorf("%w: %d vertices", ErrInvalidShape, len(s.Vertices))
		}
		return collision.VertexList{Vertices: s.Vertices}, nil
	case "composite":
		if len(s.Parts) == 0 {
			return nil, fmt.Errorf("%w: composite without parts", ErrInvalidShape)
		}
		for i, part := range s.Parts {
			if len(part) < 3 {
				return nil, fmt.Errorf("%w: composite part %d has %d vertices", ErrInvalidShape, i, len(part))
			}
		}
		return collision.Composite{Parts: s.Parts}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, s.Kind)
	}
}

// Build lays the definition out on a fresh board. Layers without an explicit depth take
// their index as depth, so the first layer is the front one.
func (d *Definition) Build() (*board.Board, error) {
	b := board.New()
	for li, l := range d.Layers {
		depth := li
		if l.Depth != nil {
			depth = *l.Depth
		}
		layer := b.AddLayer(depth, !l.Hidden)
		for si, s := range l.Shapes {
			g, err := s.Geometry()
			if err != nil {
				return nil, fmt.Errorf("layer %d shape %d: %w", li, si, err)
			}
			shape, err := b.AddShape(layer, collision.Body{
				Transform: geometry.Transform{Position: s.Position, Angle: s.Angle},
				Geometry:  g,
			})
			if err != nil {
				return nil, err
			}
			for _, p := range s.Pins {
				if _, err := b.AddPin(shape, p.Color, p.At); err != nil {
					return nil, err
				}
			}
		}
	}
	return b, nil
}

// Pins counts the pins of every colour in the level.
func (d *Definition) Pins() map[board.Color]int {
	out := make(map[board.Color]int)
	for _, l := range d.Layers {
		for _, s := range l.Shapes {
			for _, p := range s.Pins {
				out[p.Color]++
			}
		}
	}
	return out
}
