package board

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/paulrobello/par-shape-2d/internal/core/collision"
	"github.com/paulrobello/par-shape-2d/internal/core/geometry"
)

func rectBody(x, y float64) collision.Body {
	return collision.Body{
		Transform: geometry.Transform{Position: geometry.V(x, y)},
		Geometry:  collision.Rectangle{Width: 100, Height: 40},
	}
}

func TestAddShapeAndPins(t *testing.T) {
	b := New()
	layer := b.AddLayer(2, true)
	shape, err := b.AddShape(layer, rectBody(100, 100))
	require.NoError(t, err)

	pin, err := b.AddPin(shape, Red, geometry.V(-30, 0))
	require.NoError(t, err)

	p, ok := b.Pin(pin)
	require.True(t, ok)
	assert.Equal(t, geometry.V(70, 100), p.Position)
	assert.Equal(t, Red, p.Color)

	s, ok := b.Shape(shape)
	require.True(t, ok)
	assert.Equal(t, 2, s.Depth, "depth comes from the layer")
	assert.Equal(t, []PinID{pin}, s.Pins)

	_, err = b.AddShape(LayerID(99), rectBody(0, 0))
	assert.ErrorIs(t, err, ErrUnknownLayer)
	_, err = b.AddPin(ShapeID(99), Red, geometry.Vec{})
	assert.ErrorIs(t, err, ErrUnknownShape)
	_, err = b.AddPin(shape, Color(0), geometry.Vec{})
	assert.ErrorIs(t, err, ErrUnknownColor)
}

func TestUpdateBodyMovesPins(t *testing.T) {
	b := New()
	layer := b.AddLayer(0, true)
	shape, _ := b.AddShape(layer, rectBody(0, 0))
	pin, _ := b.AddPin(shape, Blue, geometry.V(10, 0))

	resolved := []geometry.Vec{geometry.V(0, 0), geometry.V(1, 0), geometry.V(1, 1)}
	require.NoError(t, b.UpdateBody(shape, geometry.Transform{Position: geometry.V(50, 50), Angle: math.Pi / 2}, resolved))

	p, _ := b.Pin(pin)
	assert.InDelta(t, 50, p.Position.X, 1e-9)
	assert.InDelta(t, 60, p.Position.Y, 1e-9)

	s, _ := b.Shape(shape)
	resolved[0] = geometry.V(9, 9)
	assert.Equal(t, geometry.V(0, 0), s.Body.Resolved[0], "resolved outline is copied")

	assert.ErrorIs(t, b.UpdateBody(ShapeID(42), geometry.Transform{}, nil), ErrUnknownShape)
}

func TestDetachClearsShapeAfterLastPin(t *testing.T) {
	b := New()
	layer := b.AddLayer(0, true)
	shape, _ := b.AddShape(layer, rectBody(0, 0))
	p1, _ := b.AddPin(shape, Red, geometry.V(-10, 0))
	p2, _ := b.AddPin(shape, Red, geometry.V(10, 0))

	cleared, err := b.Detach(p1)
	require.NoError(t, err)
	assert.False(t, cleared)
	assert.False(t, b.AllCleared())

	cleared, err = b.Detach(p2)
	require.NoError(t, err)
	assert.True(t, cleared)
	assert.True(t, b.AllCleared())

	_, err = b.Detach(p2)
	assert.ErrorIs(t, err, ErrPinRemoved)
	_, err = b.AddPin(shape, Red, geometry.Vec{})
	assert.ErrorIs(t, err, ErrShapeCleared)
}

func TestExtractableColorsAndOutstanding(t *testing.T) {
	b := New()
	layer := b.AddLayer(0, true)
	shape, _ := b.AddShape(layer, rectBody(0, 0))
	p1, _ := b.AddPin(shape, Green, geometry.V(-10, 0))
	p2, _ := b.AddPin(shape, Red, geometry.V(0, 0))
	p3, _ := b.AddPin(shape, Green, geometry.V(10, 0))

	for _, id := range []PinID{p1, p2, p3} {
		p, _ := b.Pin(id)
		p.Extractable = true
	}
	assert.Equal(t, []Color{Red, Green}, b.ExtractableColors())
	assert.Equal(t, 3, b.Outstanding())

	pin2, _ := b.Pin(p2)
	pin2.InFlight = true
	assert.Equal(t, []Color{Green}, b.ExtractableColors())
	assert.Equal(t, 2, b.Outstanding())
}

func TestPinAtPrefersFrontLayer(t *testing.T) {
	b := New()
	back := b.AddLayer(3, true)
	front := b.AddLayer(1, true)
	backShape, _ := b.AddShape(back, rectBody(0, 0))
	frontShape, _ := b.AddShape(front, rectBody(0, 0))
	backPin, _ := b.AddPin(backShape, Red, geometry.V(0, 0))
	frontPin, _ := b.AddPin(frontShape, Blue, geometry.V(4, 0))

	got, ok := b.PinAt(geometry.V(1, 0), 2, 5)
	require.True(t, ok)
	assert.Equal(t, frontPin, got)

	require.NoError(t, b.SetLayerVisible(front, false))
	got, ok = b.PinAt(geometry.V(1, 0), 2, 5)
	require.True(t, ok)
	assert.Equal(t, backPin, got)

	_, ok = b.PinAt(geometry.V(100, 100), 2, 5)
	assert.False(t, ok)
	assert.ErrorIs(t, b.SetLayerVisible(LayerID(77), true), ErrUnknownLayer)
}

func TestColorText(t *testing.T) {
	c, err := ParseColor(" Purple ")
	require.NoError(t, err)
	assert.Equal(t, Purple, c)

	_, err = ParseColor("teal")
	assert.ErrorIs(t, err, ErrUnknownColor)

	var doc struct {
		Colors []Color `yaml:"colors"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("colors: [red, yellow]"), &doc))
	assert.Equal(t, []Color{Red, Yellow}, doc.Colors)

	out, err := yaml.Marshal(doc)
	require.NoError(t, err)
	assert.Contains(t, string(out), "- yellow")

	assert.Equal(t, "color(42)", Color(42).String())
	assert.Len(t, Palette(), 8)
}
