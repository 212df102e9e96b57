package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var square = []Vec{V(0, 0), V(10, 0), V(10, 10), V(0, 10)}

func TestPointInPolygon(t *testing.T) {
	tests := []struct {
		name string
		p    Vec
		want bool
	}{
		{"centre", V(5, 5), true},
		{"outside right", V(15, 5), false},
		{"outside above", V(5, -1), false},
		{"near corner inside", V(0.01, 0.01), true},
		{"vertex height ray", V(-5, 10), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PointInPolygon(tt.p, square))
		})
	}

	assert.False(t, PointInPolygon(V(0, 0), []Vec{V(0, 0), V(1, 1)}), "degenerate polygon")
}

func TestPointInConcavePolygon(t *testing.T) {
	// U shape opening upwards.
	u := []Vec{V(0, 0), V(30, 0), V(30, 30), V(20, 30), V(20, 10), V(10, 10), V(10, 30), V(0, 30)}
	assert.True(t, PointInPolygon(V(5, 20), u))
	assert.True(t, PointInPolygon(V(25, 20), u))
	assert.False(t, PointInPolygon(V(15, 20), u), "inside the notch")
}

func TestDistancePointToSegment(t *testing.T) {
	a, b := V(0, 0), V(10, 0)
	assert.InDelta(t, 5, DistancePointToSegment(V(5, 5), a, b), 1e-9)
	assert.InDelta(t, 5, DistancePointToSegment(V(-3, 4), a, b), 1e-9, "clamped to a")
	assert.InDelta(t, 5, DistancePointToSegment(V(13, -4), a, b), 1e-9, "clamped to b")
	assert.InDelta(t, 5, DistancePointToSegment(V(3, 4), a, a), 1e-9, "degenerate segment")
}

func TestCircleIntersectsSegment(t *testing.T) {
	assert.True(t, CircleIntersectsSegment(V(5, 3), 3, V(0, 0), V(10, 0)), "tangent counts")
	assert.False(t, CircleIntersectsSegment(V(5, 3.1), 3, V(0, 0), V(10, 0)))
}

func TestCircleIntersectsPolygon(t *testing.T) {
	assert.True(t, CircleIntersectsPolygon(V(5, 5), 1, square), "inside")
	assert.True(t, CircleIntersectsPolygon(V(12, 5), 2.5, square), "edge within radius")
	assert.False(t, CircleIntersectsPolygon(V(12, 5), 1.5, square))
	assert.False(t, CircleIntersectsPolygon(V(0, 0), 100, nil))
}

func TestRegularPolygon(t *testing.T) {
	verts := RegularPolygon(10, 4, -math.Pi/2)
	require.Len(t, verts, 4)
	assert.InDelta(t, 0, verts[0].X, 1e-9)
	assert.InDelta(t, -10, verts[0].Y, 1e-9, "first vertex points up")
	assert.InDelta(t, 10, verts[1].X, 1e-9)
	assert.Nil(t, RegularPolygon(10, 2, 0))
}

func TestTransformRoundTrip(t *testing.T) {
	tr := Transform{Position: V(100, 50), Angle: math.Pi / 2}
	world := tr.ToWorld(V(10, 0))
	assert.InDelta(t, 100, world.X, 1e-9)
	assert.InDelta(t, 60, world.Y, 1e-9)

	local := tr.ToLocal(world)
	assert.InDelta(t, 10, local.X, 1e-9)
	assert.InDelta(t, 0, local.Y, 1e-9)
}

func TestBox(t *testing.T) {
	b := BoxOf(V(3, 4), V(-1, 2), V(0, 9))
	assert.Equal(t, V(-1, 2), b.Min)
	assert.Equal(t, V(3, 9), b.Max)

	assert.True(t, b.Overlaps(CircleBox(V(5, 5), 2)), "touching edge")
	assert.False(t, b.Overlaps(CircleBox(V(6, 5), 2)))
	assert.True(t, b.Contains(V(0, 5)))

	u := b.Union(Box{Min: V(10, 10), Max: V(11, 11)})
	assert.Equal(t, V(11, 11), u.Max)
	assert.Equal(t, Box{}, BoxOf())
}
