package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Transform places a local frame in the world: rotate by Angle (radians) then translate.
type Transform struct {
	Position Vec
	Angle    float64
}

// ToWorld maps a local point into world space.
func (t Transform) ToWorld(local Vec) Vec {
	if t.Angle == 0 {
		return r2.Add(local, t.Position)
	}
	return r2.Add(r2.Rotate(local, t.Angle, Vec{}), t.Position)
}

// ToLocal maps a world point into the unrotated local frame.
func (t Transform) ToLocal(world Vec) Vec {
	rel := r2.Sub(world, t.Position)
	if t.Angle == 0 {
		return rel
	}
	return r2.Rotate(rel, -t.Angle, Vec{})
}

// ToWorldAll maps every local point into world space.
func (t Transform) ToWorldAll(local []Vec) []Vec {
	out := make([]Vec, len(local))
	for i, p := range local {
		out[i] = t.ToWorld(p)
	}
	return out
}

// Box is an axis-aligned bounding box.
type Box struct {
	Min Vec
	Max Vec
}

// BoxOf returns the smallest box containing every point. An empty input gives an empty box.
func BoxOf(points ...Vec) Box {
	if len(points) == 0 {
		return Box{}
	}
	b := Box{Min: points[0], Max: points[0]}
	for _, p := range points[1:] {
		b.Min.X = math.Min(b.Min.X, p.X)
		b.Min.Y = math.Min(b.Min.Y, p.Y)
		b.Max.X = math.Max(b.Max.X, p.X)
		b.Max.Y = math.Max(b.Max.Y, p.Y)
	}
	return b
}

// CircleBox returns the bounding box of a circle.
func CircleBox(center Vec, radius float64) Box {
	return Box{
		Min: Vec{X: center.X - radius, Y: center.Y - radius},
		Max: Vec{X: center.X + radius, Y: center.Y + radius},
	}
}

// Overlaps reports whether two boxes share any point, touching edges included.
func (b Box) Overlaps(o Box) bool {
	return b.Min.X <= o.Max.X && o.Min.X <= b.Max.X &&
		b.Min.Y <= o.Max.Y && o.Min.Y <= b.Max.Y
}

// Union returns the box covering both inputs.
func (b Box) Union(o Box) Box {
	return BoxOf(b.Min, b.Max, o.Min, o.Max)
}

// Contains reports whether p is inside the box or on its boundary.
func (b Box) Contains(p Vec) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X && p.Y >= b.Min.Y && p.Y <= b.Max.Y
}
