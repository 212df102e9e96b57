package collision

import (
	"math"

	"github.com/paulrobello/par-shape-2d/internal/core/geometry"
)

// Kind tags the concrete geometry of a shape.
type Kind uint8

const (
	KindCircle Kind = iota
	KindRectangle
	KindPolygon
	KindCapsule
	KindVertexList
	KindComposite
)

func (k Kind) String() string {
	switch k {
	case KindCircle:
		return "circle"
	case KindRectangle:
		return "rectangle"
	case KindPolygon:
		return "polygon"
	case KindCapsule:
		return "capsule"
	case KindVertexList:
		return "vertices"
	case KindComposite:
		return "composite"
	default:
		return "unknown"
	}
}

// polygonOffset puts the first vertex of a regular polygon at twelve o'clock.
const polygonOffset = -math.Pi / 2

// Geometry is the closed set of shape outlines the engine understands.
// Implementations live in this package only.
type Geometry interface {
	Kind() Kind
	// Bounds is the world-space axis-aligned box under the transform.
	Bounds(t geometry.Transform) geometry.Box
	// Intersects tests a world-space circle against the outline placed by t.
	Intersects(t geometry.Transform, center geometry.Vec, radius float64) bool
	// LocalVertices is the outline in the shape's local frame. Circles and capsules
	// return nil since they have no finite vertex list.
	LocalVertices() []geometry.Vec

	sealed()
}

type Circle struct {
	Radius float64
}

func (Circle) Kind() Kind                    { return KindCircle }
func (Circle) LocalVertices() []geometry.Vec { return nil }
func (Circle) sealed()                       {}

func (c Circle) Bounds(t geometry.Transform) geometry.Box {
	return geometry.CircleBox(t.Position, c.Radius)
}

func (c Circle) Intersects(t geometry.Transform, center geometry.Vec, radius float64) bool {
	return geometry.Distance(center, t.Position) <= c.Radius+radius
}

type Rectangle struct {
	Width  float64
	Height float64
}

func (Rectangle) Kind() Kind { return KindRectangle }
func (Rectangle) sealed()    {}

func (r Rectangle) LocalVertices() []geometry.Vec {
	hw, hh := r.Width/2, r.Height/2
	return []geometry.Vec{
		geometry.V(-hw, -hh),
		geometry.V(hw, -hh),
		geometry.V(hw, hh),
		geometry.V(-hw, hh),
	}
}

func (r Rectangle) Bounds(t geometry.Transform) geometry.Box {
	return geometry.BoxOf(t.ToWorldAll(r.LocalVertices())...)
}

// Intersects moves the circle into the rectangle's unrotated frame and measures the
// distance to the closest point of the box.
func (r Rectangle) Intersects(t geometry.Transform, center geometry.Vec, radius float64) bool {
	return circleHitsLocalRect(t.ToLocal(center), radius, r.Width/2, r.Height/2, 0)
}

// circleHitsLocalRect tests a local-frame circle against a box centred at (cx, 0).
func circleHitsLocalRect(local geometry.Vec, radius, hw, hh, cx float64) bool {
	closestX := math.Max(cx-hw, math.Min(local.X, cx+hw))
	closestY := math.Max(-hh, math.Min(local.Y, hh))
	dx := local.X - closestX
	dy := local.Y - closestY
	return dx*dx+dy*dy <= radius*radius
}

// Polygon is a regular polygon of the given circumradius.
type Polygon struct {
	Radius float64
	Sides  int
}

func (Polygon) Kind() Kind { return KindPolygon }
func (Polygon) sealed()    {}

func (p Polygon) LocalVertices() []geometry.Vec {
	return geometry.RegularPolygon(p.Radius, p.Sides, polygonOffset)
}

func (p Polygon) Bounds(t geometry.Transform) geometry.Box {
	verts := p.LocalVertices()
	if verts == nil {
		return geometry.CircleBox(t.Position, p.Radius)
	}
	return geometry.BoxOf(t.ToWorldAll(verts)...)
}

func (p Polygon) Intersects(t geometry.Transform, center geometry.Vec, radius float64) bool {
	verts := p.LocalVertices()
	if verts == nil {
		return Circle{Radius: p.Radius}.Intersects(t, center, radius)
	}
	return geometry.CircleIntersectsPolygon(t.ToLocal(center), radius, verts)
}

// Capsule is a stadium: a central rectangle of Width-Height by Height capped by two
// half circles of radius Height/2.
type Capsule struct {
	Width  float64
	Height float64
}

func (Capsule) Kind() Kind                    { return KindCapsule }
func (Capsule) LocalVertices() []geometry.Vec { return nil }
func (Capsule) sealed()                       {}

func (c Capsule) endRadius() float64 { return c.Height / 2 }

func (c Capsule) Bounds(t geometry.Transform) geometry.Box {
	return Rectangle{Width: c.Width, Height: c.Height}.Bounds(t)
}

func (c Capsule) Intersects(t geometry.Transform, center geometry.Vec, radius float64) bool {
	local := t.ToLocal(center)
	er := c.endRadius()
	bodyHalf := math.Max(0, c.Width-2*er) / 2
	if circleHitsLocalRect(local, radius, bodyHalf, er, 0) {
		return true
	}
	left := geometry.V(-bodyHalf, 0)
	right := geometry.V(bodyHalf, 0)
	return geometry.Distance(local, left) <= er+radius || geometry.Distance(local, right) <= er+radius
}

// VertexList is an arbitrary simple polygon given in the shape's local frame.
type VertexList struct {
	Vertices []geometry.Vec
}

func (VertexList) Kind() Kind { return KindVertexList }
func (VertexList) sealed()    {}

func (v VertexList) LocalVertices() []geometry.Vec { return v.Vertices }

func (v VertexList) Bounds(t geometry.Transform) geometry.Box {
	return geometry.BoxOf(t.ToWorldAll(v.Vertices)...)
}

func (v VertexList) Intersects(t geometry.Transform, center geometry.Vec, radius float64) bool {
	return geometry.CircleIntersectsPolygon(center, radius, t.ToWorldAll(v.Vertices))
}

// Composite is a concave outline decomposed into parts, each a local-frame polygon.
type Composite struct {
	Parts [][]geometry.Vec
}

func (Composite) Kind() Kind { return KindComposite }
func (Composite) sealed()    {}

func (c Composite) LocalVertices() []geometry.Vec {
	var out []geometry.Vec
	for _, part := range c.Parts {
		out = append(out, part...)
	}
	return out
}

func (c Composite) Bounds(t geometry.Transform) geometry.Box {
	return geometry.BoxOf(t.ToWorldAll(c.LocalVertices())...)
}

func (c Composite) Intersects(t geometry.Transform, center geometry.Vec, radius float64) bool {
	for _, part := range c.Parts {
		if (VertexList{Vertices: part}).Intersects(t, center, radius) {
			return true
		}
	}
	return false
}
