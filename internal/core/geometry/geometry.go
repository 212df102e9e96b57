// Package geometry is the pure-math kernel under collision detection:
// point-in-polygon, point-to-segment distance, circle/segment tests,
// rigid transforms and axis-aligned boxes. Vectors are gonum's r2.Vec.
package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Vec is a 2D point or vector in world or local space.
type Vec = r2.Vec

// V is shorthand for constructing a Vec.
func V(x, y float64) Vec { return Vec{X: x, Y: y} }

// Distance returns the Euclidean distance between two points.
func Distance(a, b Vec) float64 { return r2.Norm(r2.Sub(a, b)) }

// PointInPolygon reports whether p lies inside the polygon using the even-odd ray casting
// rule. An edge counts as crossed only when the ray's y strictly separates its endpoints,
// so horizontal edges and shared vertices are never double counted.
func PointInPolygon(p Vec, vertices []Vec) bool {
	n := len(vertices)
	if n < 3 {
		return false
	}
	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		vi, vj := vertices[i], vertices[j]
		if (vi.Y > p.Y) != (vj.Y > p.Y) {
			crossX := (vj.X-vi.X)*(p.Y-vi.Y)/(vj.Y-vi.Y) + vi.X
			if p.X < crossX {
				inside = !inside
			}
		}
	}
	return inside
}

// DistancePointToSegment returns the distance from p to the closest point of segment ab.
func DistancePointToSegment(p, a, b Vec) float64 {
	ab := r2.Sub(b, a)
	lenSq := r2.Norm2(ab)
	if lenSq == 0 {
		return Distance(p, a)
	}
	t := r2.Dot(r2.Sub(p, a), ab) / lenSq
	t = math.Max(0, math.Min(1, t))
	closest := r2.Add(a, r2.Scale(t, ab))
	return Distance(p, closest)
}

// CircleIntersectsSegment reports whether the circle touches segment ab.
func CircleIntersectsSegment(center Vec, radius float64, a, b Vec) bool {
	return DistancePointToSegment(center, a, b) <= radius
}

// CircleIntersectsPolygon reports whether a circle overlaps a polygon: the centre is inside,
// or any edge passes within radius of the centre.
func CircleIntersectsPolygon(center Vec, radius float64, vertices []Vec) bool {
	if len(vertices) == 0 {
		return false
	}
	if PointInPolygon(center, vertices) {
		return true
	}
	n := len(vertices)
	for i := 0; i < n; i++ {
		if CircleIntersectsSegment(center, radius, vertices[i], vertices[(i+1)%n]) {
			return true
		}
	}
	return false
}

// RegularPolygon returns the vertices of a regular polygon centred on the origin.
// offset rotates the first vertex; -π/2 puts it straight up in screen space.
func RegularPolygon(radius float64, sides int, offset float64) []Vec {
	if sides < 3 {
		return nil
	}
	out := make([]Vec, sides)
	step := 2 * math.Pi / float64(sides)
	for i := range out {
		angle := offset + float64(i)*step
		out[i] = Vec{X: radius * math.Cos(angle), Y: radius * math.Sin(angle)}
	}
	return out
}
