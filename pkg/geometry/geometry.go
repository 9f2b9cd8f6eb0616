// Package geometry provides the basic geometric value types used throughout
// the recognition pipeline.
package geometry

import "math"

// Point2D represents a 2D point with floating-point coordinates.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Distance returns the Euclidean distance to another point.
func (p Point2D) Distance(other Point2D) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// PointInt represents a 2D point with integer coordinates.
type PointInt struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// ToFloat converts to Point2D.
func (p PointInt) ToFloat() Point2D {
	return Point2D{X: float64(p.X), Y: float64(p.Y)}
}

// RectInt is an axis-aligned rectangle with integer coordinates.
// X0,Y0 is the top-left corner; X1,Y1 is exclusive.
type RectInt struct {
	X0 int `json:"x0"`
	Y0 int `json:"y0"`
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
}

// NewRectInt creates a rectangle from a corner and a size.
func NewRectInt(x, y, w, h int) RectInt {
	return RectInt{X0: x, Y0: y, X1: x + w, Y1: y + h}
}

// Width returns the rectangle width.
func (r RectInt) Width() int { return r.X1 - r.X0 }

// Height returns the rectangle height.
func (r RectInt) Height() int { return r.Y1 - r.Y0 }

// Area returns the rectangle area.
func (r RectInt) Area() int { return r.Width() * r.Height() }

// Empty reports whether the rectangle has no interior.
func (r RectInt) Empty() bool { return r.X1 <= r.X0 || r.Y1 <= r.Y0 }

// CenterX returns the horizontal centre.
func (r RectInt) CenterX() float64 { return float64(r.X0+r.X1) / 2 }

// CenterY returns the vertical centre.
func (r RectInt) CenterY() float64 { return float64(r.Y0+r.Y1) / 2 }

// Center returns the centre point.
func (r RectInt) Center() Point2D {
	return Point2D{X: r.CenterX(), Y: r.CenterY()}
}

// Contains reports whether the point lies inside the rectangle.
func (r RectInt) Contains(x, y int) bool {
	return x >= r.X0 && x < r.X1 && y >= r.Y0 && y < r.Y1
}

// Intersects reports whether two rectangles overlap.
func (r RectInt) Intersects(other RectInt) bool {
	return r.X0 < other.X1 && r.X1 > other.X0 &&
		r.Y0 < other.Y1 && r.Y1 > other.Y0
}

// Union returns the smallest rectangle containing both rectangles.
func (r RectInt) Union(other RectInt) RectInt {
	if r.Empty() {
		return other
	}
	if other.Empty() {
		return r
	}
	return RectInt{
		X0: min(r.X0, other.X0),
		Y0: min(r.Y0, other.Y0),
		X1: max(r.X1, other.X1),
		Y1: max(r.Y1, other.Y1),
	}
}

// Clamp restricts the rectangle to the bounds 0..w, 0..h.
func (r RectInt) Clamp(w, h int) RectInt {
	return RectInt{
		X0: max(0, r.X0),
		Y0: max(0, r.Y0),
		X1: min(w, r.X1),
		Y1: min(h, r.Y1),
	}
}

// Expand grows the rectangle by d on every side.
func (r RectInt) Expand(d int) RectInt {
	return RectInt{X0: r.X0 - d, Y0: r.Y0 - d, X1: r.X1 + d, Y1: r.Y1 + d}
}

// BoundingBox computes the axis-aligned bounding box of a set of points.
// The resulting rectangle includes every point with exclusive X1,Y1.
func BoundingBox(points []PointInt) RectInt {
	if len(points) == 0 {
		return RectInt{}
	}
	r := RectInt{X0: points[0].X, Y0: points[0].Y, X1: points[0].X + 1, Y1: points[0].Y + 1}
	for _, p := range points[1:] {
		if p.X < r.X0 {
			r.X0 = p.X
		}
		if p.X+1 > r.X1 {
			r.X1 = p.X + 1
		}
		if p.Y < r.Y0 {
			r.Y0 = p.Y
		}
		if p.Y+1 > r.Y1 {
			r.Y1 = p.Y + 1
		}
	}
	return r
}
