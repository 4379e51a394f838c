package schemas

import (
	"fmt"
	"image"
)

// Point is a screen coordinate in physical pixels.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p Point) String() string { return fmt.Sprintf("(%d,%d)", p.X, p.Y) }

// Rect is a screen region expressed as an origin and a size. It is the
// ScreenRegion of the data model: every capture, template hit and text row
// carries one in absolute screen coordinates.
type Rect struct {
	X int `json:"x" mapstructure:"x" validate:"gte=0"`
	Y int `json:"y" mapstructure:"y" validate:"gte=0"`
	W int `json:"w" mapstructure:"w" validate:"gt=0"`
	H int `json:"h" mapstructure:"h" validate:"gt=0"`
}

// RectFromImage converts an image.Rectangle into a Rect.
func RectFromImage(r image.Rectangle) Rect {
	return Rect{X: r.Min.X, Y: r.Min.Y, W: r.Dx(), H: r.Dy()}
}

// Image returns the equivalent image.Rectangle (Max exclusive).
func (r Rect) Image() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H)
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool { return r.W <= 0 || r.H <= 0 }

// Bottom is the first row below the rectangle.
func (r Rect) Bottom() int { return r.Y + r.H }

// Right is the first column right of the rectangle.
func (r Rect) Right() int { return r.X + r.W }

// Center returns the integer centre of the rectangle. For any non-empty
// rectangle the centre is contained in it.
func (r Rect) Center() Point {
	return Point{X: r.X + r.W/2, Y: r.Y + r.H/2}
}

// Contains reports whether p lies inside r (half-open on the right and bottom).
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X < r.Right() && p.Y >= r.Y && p.Y < r.Bottom()
}

// Intersect returns the overlapping area of r and o; the result is empty when
// they do not overlap.
func (r Rect) Intersect(o Rect) Rect {
	return RectFromImage(r.Image().Intersect(o.Image()))
}

// Overlaps reports whether r and o share at least one pixel.
func (r Rect) Overlaps(o Rect) bool { return !r.Intersect(o).Empty() }

// InsetY grows (positive d) or shrinks (negative d) the rectangle vertically.
func (r Rect) InsetY(d int) Rect {
	return Rect{X: r.X, Y: r.Y - d, W: r.W, H: r.H + 2*d}
}

func (r Rect) String() string {
	return fmt.Sprintf("[%d,%d %dx%d]", r.X, r.Y, r.W, r.H)
}
