package humanoid

import (
	"math"

	"github.com/xkilldash9x/unfollowed/api/schemas"
)

// Vector2D is a point or displacement in screen space with sub-pixel precision.
type Vector2D struct {
	X, Y float64
}

func vec(p schemas.Point) Vector2D { return Vector2D{X: float64(p.X), Y: float64(p.Y)} }

func (v Vector2D) Add(o Vector2D) Vector2D { return Vector2D{v.X + o.X, v.Y + o.Y} }
func (v Vector2D) Sub(o Vector2D) Vector2D { return Vector2D{v.X - o.X, v.Y - o.Y} }
func (v Vector2D) Mul(s float64) Vector2D { return Vector2D{v.X * s, v.Y * s} }
func (v Vector2D) Mag() float64 { return math.Hypot(v.X, v.Y) }
func (v Vector2D) Dist(o Vector2D) float64 { return v.Sub(o).Mag() }
func (v Vector2D) Perp() Vector2D { return Vector2D{-v.Y, v.X} }
func (v Vector2D) Lerp(o Vector2D, t float64) Vector2D { return v.Add(o.Sub(v).Mul(t)) }

// Normalize returns the unit vector, or the zero vector for a zero input.
func (v Vector2D) Normalize() Vector2D {
	m := v.Mag()
	if m == 0 {
		return Vector2D{}
	}
	return v.Mul(1 / m)
}

// Point rounds to the nearest pixel.
func (v Vector2D) Point() schemas.Point {
	return schemas.Point{X: int(math.Round(v.X)), Y: int(math.Round(v.Y))}
}
