package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// ErrInvalidTile is returned when a tile's corners are out of order
var ErrInvalidTile = errors.New("invalid tile")

// Tile is an axis-aligned query rectangle in projected pixel space
type Tile struct {
	TopLeft     Point
	BottomRight Point
}

// NewTile creates a tile, rejecting corners that are not ordered on both axes
func NewTile(topLeft, bottomRight Point) (Tile, error) {
	if topLeft.X > bottomRight.X || topLeft.Y > bottomRight.Y {
		return Tile{}, fmt.Errorf("%w: top-left (%f, %f) is past bottom-right (%f, %f)",
			ErrInvalidTile, topLeft.X, topLeft.Y, bottomRight.X, bottomRight.Y)
	}
	return Tile{TopLeft: topLeft, BottomRight: bottomRight}, nil
}

// TopRight returns the north-east corner
func (t Tile) TopRight() Point {
	return Point{X: t.BottomRight.X, Y: t.TopLeft.Y}
}

// BottomLeft returns the south-west corner
func (t Tile) BottomLeft() Point {
	return Point{X: t.TopLeft.X, Y: t.BottomRight.Y}
}

// Width returns the tile extent along X
func (t Tile) Width() float64 {
	return math.Abs(t.BottomRight.X - t.TopLeft.X)
}

// Height returns the tile extent along Y
func (t Tile) Height() float64 {
	return math.Abs(t.BottomRight.Y - t.TopLeft.Y)
}

// Bound returns the tile as an orb bound
func (t Tile) Bound() orb.Bound {
	return orb.Bound{Min: t.TopLeft.Orb(), Max: t.BottomRight.Orb()}
}

// Border returns the closed boundary ring TL -> TR -> BR -> BL -> TL
func (t Tile) Border() orb.LineString {
	return orb.LineString{
		t.TopLeft.Orb(),
		t.TopRight().Orb(),
		t.BottomRight.Orb(),
		t.BottomLeft().Orb(),
		t.TopLeft.Orb(),
	}
}

// ContainsStrict reports whether p lies in the open interior of the tile.
// Points on an edge are not contained.
func (t Tile) ContainsStrict(p Point) bool {
	return p.X > t.TopLeft.X && p.X < t.BottomRight.X &&
		p.Y > t.TopLeft.Y && p.Y < t.BottomRight.Y
}

// String returns a human-readable description of the tile
func (t Tile) String() string {
	return fmt.Sprintf("[(%.2f, %.2f) - (%.2f, %.2f)]", t.TopLeft.X, t.TopLeft.Y, t.BottomRight.X, t.BottomRight.Y)
}

// Bounds accumulates the extent of a set of points
type Bounds struct {
	Min   Point
	Max   Point
	IsSet bool
}

// Extend grows the bounds to include p
func (b *Bounds) Extend(p Point) {
	if !b.IsSet {
		b.Min, b.Max, b.IsSet = p, p, true
		return
	}
	if p.X < b.Min.X {
		b.Min.X = p.X
	}
	if p.X > b.Max.X {
		b.Max.X = p.X
	}
	if p.Y < b.Min.Y {
		b.Min.Y = p.Y
	}
	if p.Y > b.Max.Y {
		b.Max.Y = p.Y
	}
}

// Empty reports whether no point has been added
func (b Bounds) Empty() bool {
	return !b.IsSet
}

// Size returns the extent as a point (width, height)
func (b Bounds) Size() Point {
	return b.Max.Sub(b.Min)
}
