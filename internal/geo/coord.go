package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// TileSize is the pixel width of one slippy-map tile
const TileSize = 256

// MaxZoom is the deepest zoom level maptile can address
const MaxZoom = 32

// Coordinate is a WGS84 latitude/longitude pair
type Coordinate struct {
	Lat float64
	Lon float64
}

// NewCoordinate creates a coordinate
func NewCoordinate(lat, lon float64) Coordinate {
	return Coordinate{Lat: lat, Lon: lon}
}

func (c Coordinate) Add(o Coordinate) Coordinate { return Coordinate{c.Lat + o.Lat, c.Lon + o.Lon} }
func (c Coordinate) Sub(o Coordinate) Coordinate { return Coordinate{c.Lat - o.Lat, c.Lon - o.Lon} }
func (c Coordinate) Mul(o Coordinate) Coordinate { return Coordinate{c.Lat * o.Lat, c.Lon * o.Lon} }
func (c Coordinate) Div(o Coordinate) Coordinate { return Coordinate{c.Lat / o.Lat, c.Lon / o.Lon} }

// IsFinite reports whether both components are finite numbers
func (c Coordinate) IsFinite() bool {
	return !math.IsNaN(c.Lat) && !math.IsInf(c.Lat, 0) && !math.IsNaN(c.Lon) && !math.IsInf(c.Lon, 0)
}

// Orb returns the coordinate as an orb point (lon, lat order)
func (c Coordinate) Orb() orb.Point {
	return orb.Point{c.Lon, c.Lat}
}

// Point is a planar pixel position at a fixed zoom level.
// X grows east, Y grows south.
type Point struct {
	X float64
	Y float64
}

func (p Point) Add(o Point) Point { return Point{p.X + o.X, p.Y + o.Y} }
func (p Point) Sub(o Point) Point { return Point{p.X - o.X, p.Y - o.Y} }
func (p Point) Mul(o Point) Point { return Point{p.X * o.X, p.Y * o.Y} }
func (p Point) Div(o Point) Point { return Point{p.X / o.X, p.Y / o.Y} }

// Scale multiplies both components by f
func (p Point) Scale(f float64) Point { return Point{p.X * f, p.Y * f} }

// Orb returns the point as an orb point
func (p Point) Orb() orb.Point {
	return orb.Point{p.X, p.Y}
}

// Project converts a coordinate to global pixel coordinates at the given zoom.
// This is the Web Mercator scheme used by OSM/Google tiles: the world is
// 256*2^zoom pixels wide and latitudes beyond ~85.0511 clamp to the edge.
func Project(c Coordinate, zoom int) Point {
	f := maptile.Fraction(c.Orb(), maptile.Zoom(zoom))
	return Point{X: f[0] * TileSize, Y: f[1] * TileSize}
}

// WorldSize returns the width in pixels of the whole map at zoom
func WorldSize(zoom int) float64 {
	return TileSize * math.Exp2(float64(zoom))
}
