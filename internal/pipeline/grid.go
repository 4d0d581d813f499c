package pipeline

import (
	"fmt"
	"math"

	"github.com/wegman-software/osm2voxel-go/internal/anvil"
	"github.com/wegman-software/osm2voxel-go/internal/geo"
)

// Grid is the partition of the data extent into square region tiles
type Grid struct {
	Origin geo.Point
	CountX int
	CountY int
	// Size is the edge length of each region tile in pixels
	Size int
}

// Partition covers bounds with tiles of size pixels anchored at bounds.Min.
// Non-empty bounds always yield at least one tile per axis.
func Partition(bounds geo.Bounds, size int) (Grid, error) {
	if size <= 0 {
		return Grid{}, fmt.Errorf("region size must be positive, got %d", size)
	}
	g := Grid{Size: size}
	if bounds.Empty() {
		return g, nil
	}

	extent := bounds.Size()
	g.Origin = bounds.Min
	g.CountX = max(int(math.Ceil(extent.X/float64(size))), 1)
	g.CountY = max(int(math.Ceil(extent.Y/float64(size))), 1)
	return g, nil
}

// Regions returns the number of region tiles
func (g Grid) Regions() int {
	return g.CountX * g.CountY
}

// TotalChunks returns the number of chunks a full run encodes
func (g Grid) TotalChunks() int64 {
	return int64(g.Regions()) * anvil.ChunksPerRegion
}

// Tile returns the pixel rectangle of region (rx, ry)
func (g Grid) Tile(rx, ry int) geo.Tile {
	size := float64(g.Size)
	tl := g.Origin.Add(geo.Point{X: float64(rx) * size, Y: float64(ry) * size})
	return geo.Tile{TopLeft: tl, BottomRight: tl.Add(geo.Point{X: size, Y: size})}
}

// String describes the grid for logs
func (g Grid) String() string {
	return fmt.Sprintf("%dx%d regions of %dpx at (%.1f, %.1f)", g.CountX, g.CountY, g.Size, g.Origin.X, g.Origin.Y)
}
