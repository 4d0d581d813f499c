package render

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/wegman-software/osm2voxel-go/internal/geo"
	"github.com/wegman-software/osm2voxel-go/internal/quantize"
	"github.com/wegman-software/osm2voxel-go/internal/raster"
	"github.com/wegman-software/osm2voxel-go/internal/store"
	"github.com/wegman-software/osm2voxel-go/internal/style"
)

const zoom = 17

var (
	black = raster.Color{R: 0, G: 0, B: 0}
	red   = raster.Color{R: 255, G: 0, B: 0}
	green = raster.Color{R: 0, G: 255, B: 0}
	white = raster.Color{R: 255, G: 255, B: 255}
)

// fixture is a building (way 1) of roughly 19x30 px and a road (way 2)
// running east-west 7 px south of it, near central London
func fixture(t *testing.T) *store.Store {
	t.Helper()
	b := store.NewBuilder(zoom)
	nodes := []struct {
		id       int64
		lat, lon float64
	}{
		{1, 51.5010, -0.1200},
		{2, 51.5010, -0.1198},
		{3, 51.5008, -0.1198},
		{4, 51.5008, -0.1200},
		{5, 51.50075, -0.1202},
		{6, 51.50075, -0.1196},
	}
	for _, n := range nodes {
		if err := b.AddNode(n.id, geo.NewCoordinate(n.lat, n.lon)); err != nil {
			t.Fatalf("AddNode(%d) error = %v", n.id, err)
		}
	}
	if err := b.AddWay(1, []int64{1, 2, 3, 4, 1}, "building"); err != nil {
		t.Fatalf("AddWay() error = %v", err)
	}
	if err := b.AddWay(2, []int64{5, 6}, "highway"); err != nil {
		t.Fatalf("AddWay() error = %v", err)
	}
	s, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return s
}

// tileAround returns a 64x64 px tile whose top-left lies 20.25 px up-left of
// the building's north-west corner, keeping edges off pixel boundaries
func tileAround(t *testing.T, s *store.Store) geo.Tile {
	t.Helper()
	n, _ := s.Node(1)
	tl := n.Point.Sub(geo.Point{X: 20.25, Y: 20.25})
	tile, err := geo.NewTile(tl, tl.Add(geo.Point{X: 64, Y: 64}))
	if err != nil {
		t.Fatalf("NewTile() error = %v", err)
	}
	return tile
}

func pixelOf(s *store.Store, tile geo.Tile, id int64) (int, int) {
	n, _ := s.Node(id)
	p := n.Point.Sub(tile.TopLeft)
	return int(p.X), int(p.Y)
}

func TestRendererBuildingAndRoad(t *testing.T) {
	s := fixture(t)
	tile := tileAround(t, s)

	r, err := NewRenderer(raster.NewVectorEngine(), style.DefaultConfig(), DefaultLineWidth)
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}
	canvas, stats, err := r.Render(s, tile, 64)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if stats.Areas != 1 || stats.Lines != 1 {
		t.Errorf("stats = %+v, want 1 area and 1 line", stats)
	}

	x1, y1 := pixelOf(s, tile, 1)
	x3, y3 := pixelOf(s, tile, 3)
	x5, y5 := pixelOf(s, tile, 5)
	x6, _ := pixelOf(s, tile, 6)

	tests := []struct {
		name string
		x, y int
		want raster.Color
	}{
		{"building interior", (x1 + x3) / 2, (y1 + y3) / 2, red},
		{"north outline", (x1 + x3) / 2, y1, green},
		{"west outline", x1, (y1 + y3) / 2, green},
		{"road", (x5 + x6) / 2, y5, white},
		{"background", 2, 2, black},
		{"background below road", (x5 + x6) / 2, 62, black},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := canvas.At(tt.x, tt.y); got != tt.want {
				t.Errorf("At(%d,%d) = %v, want %v", tt.x, tt.y, got, tt.want)
			}
		})
	}
}

func TestRendererEmptyTile(t *testing.T) {
	s := fixture(t)
	tile := tileAround(t, s)
	far, err := geo.NewTile(tile.TopLeft.Add(geo.Point{X: 1000, Y: 1000}), tile.BottomRight.Add(geo.Point{X: 1000, Y: 1000}))
	if err != nil {
		t.Fatalf("NewTile() error = %v", err)
	}

	r, err := NewRenderer(raster.NewVectorEngine(), style.DefaultConfig(), DefaultLineWidth)
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}
	canvas, stats, err := r.Render(s, far, 32)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if stats.Areas != 0 || stats.Lines != 0 {
		t.Errorf("stats = %+v, want none", stats)
	}
	for y := 0; y < canvas.Height; y++ {
		for x := 0; x < canvas.Width; x++ {
			if got := canvas.At(x, y); got != black {
				t.Fatalf("At(%d,%d) = %v, want background", x, y, got)
			}
		}
	}
}

func TestRendererScalesToCanvas(t *testing.T) {
	s := fixture(t)
	tile := tileAround(t, s)

	r, err := NewRenderer(raster.NewVectorEngine(), style.DefaultConfig(), DefaultLineWidth)
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}
	canvas, _, err := r.Render(s, tile, 128)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if canvas.Width != 128 || canvas.Height != 128 {
		t.Fatalf("canvas = %dx%d, want 128x128", canvas.Width, canvas.Height)
	}
	x1, y1 := pixelOf(s, tile, 1)
	x3, y3 := pixelOf(s, tile, 3)
	if got := canvas.At(x1+x3, y1+y3); got != red {
		t.Errorf("scaled interior = %v, want red", got)
	}
}

type failingEngine struct{ err error }

func (f failingEngine) Render(raster.Scene) (*raster.Canvas, error) {
	return nil, f.err
}

func TestRendererWrapsEngineErrors(t *testing.T) {
	s := fixture(t)
	cause := errors.New("boom")
	r, err := NewRenderer(failingEngine{err: cause}, style.DefaultConfig(), DefaultLineWidth)
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}
	_, _, err = r.Render(s, tileAround(t, s), 64)
	if !errors.Is(err, ErrRenderFailed) {
		t.Errorf("error = %v, want ErrRenderFailed", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("error = %v, want wrapped cause", err)
	}
}

func TestNewRendererErrors(t *testing.T) {
	if _, err := NewRenderer(raster.NewVectorEngine(), style.DefaultConfig(), 0); err == nil {
		t.Error("NewRenderer() with zero line width should fail")
	}
	st := style.DefaultConfig()
	st.Background = "nope"
	if _, err := NewRenderer(raster.NewVectorEngine(), st, 3); err == nil {
		t.Error("NewRenderer() with bad color should fail")
	}
}

// blockFixture is a single axis-aligned building of roughly 140x150 px
func blockFixture(t *testing.T) *store.Store {
	t.Helper()
	b := store.NewBuilder(zoom)
	corners := []geo.Coordinate{
		geo.NewCoordinate(51.5010, -0.1210),
		geo.NewCoordinate(51.5010, -0.1195),
		geo.NewCoordinate(51.5000, -0.1195),
		geo.NewCoordinate(51.5000, -0.1210),
	}
	for i, c := range corners {
		if err := b.AddNode(int64(i+1), c); err != nil {
			t.Fatalf("AddNode() error = %v", err)
		}
	}
	if err := b.AddWay(1, []int64{1, 2, 3, 4, 1}, "building"); err != nil {
		t.Fatalf("AddWay() error = %v", err)
	}
	s, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return s
}

func TestRenderQuantizedRegionGrid(t *testing.T) {
	const size = 256
	s := blockFixture(t)
	table, err := quantize.NewTable(style.DefaultConfig())
	if err != nil {
		t.Fatalf("NewTable() error = %v", err)
	}

	for _, off := range []float64{0, 0.25, 0.5, 0.75} {
		t.Run(fmt.Sprintf("offset %.2f", off), func(t *testing.T) {
			nw, _ := s.Node(1)
			se, _ := s.Node(3)
			tl := nw.Point.Sub(geo.Point{X: 50 + off, Y: 50 + off})
			tile, err := geo.NewTile(tl, tl.Add(geo.Point{X: size, Y: size}))
			if err != nil {
				t.Fatalf("NewTile() error = %v", err)
			}

			r, err := NewRenderer(raster.NewVectorEngine(), style.DefaultConfig(), DefaultLineWidth)
			if err != nil {
				t.Fatalf("NewRenderer() error = %v", err)
			}
			canvas, _, err := r.Render(s, tile, size)
			if err != nil {
				t.Fatalf("Render() error = %v", err)
			}
			grid := table.QuantizeCanvas(canvas)
			if len(grid) != size*size {
				t.Fatalf("grid has %d cells, want %d", len(grid), size*size)
			}

			left, top := nw.Point.X-tl.X, nw.Point.Y-tl.Y
			right, bottom := se.Point.X-tl.X, se.Point.Y-tl.Y
			// distance from a pixel center to the rectangle outline, negative inside
			edgeDist := func(x, y int) float64 {
				cx, cy := float64(x)+0.5, float64(y)+0.5
				dx := math.Max(left-cx, cx-right)
				dy := math.Max(top-cy, cy-bottom)
				if dx <= 0 && dy <= 0 {
					return math.Max(dx, dy)
				}
				return math.Hypot(math.Max(dx, 0), math.Max(dy, 0))
			}

			var counts [quantize.NumClasses]int
			for y := 0; y < size; y++ {
				for x := 0; x < size; x++ {
					class := grid[y*size+x]
					counts[class]++
					d := edgeDist(x, y)
					switch {
					case class == quantize.Fallback:
						t.Fatalf("pixel (%d,%d) quantized to fallback", x, y)
					case d > 1.5 && class != quantize.Background:
						t.Fatalf("pixel (%d,%d) outside the building = %d, want background", x, y, class)
					case d < -1.5 && class != quantize.Area:
						t.Fatalf("pixel (%d,%d) inside the building = %d, want area", x, y, class)
					case class == quantize.Line && math.Abs(d) > 1.5:
						t.Fatalf("outline pixel (%d,%d) is %.2f px from the edge", x, y, d)
					case class == quantize.Area && d > 0.5:
						t.Fatalf("area pixel (%d,%d) lies outside the building", x, y)
					}
				}
			}
			if counts[quantize.Area] == 0 || counts[quantize.Line] == 0 {
				t.Fatalf("class counts = %v, want area and outline pixels", counts)
			}

			// every scanline through the building reads background, outline,
			// area, outline, background with no gaps
			checkRun := func(name string, at func(i int) uint8) {
				first, last := -1, -1
				for i := 0; i < size; i++ {
					if at(i) != quantize.Background {
						if first < 0 {
							first = i
						}
						last = i
					}
				}
				if first < 0 {
					t.Fatalf("%s crosses no building pixels", name)
				}
				if at(first) != quantize.Line || at(last) != quantize.Line {
					t.Fatalf("%s ends are %d and %d, want outline", name, at(first), at(last))
				}
				for i := first; i <= last; i++ {
					if at(i) == quantize.Background {
						t.Fatalf("%s has a gap at %d", name, i)
					}
				}
			}
			for x := int(math.Ceil(left + 1.5)); float64(x)+0.5 < right-1.5; x++ {
				checkRun(fmt.Sprintf("column %d", x), func(y int) uint8 { return grid[y*size+x] })
			}
			for y := int(math.Ceil(top + 1.5)); float64(y)+0.5 < bottom-1.5; y++ {
				checkRun(fmt.Sprintf("row %d", y), func(x int) uint8 { return grid[y*size+x] })
			}
		})
	}
}
