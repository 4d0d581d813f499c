package render

import (
	"errors"
	"fmt"

	"github.com/wegman-software/osm2voxel-go/internal/geo"
	"github.com/wegman-software/osm2voxel-go/internal/raster"
	"github.com/wegman-software/osm2voxel-go/internal/store"
	"github.com/wegman-software/osm2voxel-go/internal/style"
)

// ErrRenderFailed wraps any rasterization failure of a tile
var ErrRenderFailed = errors.New("render failed")

// DefaultLineWidth is the stroke width of line classes without their own width
const DefaultLineWidth = 3.0

// RenderStats counts the paths handed to the engine
type RenderStats struct {
	Areas int
	Lines int
}

// Renderer draws the ways touching a tile into a square canvas
type Renderer struct {
	engine     raster.Engine
	lineWidth  float64
	background raster.Color
	areas      []areaStyle
	lines      []lineStyle
}

type areaStyle struct {
	typ          string
	fill         raster.Color
	outline      raster.Color
	outlineWidth float64
}

type lineStyle struct {
	typ    string
	stroke raster.Color
	width  float64
}

// NewRenderer creates a renderer drawing with engine in the given style
func NewRenderer(engine raster.Engine, st *style.Config, lineWidth float64) (*Renderer, error) {
	if lineWidth <= 0 {
		return nil, fmt.Errorf("line width must be positive, got %f", lineWidth)
	}
	r := &Renderer{engine: engine, lineWidth: lineWidth}

	var err error
	if r.background, err = raster.ParseColor(st.Background); err != nil {
		return nil, fmt.Errorf("background: %w", err)
	}
	for _, a := range st.Areas {
		as := areaStyle{typ: a.Type, outlineWidth: a.OutlineWidth}
		if as.fill, err = raster.ParseColor(a.Fill); err != nil {
			return nil, fmt.Errorf("area %s: %w", a.Type, err)
		}
		if as.outline, err = raster.ParseColor(a.Outline); err != nil {
			return nil, fmt.Errorf("area %s: %w", a.Type, err)
		}
		if as.outlineWidth <= 0 {
			as.outlineWidth = 1
		}
		r.areas = append(r.areas, as)
	}
	for _, l := range st.Lines {
		ls := lineStyle{typ: l.Type, width: l.Width}
		if ls.stroke, err = raster.ParseColor(l.Stroke); err != nil {
			return nil, fmt.Errorf("line %s: %w", l.Type, err)
		}
		if ls.width <= 0 {
			ls.width = lineWidth
		}
		r.lines = append(r.lines, ls)
	}
	return r, nil
}

// Render draws every area class and then every line class touching tile
// into a size×size canvas
func (r *Renderer) Render(s *store.Store, tile geo.Tile, size int) (*raster.Canvas, RenderStats, error) {
	var stats RenderStats
	if tile.Width() <= 0 {
		return nil, stats, fmt.Errorf("%w: tile %s has no width", ErrRenderFailed, tile)
	}
	scale := float64(size) / tile.Width()

	scene := raster.Scene{Width: size, Height: size, Background: r.background}
	for i := range r.areas {
		a := &r.areas[i]
		paths := r.paths(s, tile, scale, a.typ)
		stats.Areas += len(paths)
		scene.Layers = append(scene.Layers, raster.Layer{
			Paths:       paths,
			Fill:        &a.fill,
			Stroke:      &a.outline,
			StrokeWidth: a.outlineWidth,
		})
	}
	for i := range r.lines {
		l := &r.lines[i]
		paths := r.paths(s, tile, scale, l.typ)
		stats.Lines += len(paths)
		scene.Layers = append(scene.Layers, raster.Layer{
			Paths:       paths,
			Stroke:      &l.stroke,
			StrokeWidth: l.width,
		})
	}

	canvas, err := r.engine.Render(scene)
	if err != nil {
		return nil, stats, fmt.Errorf("%w: tile %s: %w", ErrRenderFailed, tile, err)
	}
	return canvas, stats, nil
}

// paths resolves the ways of typ touching tile into canvas pixel space
func (r *Renderer) paths(s *store.Store, tile geo.Tile, scale float64, typ string) [][]geo.Point {
	ids := s.WaysInTile(tile, typ)
	paths := make([][]geo.Point, 0, len(ids))
	for _, id := range ids {
		w, ok := s.Way(id)
		if !ok {
			continue
		}
		pts := s.Resolve(w)
		if len(pts) == 0 {
			continue
		}
		for i, p := range pts {
			pts[i] = p.Sub(tile.TopLeft).Scale(scale)
		}
		paths = append(paths, pts)
	}
	return paths
}
