package raster

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"math"

	"golang.org/x/image/vector"

	"github.com/wegman-software/osm2voxel-go/internal/geo"
)

// coverageThreshold is the 8-bit coverage at which a pixel counts as painted.
// Painting whole pixels only keeps every output pixel one of the declared
// colors, so quantization can match colors exactly.
const coverageThreshold = 127

// ErrInvalidScene is returned for scenes the engine cannot draw
var ErrInvalidScene = errors.New("invalid scene")

// Layer is a set of paths sharing one style.
// Each path is filled (when Fill is set) and then stroked (when Stroke is set)
// before the next path is drawn.
type Layer struct {
	Paths       [][]geo.Point
	Fill        *Color
	Stroke      *Color
	StrokeWidth float64
}

// Scene is everything needed to produce one canvas.
// Layers are drawn in order over the background; later draws win.
type Scene struct {
	Width      int
	Height     int
	Background Color
	Layers     []Layer
}

// Engine turns vertex lists plus fill/stroke styles into an RGB canvas
type Engine interface {
	Render(scene Scene) (*Canvas, error)
}

// VectorEngine rasterizes with golang.org/x/image/vector, without anti-aliasing.
// It is not safe for concurrent use; create one per goroutine.
type VectorEngine struct {
	z    *vector.Rasterizer
	mask *image.Alpha
}

// NewVectorEngine creates an engine
func NewVectorEngine() *VectorEngine {
	return &VectorEngine{
		z:    vector.NewRasterizer(1, 1),
		mask: image.NewAlpha(image.Rect(0, 0, 1, 1)),
	}
}

// Render draws the scene
func (e *VectorEngine) Render(scene Scene) (*Canvas, error) {
	if scene.Width <= 0 || scene.Height <= 0 {
		return nil, fmt.Errorf("%w: size %dx%d", ErrInvalidScene, scene.Width, scene.Height)
	}

	canvas := NewCanvas(scene.Width, scene.Height, scene.Background)
	for li, layer := range scene.Layers {
		if layer.Stroke != nil && layer.StrokeWidth <= 0 {
			return nil, fmt.Errorf("%w: layer %d stroke width %f", ErrInvalidScene, li, layer.StrokeWidth)
		}
		for pi, path := range layer.Paths {
			if len(path) < 2 {
				continue
			}
			if !finite(path) {
				return nil, fmt.Errorf("%w: layer %d path %d has non-finite vertices", ErrInvalidScene, li, pi)
			}
			if layer.Fill != nil {
				e.paint(canvas, path, 0, *layer.Fill, e.addPolygon)
			}
			if layer.Stroke != nil {
				e.paint(canvas, path, layer.StrokeWidth/2, *layer.Stroke, func(p []geo.Point, off geo.Point) {
					e.addStroke(p, off, layer.StrokeWidth/2)
				})
			}
		}
	}
	return canvas, nil
}

// paint rasterizes one path inside its bounding box (grown by pad and
// clipped to the canvas) and sets every sufficiently covered pixel to col.
func (e *VectorEngine) paint(canvas *Canvas, path []geo.Point, pad float64, col Color, add func([]geo.Point, geo.Point)) {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range path {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}

	x0 := max(int(math.Floor(minX-pad)), 0)
	y0 := max(int(math.Floor(minY-pad)), 0)
	x1 := min(int(math.Ceil(maxX+pad)), canvas.Width)
	y1 := min(int(math.Ceil(maxY+pad)), canvas.Height)
	if x0 >= x1 || y0 >= y1 {
		return
	}
	w, h := x1-x0, y1-y0

	e.z.Reset(w, h)
	e.z.DrawOp = draw.Src
	add(path, geo.Point{X: float64(x0), Y: float64(y0)})

	e.resizeMask(w, h)
	e.z.Draw(e.mask, e.mask.Rect, image.Opaque, image.Point{})

	for y := 0; y < h; y++ {
		row := e.mask.Pix[y*e.mask.Stride : y*e.mask.Stride+w]
		for x, a := range row {
			if a >= coverageThreshold {
				canvas.Set(x0+x, y0+y, col)
			}
		}
	}
}

func (e *VectorEngine) resizeMask(w, h int) {
	n := w * h
	if cap(e.mask.Pix) < n {
		e.mask.Pix = make([]uint8, n)
	}
	e.mask.Pix = e.mask.Pix[:n]
	e.mask.Stride = w
	e.mask.Rect = image.Rect(0, 0, w, h)
}

// addPolygon adds the path as an implicitly closed polygon
func (e *VectorEngine) addPolygon(path []geo.Point, off geo.Point) {
	first := path[0].Sub(off)
	e.z.MoveTo(float32(first.X), float32(first.Y))
	for _, p := range path[1:] {
		q := p.Sub(off)
		e.z.LineTo(float32(q.X), float32(q.Y))
	}
	e.z.ClosePath()
}

// addStroke adds one quad per segment, each extended by hw at both ends so
// consecutive segments overlap at joins. Every quad winds the same way, so
// overlapping coverage adds up instead of cancelling.
func (e *VectorEngine) addStroke(path []geo.Point, off geo.Point, hw float64) {
	for i := 1; i < len(path); i++ {
		a, b := path[i-1].Sub(off), path[i].Sub(off)
		d := b.Sub(a)
		length := math.Hypot(d.X, d.Y)

		u := geo.Point{X: 1, Y: 0}
		if length > 0 {
			u = d.Scale(1 / length)
		}
		n := geo.Point{X: -u.Y, Y: u.X}.Scale(hw)
		a = a.Sub(u.Scale(hw))
		b = b.Add(u.Scale(hw))

		corners := [4]geo.Point{a.Add(n), b.Add(n), b.Sub(n), a.Sub(n)}
		e.z.MoveTo(float32(corners[0].X), float32(corners[0].Y))
		for _, c := range corners[1:] {
			e.z.LineTo(float32(c.X), float32(c.Y))
		}
		e.z.ClosePath()
	}
}

func finite(path []geo.Point) bool {
	for _, p := range path {
		if math.IsNaN(p.X) || math.IsInf(p.X, 0) || math.IsNaN(p.Y) || math.IsInf(p.Y, 0) {
			return false
		}
	}
	return true
}
