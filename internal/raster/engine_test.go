package raster

import (
	"errors"
	"math"
	"testing"

	"github.com/wegman-software/osm2voxel-go/internal/geo"
)

var (
	black = Color{0, 0, 0}
	red   = Color{255, 0, 0}
	green = Color{0, 255, 0}
	white = Color{255, 255, 255}
)

func square(x0, y0, x1, y1 float64) []geo.Point {
	return []geo.Point{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}}
}

// painted returns the set of pixels that differ from bg
func painted(c *Canvas, bg Color) map[[2]int]Color {
	out := make(map[[2]int]Color)
	for y := 0; y < c.Height; y++ {
		for x := 0; x < c.Width; x++ {
			if col := c.At(x, y); col != bg {
				out[[2]int{x, y}] = col
			}
		}
	}
	return out
}

func TestVectorEngineFill(t *testing.T) {
	e := NewVectorEngine()
	canvas, err := e.Render(Scene{
		Width: 8, Height: 8, Background: black,
		Layers: []Layer{{Paths: [][]geo.Point{square(1.25, 1.25, 5.25, 5.25)}, Fill: &red}},
	})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	got := painted(canvas, black)
	if len(got) != 16 {
		t.Errorf("painted %d pixels, want 16", len(got))
	}
	for y := 1; y <= 4; y++ {
		for x := 1; x <= 4; x++ {
			if got[[2]int{x, y}] != red {
				t.Errorf("pixel (%d,%d) = %v, want red", x, y, got[[2]int{x, y}])
			}
		}
	}
}

func TestVectorEngineStroke(t *testing.T) {
	tests := []struct {
		name string
		path []geo.Point
	}{
		{"single segment", []geo.Point{{X: 1.5, Y: 4.5}, {X: 5.5, Y: 4.5}}},
		{"doubled back", []geo.Point{{X: 1.5, Y: 4.5}, {X: 5.5, Y: 4.5}, {X: 1.5, Y: 4.5}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewVectorEngine()
			canvas, err := e.Render(Scene{
				Width: 8, Height: 8, Background: black,
				Layers: []Layer{{Paths: [][]geo.Point{tt.path}, Stroke: &white, StrokeWidth: 1}},
			})
			if err != nil {
				t.Fatalf("Render() error = %v", err)
			}
			got := painted(canvas, black)
			if len(got) != 5 {
				t.Errorf("painted %d pixels, want 5: %v", len(got), got)
			}
			for x := 1; x <= 5; x++ {
				if got[[2]int{x, 4}] != white {
					t.Errorf("pixel (%d,4) not stroked", x)
				}
			}
		})
	}
}

func TestVectorEngineFillThenStroke(t *testing.T) {
	e := NewVectorEngine()
	canvas, err := e.Render(Scene{
		Width: 8, Height: 8, Background: black,
		Layers: []Layer{{
			Paths:       [][]geo.Point{square(1.5, 1.5, 6.5, 6.5)},
			Fill:        &red,
			Stroke:      &green,
			StrokeWidth: 1,
		}},
	})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	tests := []struct {
		x, y int
		want Color
	}{
		{0, 0, black},
		{1, 1, green},
		{3, 1, green},
		{6, 4, green},
		{3, 3, red},
		{4, 5, red},
		{7, 7, black},
	}
	for _, tt := range tests {
		if got := canvas.At(tt.x, tt.y); got != tt.want {
			t.Errorf("At(%d,%d) = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestVectorEngineLayerOrder(t *testing.T) {
	e := NewVectorEngine()
	canvas, err := e.Render(Scene{
		Width: 4, Height: 4, Background: black,
		Layers: []Layer{
			{Paths: [][]geo.Point{square(0, 0, 4, 4)}, Fill: &red},
			{Paths: [][]geo.Point{{{X: 0, Y: 2}, {X: 4, Y: 2}}}, Stroke: &white, StrokeWidth: 2},
		},
	})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	for x := 0; x < 4; x++ {
		if got := canvas.At(x, 0); got != red {
			t.Errorf("At(%d,0) = %v, want red", x, got)
		}
		if got := canvas.At(x, 1); got != white {
			t.Errorf("At(%d,1) = %v, want white", x, got)
		}
		if got := canvas.At(x, 2); got != white {
			t.Errorf("At(%d,2) = %v, want white", x, got)
		}
	}
}

func TestVectorEngineClipsToCanvas(t *testing.T) {
	e := NewVectorEngine()
	canvas, err := e.Render(Scene{
		Width: 8, Height: 8, Background: black,
		Layers: []Layer{{Paths: [][]geo.Point{
			square(-3.25, -3.25, 2.25, 2.25),
			square(20, 20, 30, 30),
		}, Fill: &red}},
	})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	got := painted(canvas, black)
	if len(got) != 4 {
		t.Errorf("painted %d pixels, want 4: %v", len(got), got)
	}
}

func TestVectorEngineOnlyDeclaredColors(t *testing.T) {
	e := NewVectorEngine()
	diagonal := []geo.Point{{X: 0.3, Y: 1.7}, {X: 13.1, Y: 9.4}, {X: 4.2, Y: 15.9}}
	canvas, err := e.Render(Scene{
		Width: 16, Height: 16, Background: black,
		Layers: []Layer{
			{Paths: [][]geo.Point{diagonal}, Fill: &red, Stroke: &green, StrokeWidth: 1},
			{Paths: [][]geo.Point{diagonal}, Stroke: &white, StrokeWidth: 3},
		},
	})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	for p, col := range painted(canvas, black) {
		if col != red && col != green && col != white {
			t.Errorf("pixel %v has undeclared color %v", p, col)
		}
	}
}

func TestVectorEngineShortPaths(t *testing.T) {
	e := NewVectorEngine()
	canvas, err := e.Render(Scene{
		Width: 4, Height: 4, Background: black,
		Layers: []Layer{{
			Paths:       [][]geo.Point{nil, {{X: 1, Y: 1}}},
			Fill:        &red,
			Stroke:      &white,
			StrokeWidth: 3,
		}},
	})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if got := painted(canvas, black); len(got) != 0 {
		t.Errorf("painted %d pixels, want 0", len(got))
	}
}

func TestVectorEngineErrors(t *testing.T) {
	tests := []struct {
		name  string
		scene Scene
	}{
		{"zero size", Scene{Width: 0, Height: 4}},
		{"nan vertex", Scene{Width: 4, Height: 4, Layers: []Layer{{
			Paths: [][]geo.Point{{{X: 0, Y: 0}, {X: math.NaN(), Y: 1}}},
			Fill:  &red,
		}}}},
		{"infinite vertex", Scene{Width: 4, Height: 4, Layers: []Layer{{
			Paths:       [][]geo.Point{{{X: 0, Y: 0}, {X: 1, Y: math.Inf(1)}}},
			Stroke:      &white,
			StrokeWidth: 1,
		}}}},
		{"zero stroke width", Scene{Width: 4, Height: 4, Layers: []Layer{{
			Paths:  [][]geo.Point{{{X: 0, Y: 0}, {X: 1, Y: 1}}},
			Stroke: &white,
		}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewVectorEngine().Render(tt.scene)
			if !errors.Is(err, ErrInvalidScene) {
				t.Errorf("Render() error = %v, want ErrInvalidScene", err)
			}
		})
	}
}

func TestVectorEngineDeterministic(t *testing.T) {
	scene := Scene{
		Width: 32, Height: 32, Background: black,
		Layers: []Layer{{
			Paths:       [][]geo.Point{{{X: 2.7, Y: 3.1}, {X: 29.2, Y: 11.8}, {X: 17.5, Y: 30.3}}},
			Fill:        &red,
			Stroke:      &green,
			StrokeWidth: 1,
		}},
	}
	a, err := NewVectorEngine().Render(scene)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	e := NewVectorEngine()
	// reuse the engine to exercise mask reuse
	if _, err := e.Render(scene); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	b, err := e.Render(scene)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if string(a.Pix) != string(b.Pix) {
		t.Error("repeated renders differ")
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in      string
		want    Color
		wantErr bool
	}{
		{"#ff0000", red, false},
		{"00ff00", green, false},
		{" #FFFFFF ", white, false},
		{"#fff", Color{}, true},
		{"#gg0000", Color{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseColor(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseColor(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseColor(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
	if s := red.String(); s != "#ff0000" {
		t.Errorf("String() = %q", s)
	}
}
