package quantize

import (
	"github.com/wegman-software/osm2voxel-go/internal/raster"
	"github.com/wegman-software/osm2voxel-go/internal/style"
)

// Material classes a pixel can quantize to
const (
	Background uint8 = iota
	Area
	Line
	Fallback

	// NumClasses is the number of distinct classes
	NumClasses = 4
)

// Table maps exact RGB colors to material classes.
// Colors not in the table map to Fallback, so quantization never fails.
type Table struct {
	lookup map[raster.Color]uint8
	reps   [NumClasses]raster.Color
}

// NewTable builds the lookup table from a validated style
func NewTable(st *style.Config) (*Table, error) {
	t := &Table{lookup: make(map[raster.Color]uint8)}

	add := func(hex string, class uint8) error {
		c, err := raster.ParseColor(hex)
		if err != nil {
			return err
		}
		if _, seen := t.lookup[c]; !seen {
			t.lookup[c] = class
		}
		return nil
	}

	if err := add(st.Background, Background); err != nil {
		return nil, err
	}
	for _, a := range st.Areas {
		if err := add(a.Fill, Area); err != nil {
			return nil, err
		}
		if err := add(a.Outline, Line); err != nil {
			return nil, err
		}
	}
	for _, l := range st.Lines {
		if err := add(l.Stroke, Line); err != nil {
			return nil, err
		}
	}

	// Representatives: the first color registered for each class
	var have [NumClasses]bool
	for _, c := range t.orderedColors(st) {
		class := t.lookup[c]
		if !have[class] {
			t.reps[class], have[class] = c, true
		}
	}
	t.reps[Fallback] = t.unusedColor()
	return t, nil
}

// orderedColors lists style colors in declaration order
func (t *Table) orderedColors(st *style.Config) []raster.Color {
	var out []raster.Color
	push := func(hex string) {
		if c, err := raster.ParseColor(hex); err == nil {
			out = append(out, c)
		}
	}
	push(st.Background)
	for _, a := range st.Areas {
		push(a.Fill)
		push(a.Outline)
	}
	for _, l := range st.Lines {
		push(l.Stroke)
	}
	return out
}

// unusedColor finds a color outside the table, starting at magenta
func (t *Table) unusedColor() raster.Color {
	c := raster.Color{R: 0xff, G: 0x00, B: 0xff}
	for {
		if _, taken := t.lookup[c]; !taken {
			return c
		}
		c.B--
	}
}

// Quantize returns the class of a color
func (t *Table) Quantize(c raster.Color) uint8 {
	if class, ok := t.lookup[c]; ok {
		return class
	}
	return Fallback
}

// Color returns a color that quantizes to class
func (t *Table) Color(class uint8) raster.Color {
	if int(class) >= NumClasses {
		return t.reps[Fallback]
	}
	return t.reps[class]
}

// QuantizeCanvas returns the row-major class grid of a canvas
func (t *Table) QuantizeCanvas(c *raster.Canvas) []uint8 {
	grid := make([]uint8, c.Width*c.Height)
	for i := range grid {
		p := i * 3
		grid[i] = t.Quantize(raster.Color{R: c.Pix[p], G: c.Pix[p+1], B: c.Pix[p+2]})
	}
	return grid
}
