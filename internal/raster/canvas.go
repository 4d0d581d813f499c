package raster

import (
	"fmt"
	"strconv"
	"strings"
)

// Color is an opaque RGB color
type Color struct {
	R, G, B uint8
}

// ParseColor parses "#rrggbb" (the leading # is optional)
func ParseColor(s string) (Color, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 {
		return Color{}, fmt.Errorf("invalid color %q: want #rrggbb", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

// String returns the color as #rrggbb
func (c Color) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Canvas is a row-major RGB pixel buffer, 3 bytes per pixel
type Canvas struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewCanvas allocates a canvas filled with bg
func NewCanvas(width, height int, bg Color) *Canvas {
	c := &Canvas{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, width*height*3),
	}
	c.Fill(bg)
	return c
}

// Fill paints every pixel with col
func (c *Canvas) Fill(col Color) {
	for i := 0; i < len(c.Pix); i += 3 {
		c.Pix[i], c.Pix[i+1], c.Pix[i+2] = col.R, col.G, col.B
	}
}

// At returns the color at (x, y)
func (c *Canvas) At(x, y int) Color {
	i := (y*c.Width + x) * 3
	return Color{R: c.Pix[i], G: c.Pix[i+1], B: c.Pix[i+2]}
}

// Set paints the pixel at (x, y)
func (c *Canvas) Set(x, y int, col Color) {
	i := (y*c.Width + x) * 3
	c.Pix[i], c.Pix[i+1], c.Pix[i+2] = col.R, col.G, col.B
}
