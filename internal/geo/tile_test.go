package geo

import (
	"errors"
	"testing"
)

func TestNewTile(t *testing.T) {
	if _, err := NewTile(Point{0, 0}, Point{10, 10}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := NewTile(Point{5, 5}, Point{5, 5}); err != nil {
		t.Fatalf("degenerate tile should be allowed: %v", err)
	}
	if _, err := NewTile(Point{10, 0}, Point{0, 10}); !errors.Is(err, ErrInvalidTile) {
		t.Errorf("expected ErrInvalidTile for swapped X, got %v", err)
	}
	if _, err := NewTile(Point{0, 10}, Point{10, 0}); !errors.Is(err, ErrInvalidTile) {
		t.Errorf("expected ErrInvalidTile for swapped Y, got %v", err)
	}
}

func TestTileCornersAndBorder(t *testing.T) {
	tile := Tile{TopLeft: Point{1, 2}, BottomRight: Point{11, 22}}

	if tile.TopRight() != (Point{11, 2}) {
		t.Errorf("TopRight = %+v", tile.TopRight())
	}
	if tile.BottomLeft() != (Point{1, 22}) {
		t.Errorf("BottomLeft = %+v", tile.BottomLeft())
	}
	if tile.Width() != 10 || tile.Height() != 20 {
		t.Errorf("size = %fx%f, want 10x20", tile.Width(), tile.Height())
	}

	border := tile.Border()
	if len(border) != 5 {
		t.Fatalf("border has %d points, want 5", len(border))
	}
	if border[0] != border[4] {
		t.Error("border ring is not closed")
	}
}

func TestTileContainsStrict(t *testing.T) {
	tile := Tile{TopLeft: Point{0, 0}, BottomRight: Point{10, 10}}

	tests := []struct {
		p    Point
		want bool
	}{
		{Point{5, 5}, true},
		{Point{0.001, 9.999}, true},
		{Point{0, 5}, false},
		{Point{10, 5}, false},
		{Point{5, 10}, false},
		{Point{-1, 5}, false},
		{Point{11, 11}, false},
	}
	for _, tt := range tests {
		if got := tile.ContainsStrict(tt.p); got != tt.want {
			t.Errorf("ContainsStrict(%+v) = %v, want %v", tt.p, got, tt.want)
		}
	}
}

func TestBoundsExtend(t *testing.T) {
	var b Bounds
	if !b.Empty() {
		t.Fatal("zero bounds should be empty")
	}

	b.Extend(Point{5, -3})
	b.Extend(Point{-2, 7})
	b.Extend(Point{1, 1})

	if b.Min != (Point{-2, -3}) {
		t.Errorf("Min = %+v, want (-2, -3)", b.Min)
	}
	if b.Max != (Point{5, 7}) {
		t.Errorf("Max = %+v, want (5, 7)", b.Max)
	}
	if b.Size() != (Point{7, 10}) {
		t.Errorf("Size = %+v, want (7, 10)", b.Size())
	}
}
