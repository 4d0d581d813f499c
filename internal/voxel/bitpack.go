package voxel

import (
	"fmt"
	"math/bits"

	"github.com/Tnze/go-mc/level"
)

// MinBitsPerEntry is the narrowest block-state width the game accepts
const MinBitsPerEntry = 4

// BitsPerEntry returns the bit width needed to address a palette of n
// entries, never less than MinBitsPerEntry
func BitsPerEntry(n int) int {
	if n <= 1 {
		return MinBitsPerEntry
	}
	return max(bits.Len(uint(n-1)), MinBitsPerEntry)
}

// Pack stores indices into longs using the 1.16+ layout: 64/width entries
// per long, the first entry in the lowest bits, no entry spanning two longs
func Pack(indices []uint16, width int) ([]int64, error) {
	if width < 1 || width > 32 {
		return nil, fmt.Errorf("invalid bit width %d", width)
	}
	limit := 1 << width
	storage := level.NewBitStorage(width, len(indices), nil)
	for i, v := range indices {
		if int(v) >= limit {
			return nil, fmt.Errorf("index %d at position %d does not fit in %d bits", v, i, width)
		}
		storage.Set(i, int(v))
	}

	raw := storage.Raw()
	longs := make([]int64, len(raw))
	for i, l := range raw {
		longs[i] = int64(l)
	}
	return longs, nil
}

// Unpack reads n entries of the given width back out of longs
func Unpack(longs []int64, width, n int) ([]uint16, error) {
	if width < 1 || width > 32 {
		return nil, fmt.Errorf("invalid bit width %d", width)
	}
	perLong := 64 / width
	need := (n + perLong - 1) / perLong
	if len(longs) < need {
		return nil, fmt.Errorf("need %d longs for %d entries, have %d", need, n, len(longs))
	}

	raw := make([]uint64, need)
	for i := range raw {
		raw[i] = uint64(longs[i])
	}
	storage := level.NewBitStorage(width, n, raw)

	out := make([]uint16, n)
	for i := range out {
		out[i] = uint16(storage.Get(i))
	}
	return out, nil
}
