// Package anvil builds Minecraft region (.mca) files in memory
package anvil

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

const (
	// SectorSize is the allocation unit of a region file
	SectorSize = 4096
	// RegionChunks is the edge length of a region in chunks
	RegionChunks = 32
	// ChunksPerRegion is the number of chunk slots in a region
	ChunksPerRegion = RegionChunks * RegionChunks
	// CompressionZlib marks a zlib-compressed chunk payload
	CompressionZlib = 2

	headerSectors = 2
	maxSectors    = 255
)

// ErrNoChunk is returned when reading an empty chunk slot
var ErrNoChunk = errors.New("chunk not present")

// ChunkIndex is the slot of chunk (x, z) within its region
func ChunkIndex(x, z int) int {
	return (x & 31) + (z&31)*RegionChunks
}

// Region collects compressed chunk payloads for one region file.
// It is not safe for concurrent use.
type Region struct {
	chunks [ChunksPerRegion][]byte
	level  int
	count  int
}

// NewRegion creates an empty region using the default zlib level
func NewRegion() *Region {
	return NewRegionLevel(zlib.DefaultCompression)
}

// NewRegionLevel creates an empty region compressing at the given zlib level
func NewRegionLevel(level int) *Region {
	return &Region{level: level}
}

// SetChunk compresses the binary NBT of chunk (x, z) into its slot,
// replacing any previous payload
func (r *Region) SetChunk(x, z int, nbtData []byte) error {
	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, r.level)
	if err != nil {
		return fmt.Errorf("failed to create zlib writer: %w", err)
	}
	if _, err := zw.Write(nbtData); err != nil {
		return fmt.Errorf("failed to compress chunk %d,%d: %w", x, z, err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to compress chunk %d,%d: %w", x, z, err)
	}

	if sectors := sectorsFor(buf.Len()); sectors > maxSectors {
		return fmt.Errorf("chunk %d,%d needs %d sectors, limit is %d", x, z, sectors, maxSectors)
	}

	i := ChunkIndex(x, z)
	if r.chunks[i] == nil {
		r.count++
	}
	r.chunks[i] = buf.Bytes()
	return nil
}

// Len returns the number of chunks present
func (r *Region) Len() int {
	return r.count
}

// Bytes lays the region out as a file image: location table, zeroed
// timestamp table, then every present chunk in slot order, each padded to
// whole sectors
func (r *Region) Bytes() []byte {
	size := headerSectors * SectorSize
	for _, c := range r.chunks {
		if c != nil {
			size += sectorsFor(len(c)) * SectorSize
		}
	}

	out := make([]byte, size)
	sector := headerSectors
	for i, c := range r.chunks {
		if c == nil {
			continue
		}
		n := sectorsFor(len(c))
		loc := uint32(sector)<<8 | uint32(n)
		binary.BigEndian.PutUint32(out[i*4:], loc)

		at := sector * SectorSize
		binary.BigEndian.PutUint32(out[at:], uint32(len(c)+1))
		out[at+4] = CompressionZlib
		copy(out[at+5:], c)
		sector += n
	}
	return out
}

func sectorsFor(payload int) int {
	return (payload + 5 + SectorSize - 1) / SectorSize
}

// ReadChunk returns the decompressed NBT of chunk (x, z) from a region file image
func ReadChunk(data []byte, x, z int) ([]byte, error) {
	if len(data) < headerSectors*SectorSize {
		return nil, fmt.Errorf("region too short: %d bytes", len(data))
	}
	loc := binary.BigEndian.Uint32(data[ChunkIndex(x, z)*4:])
	if loc == 0 {
		return nil, fmt.Errorf("%w: %d,%d", ErrNoChunk, x, z)
	}
	offset := int(loc>>8) * SectorSize
	sectors := int(loc & 0xff)
	if offset+sectors*SectorSize > len(data) || offset+5 > len(data) {
		return nil, fmt.Errorf("chunk %d,%d points past end of region", x, z)
	}

	length := int(binary.BigEndian.Uint32(data[offset:]))
	if length < 1 || 4+length > sectors*SectorSize {
		return nil, fmt.Errorf("chunk %d,%d has invalid length %d", x, z, length)
	}
	if kind := data[offset+4]; kind != CompressionZlib {
		return nil, fmt.Errorf("chunk %d,%d uses unsupported compression %d", x, z, kind)
	}

	zr, err := zlib.NewReader(bytes.NewReader(data[offset+5 : offset+4+length]))
	if err != nil {
		return nil, fmt.Errorf("failed to open chunk %d,%d: %w", x, z, err)
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress chunk %d,%d: %w", x, z, err)
	}
	return out, nil
}

// Present lists the slot indices that hold a chunk in a region file image
func Present(data []byte) ([]int, error) {
	if len(data) < headerSectors*SectorSize {
		return nil, fmt.Errorf("region too short: %d bytes", len(data))
	}
	var slots []int
	for i := 0; i < ChunksPerRegion; i++ {
		if binary.BigEndian.Uint32(data[i*4:]) != 0 {
			slots = append(slots, i)
		}
	}
	return slots, nil
}
