package voxel

import (
	"errors"
	"fmt"

	"github.com/Tnze/go-mc/nbt"
)

const (
	// DataVersion identifies Java Edition 1.16.5
	DataVersion = 2586

	// ChunkSize is the edge length of a chunk in blocks
	ChunkSize = 16
	// SectionVolume is the number of blocks in one 16x16x16 section
	SectionVolume = ChunkSize * ChunkSize * ChunkSize
	// DefaultSectionY puts the slab at blocks 64-79
	DefaultSectionY = 4

	lightBytes = SectionVolume / 2
)

// ErrPaletteIndex is returned when a cell refers past the end of the palette
var ErrPaletteIndex = errors.New("palette index out of range")

// Chunk is the NBT root of one chunk
type Chunk struct {
	DataVersion int32 `nbt:"DataVersion"`
	Level       Level `nbt:"Level"`
}

// Level holds the chunk position and its sections
type Level struct {
	XPos       int32     `nbt:"xPos"`
	ZPos       int32     `nbt:"zPos"`
	LastUpdate int64     `nbt:"LastUpdate"`
	Status     string    `nbt:"Status"`
	Sections   []Section `nbt:"Sections"`
}

// Section is a 16x16x16 block slab
type Section struct {
	Y           int8         `nbt:"Y"`
	Palette     []BlockState `nbt:"Palette"`
	BlockStates []int64      `nbt:"BlockStates"`
	BlockLight  []byte       `nbt:"BlockLight"`
	SkyLight    []byte       `nbt:"SkyLight"`
}

// BlockState is one palette entry
type BlockState struct {
	Name string `nbt:"Name"`
}

// Marshal encodes the chunk as uncompressed binary NBT
func (c *Chunk) Marshal() ([]byte, error) {
	data, err := nbt.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chunk %d,%d: %w", c.Level.XPos, c.Level.ZPos, err)
	}
	return data, nil
}

// UnmarshalChunk decodes binary NBT produced by Marshal
func UnmarshalChunk(data []byte) (*Chunk, error) {
	var c Chunk
	if err := nbt.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal chunk: %w", err)
	}
	return &c, nil
}

// Indices returns the unpacked palette index of every block in the section
func (s *Section) Indices() ([]uint16, error) {
	return Unpack(s.BlockStates, BitsPerEntry(len(s.Palette)), SectionVolume)
}

// Encoder turns 16x16 windows of a class grid into chunks
type Encoder struct {
	palette  []BlockState
	sectionY int8
	bits     int
}

// NewEncoder creates an encoder whose palette repeats materials until it has
// paletteSize entries, so class i maps to palette entry i
func NewEncoder(materials []string, paletteSize int, sectionY int) (*Encoder, error) {
	if len(materials) == 0 {
		return nil, fmt.Errorf("no materials")
	}
	if paletteSize < len(materials) {
		return nil, fmt.Errorf("palette size %d smaller than %d materials", paletteSize, len(materials))
	}
	if sectionY < -128 || sectionY > 127 {
		return nil, fmt.Errorf("section Y %d out of byte range", sectionY)
	}

	palette := make([]BlockState, paletteSize)
	for i := range palette {
		palette[i] = BlockState{Name: materials[i%len(materials)]}
	}
	return &Encoder{
		palette:  palette,
		sectionY: int8(sectionY),
		bits:     BitsPerEntry(paletteSize),
	}, nil
}

// Palette returns the block names in palette order
func (e *Encoder) Palette() []string {
	names := make([]string, len(e.palette))
	for i, b := range e.palette {
		names[i] = b.Name
	}
	return names
}

// EncodeChunk builds the chunk at absolute chunk position (chunkX, chunkZ)
// from the 16x16 window of grid starting at column cx*16, row cz*16.
// grid is row-major with the given stride; every layer of the section
// repeats the window.
func (e *Encoder) EncodeChunk(grid []uint8, stride, cx, cz int, chunkX, chunkZ int32) (*Chunk, error) {
	x0, z0 := cx*ChunkSize, cz*ChunkSize
	if x0+ChunkSize > stride || (z0+ChunkSize-1)*stride+x0+ChunkSize > len(grid) {
		return nil, fmt.Errorf("chunk window %d,%d outside %d-wide grid of %d cells", cx, cz, stride, len(grid))
	}

	layer := make([]uint16, ChunkSize*ChunkSize)
	for z := 0; z < ChunkSize; z++ {
		row := grid[(z0+z)*stride+x0 : (z0+z)*stride+x0+ChunkSize]
		for x, v := range row {
			if int(v) >= len(e.palette) {
				return nil, fmt.Errorf("%w: %d at cell %d,%d (palette has %d entries)",
					ErrPaletteIndex, v, x0+x, z0+z, len(e.palette))
			}
			layer[z*ChunkSize+x] = uint16(v)
		}
	}

	indices := make([]uint16, 0, SectionVolume)
	for y := 0; y < ChunkSize; y++ {
		indices = append(indices, layer...)
	}
	states, err := Pack(indices, e.bits)
	if err != nil {
		return nil, err
	}

	skyLight := make([]byte, lightBytes)
	for i := range skyLight {
		skyLight[i] = 0xff
	}

	return &Chunk{
		DataVersion: DataVersion,
		Level: Level{
			XPos:       chunkX,
			ZPos:       chunkZ,
			LastUpdate: 0,
			Status:     "full",
			Sections: []Section{{
				Y:           e.sectionY,
				Palette:     e.palette,
				BlockStates: states,
				BlockLight:  make([]byte, lightBytes),
				SkyLight:    skyLight,
			}},
		},
	}, nil
}
