package store

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/edsrzf/mmap-go"

	"github.com/wegman-software/osm2voxel-go/internal/geo"
)

const (
	// Each entry: lat (float64) + lon (float64) = 16 bytes
	flatEntrySize = 16
	// DefaultFlatNodesCapacity covers every node id currently issued by OSM
	DefaultFlatNodesCapacity = 16_000_000_000
)

// FlatNodes is a memory-mapped node table for extracts too large to keep in a map.
// Coordinates are stored at offset = nodeID * 16, giving O(1) lookups.
// The file is sparse, so disk usage only grows with the ids actually written.
// Points are re-projected on every lookup.
type FlatNodes struct {
	file     *os.File
	data     mmap.MMap
	capacity int64
	zoom     int
	count    int
}

// NewFlatNodes creates a flat node file able to hold ids in [0, capacity)
func NewFlatNodes(path string, capacity int64, zoom int) (*FlatNodes, error) {
	if capacity <= 0 {
		capacity = DefaultFlatNodesCapacity
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create flat nodes file: %w", err)
	}

	// Truncate to full size (creates sparse file on Linux)
	if err := f.Truncate(capacity * flatEntrySize); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to truncate flat nodes file: %w", err)
	}

	data, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to mmap flat nodes file: %w", err)
	}

	return &FlatNodes{
		file:     f,
		data:     data,
		capacity: capacity,
		zoom:     zoom,
	}, nil
}

// Put stores a node's coordinates
func (f *FlatNodes) Put(n Node) error {
	if n.ID < 0 || n.ID >= f.capacity {
		return fmt.Errorf("node id %d outside flat nodes capacity %d", n.ID, f.capacity)
	}

	offset := n.ID * flatEntrySize
	binary.LittleEndian.PutUint64(f.data[offset:], math.Float64bits(n.Coord.Lat))
	binary.LittleEndian.PutUint64(f.data[offset+8:], math.Float64bits(n.Coord.Lon))
	f.count++
	return nil
}

// Get retrieves a node.
// (0, 0) is indistinguishable from an unwritten slot and reads as absent;
// that location is in the Gulf of Guinea, so we accept the edge case.
func (f *FlatNodes) Get(id int64) (Node, bool) {
	if id < 0 || id >= f.capacity {
		return Node{}, false
	}

	offset := id * flatEntrySize
	lat := math.Float64frombits(binary.LittleEndian.Uint64(f.data[offset:]))
	lon := math.Float64frombits(binary.LittleEndian.Uint64(f.data[offset+8:]))
	if lat == 0 && lon == 0 {
		return Node{}, false
	}

	coord := geo.NewCoordinate(lat, lon)
	return Node{ID: id, Coord: coord, Point: geo.Project(coord, f.zoom)}, true
}

// Len returns the number of Put calls
func (f *FlatNodes) Len() int {
	return f.count
}

// Sync flushes written entries to disk
func (f *FlatNodes) Sync() error {
	return f.data.Flush()
}

// Close unmaps and closes the file. The file itself is left in place.
func (f *FlatNodes) Close() error {
	if err := f.data.Unmap(); err != nil {
		f.file.Close()
		return err
	}
	return f.file.Close()
}
