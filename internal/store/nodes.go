package store

import (
	"github.com/wegman-software/osm2voxel-go/internal/geo"
)

// Node is a point feature with its projected position
type Node struct {
	ID    int64
	Coord geo.Coordinate
	Point geo.Point
}

// NodeTable holds nodes keyed by id.
// Put is only called while a store is being built; Get must be safe for
// concurrent readers once building is done.
type NodeTable interface {
	Put(n Node) error
	Get(id int64) (Node, bool)
	Len() int
	Close() error
}

// MemoryNodes is a map-backed node table
type MemoryNodes struct {
	nodes map[int64]Node
}

// NewMemoryNodes creates an empty in-memory node table
func NewMemoryNodes() *MemoryNodes {
	return &MemoryNodes{nodes: make(map[int64]Node)}
}

// Put stores a node, replacing any node with the same id
func (m *MemoryNodes) Put(n Node) error {
	m.nodes[n.ID] = n
	return nil
}

// Get looks up a node by id
func (m *MemoryNodes) Get(id int64) (Node, bool) {
	n, ok := m.nodes[id]
	return n, ok
}

// Len returns the number of stored nodes
func (m *MemoryNodes) Len() int {
	return len(m.nodes)
}

// Close is a no-op for in-memory tables
func (m *MemoryNodes) Close() error {
	return nil
}
