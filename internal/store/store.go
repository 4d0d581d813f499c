package store

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/wegman-software/osm2voxel-go/internal/geo"
)

var (
	// ErrDuplicateID is returned when a node or way id is added twice
	ErrDuplicateID = errors.New("duplicate id")
	// ErrBuilt is returned when a builder is used after Build
	ErrBuilt = errors.New("store already built")
)

// Way is an ordered list of node references.
// Node ids are weak: nodes missing from the store are skipped when resolving.
type Way struct {
	ID      int64
	NodeIDs []int64
}

// Stats summarizes a store's content
type Stats struct {
	Nodes      int
	Ways       int
	WaysByType map[string]int
}

// Store is the read-only spatial index shared by every region task.
// It is never mutated after Builder.Build returns it, so all methods are safe
// for concurrent use without locking.
type Store struct {
	zoom   int
	nodes  NodeTable
	ways   map[int64]Way
	wayIDs []int64            // sorted ascending
	byType map[string][]int64 // sorted ascending, no duplicates
	bounds geo.Bounds
}

// Zoom returns the zoom level points were projected at
func (s *Store) Zoom() int {
	return s.zoom
}

// Bounds returns the projected extent of every node in the store
func (s *Store) Bounds() geo.Bounds {
	return s.bounds
}

// Node looks up a node by id
func (s *Store) Node(id int64) (Node, bool) {
	return s.nodes.Get(id)
}

// Way looks up a way by id
func (s *Store) Way(id int64) (Way, bool) {
	w, ok := s.ways[id]
	return w, ok
}

// Resolve returns the projected points of a way in order, skipping missing nodes
func (s *Store) Resolve(w Way) []geo.Point {
	points := make([]geo.Point, 0, len(w.NodeIDs))
	for _, id := range w.NodeIDs {
		if n, ok := s.nodes.Get(id); ok {
			points = append(points, n.Point)
		}
	}
	return points
}

// WaysOfType returns the ids of ways tagged with typ, sorted ascending
func (s *Store) WaysOfType(typ string) []int64 {
	return s.byType[typ]
}

// Types returns the indexed type tags, sorted
func (s *Store) Types() []string {
	types := make([]string, 0, len(s.byType))
	for t := range s.byType {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Stats returns node, way and per-type counts
func (s *Store) Stats() Stats {
	st := Stats{
		Nodes:      s.nodes.Len(),
		Ways:       len(s.ways),
		WaysByType: make(map[string]int, len(s.byType)),
	}
	for t, ids := range s.byType {
		st.WaysByType[t] = len(ids)
	}
	return st
}

// Close releases the node table
func (s *Store) Close() error {
	return s.nodes.Close()
}

// Builder accumulates nodes and ways during ingestion.
// It is not safe for concurrent use.
type Builder struct {
	zoom   int
	nodes  NodeTable
	ways   map[int64]Way
	byType map[string][]int64
	bounds geo.Bounds
	built  bool
}

// NewBuilder creates a builder with an in-memory node table
func NewBuilder(zoom int) *Builder {
	return NewBuilderWithNodes(zoom, NewMemoryNodes())
}

// NewBuilderWithNodes creates a builder storing nodes in the given table
func NewBuilderWithNodes(zoom int, nodes NodeTable) *Builder {
	return &Builder{
		zoom:   zoom,
		nodes:  nodes,
		ways:   make(map[int64]Way),
		byType: make(map[string][]int64),
	}
}

// Zoom returns the zoom level nodes are projected at
func (b *Builder) Zoom() int {
	return b.zoom
}

// AddNode projects and stores a node, extending the store bounds
func (b *Builder) AddNode(id int64, c geo.Coordinate) error {
	if b.built {
		return ErrBuilt
	}
	if !c.IsFinite() {
		return fmt.Errorf("node %d has non-finite coordinate (%f, %f)", id, c.Lat, c.Lon)
	}
	if _, exists := b.nodes.Get(id); exists {
		return fmt.Errorf("%w: node %d", ErrDuplicateID, id)
	}

	n := Node{ID: id, Coord: c, Point: geo.Project(c, b.zoom)}
	if err := b.nodes.Put(n); err != nil {
		return err
	}
	b.bounds.Extend(n.Point)
	return nil
}

// HasNode reports whether a node with this id was added
func (b *Builder) HasNode(id int64) bool {
	_, ok := b.nodes.Get(id)
	return ok
}

// AddWay stores a way and indexes it under each given type tag
func (b *Builder) AddWay(id int64, nodeIDs []int64, types ...string) error {
	if b.built {
		return ErrBuilt
	}
	if _, exists := b.ways[id]; exists {
		return fmt.Errorf("%w: way %d", ErrDuplicateID, id)
	}

	b.ways[id] = Way{ID: id, NodeIDs: slices.Clone(nodeIDs)}
	for _, t := range types {
		b.byType[t] = append(b.byType[t], id)
	}
	return nil
}

// Build freezes the builder into a read-only store.
// The builder must not be used afterwards.
func (b *Builder) Build() (*Store, error) {
	if b.built {
		return nil, ErrBuilt
	}
	b.built = true

	wayIDs := make([]int64, 0, len(b.ways))
	for id := range b.ways {
		wayIDs = append(wayIDs, id)
	}
	slices.Sort(wayIDs)

	byType := make(map[string][]int64, len(b.byType))
	for t, ids := range b.byType {
		kept := make([]int64, 0, len(ids))
		for _, id := range ids {
			if _, ok := b.ways[id]; ok {
				kept = append(kept, id)
			}
		}
		slices.Sort(kept)
		byType[t] = slices.Compact(kept)
	}

	return &Store{
		zoom:   b.zoom,
		nodes:  b.nodes,
		ways:   b.ways,
		wayIDs: wayIDs,
		byType: byType,
		bounds: b.bounds,
	}, nil
}
