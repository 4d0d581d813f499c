package pbf

import (
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/wegman-software/osm2voxel-go/internal/config"
	"github.com/wegman-software/osm2voxel-go/internal/geo"
	"github.com/wegman-software/osm2voxel-go/internal/logger"
	"github.com/wegman-software/osm2voxel-go/internal/store"
	"github.com/wegman-software/osm2voxel-go/internal/style"
)

// Classifier decides which type classes a way is indexed under
type Classifier interface {
	Classify(id int64, tags map[string]string, closed bool) ([]string, error)
}

// Stats holds extraction statistics
type Stats struct {
	Nodes        int64
	NodesSkipped int64 // outside the bounding box
	Ways         int64
	WaysFiltered int64 // rejected by the style filter or with no node inside the box
	WaysIndexed  int64 // stored under at least one type
	BytesRead    int64
	Duration     time.Duration
}

// Log writes the stats as one info line
func (s Stats) Log(msg string) {
	logger.Get().Info(msg,
		zap.Int64("nodes", s.Nodes),
		zap.Int64("nodes_skipped", s.NodesSkipped),
		zap.Int64("ways", s.Ways),
		zap.Int64("ways_filtered", s.WaysFiltered),
		zap.Int64("ways_indexed", s.WaysIndexed),
		zap.Duration("duration", s.Duration.Round(time.Millisecond)))
}

// Indexer applies the bounding box, the style filter and way
// classification while nodes and ways are added to a builder.
// Nodes must be added before the ways that reference them.
type Indexer struct {
	bbox       *config.BBox
	style      *style.Config
	filter     *style.Filter
	classifier Classifier

	nodes, nodesSkipped atomic.Int64
	ways, waysFiltered  atomic.Int64
	waysIndexed         atomic.Int64
}

// NewIndexer creates an indexer; a nil classifier indexes ways by the
// style's Index keys
func NewIndexer(bbox *config.BBox, st *style.Config, classifier Classifier) *Indexer {
	if st == nil {
		st = style.DefaultConfig()
	}
	return &Indexer{
		bbox:       bbox,
		style:      st,
		filter:     style.NewFilter(st.Filter),
		classifier: classifier,
	}
}

// AddNode adds a node when it lies inside the bounding box
func (x *Indexer) AddNode(b *store.Builder, id int64, lat, lon float64) error {
	if !x.bbox.Contains(lat, lon) {
		x.nodesSkipped.Add(1)
		return nil
	}
	if err := b.AddNode(id, geo.NewCoordinate(lat, lon)); err != nil {
		return fmt.Errorf("failed to add node: %w", err)
	}
	x.nodes.Add(1)
	return nil
}

// AddWay stores a way that passes the style filter, indexed under its
// classes. With a bounding box set, ways without a single node inside it
// are dropped.
func (x *Indexer) AddWay(b *store.Builder, id int64, nodeIDs []int64, tags map[string]string) error {
	x.ways.Add(1)

	if !x.filter.Match(tags) {
		x.waysFiltered.Add(1)
		return nil
	}
	if x.bbox != nil && x.bbox.IsSet && !anyKnown(b, nodeIDs) {
		x.waysFiltered.Add(1)
		return nil
	}

	types, err := x.classify(id, tags, isClosed(nodeIDs))
	if err != nil {
		return err
	}
	if err := b.AddWay(id, nodeIDs, types...); err != nil {
		return fmt.Errorf("failed to add way: %w", err)
	}
	if len(types) > 0 {
		x.waysIndexed.Add(1)
	}
	return nil
}

// Stats returns the counters so far
func (x *Indexer) Stats() Stats {
	return Stats{
		Nodes:        x.nodes.Load(),
		NodesSkipped: x.nodesSkipped.Load(),
		Ways:         x.ways.Load(),
		WaysFiltered: x.waysFiltered.Load(),
		WaysIndexed:  x.waysIndexed.Load(),
	}
}

func (x *Indexer) classify(id int64, tags map[string]string, closed bool) ([]string, error) {
	if x.classifier == nil {
		return x.style.Types(tags), nil
	}
	return x.classifier.Classify(id, tags, closed)
}

func anyKnown(b *store.Builder, ids []int64) bool {
	for _, id := range ids {
		if b.HasNode(id) {
			return true
		}
	}
	return false
}

// isClosed reports whether a way's first and last node are the same
func isClosed(ids []int64) bool {
	return len(ids) >= 4 && ids[0] == ids[len(ids)-1]
}
