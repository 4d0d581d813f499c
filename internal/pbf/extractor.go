package pbf

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/paulmach/osm/osmxml"
	"go.uber.org/zap"

	"github.com/wegman-software/osm2voxel-go/internal/config"
	"github.com/wegman-software/osm2voxel-go/internal/logger"
	"github.com/wegman-software/osm2voxel-go/internal/store"
	"github.com/wegman-software/osm2voxel-go/internal/style"
)

// Options configures an extraction
type Options struct {
	BBox             *config.BBox
	Style            *style.Config
	Classifier       Classifier // nil indexes by the style's Index keys
	Workers          int        // PBF decoder goroutines; 0 uses all CPUs
	ProgressInterval time.Duration
}

// Extractor reads an OSM file into a store builder
type Extractor struct {
	opts  Options
	idx   *Indexer
	bytes atomic.Int64
}

// NewExtractor creates an extractor
func NewExtractor(opts Options) *Extractor {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = 5 * time.Second
	}
	return &Extractor{
		opts: opts,
		idx:  NewIndexer(opts.BBox, opts.Style, opts.Classifier),
	}
}

// Run scans the file at path and adds its nodes and ways to b.
// Relations are not read.
func (e *Extractor) Run(ctx context.Context, path string, b *store.Builder) (*Stats, error) {
	log := logger.Get()
	start := time.Now()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	scanner, err := e.newScanner(ctx, path, &countingReader{r: f, n: &e.bytes})
	if err != nil {
		return nil, err
	}
	defer scanner.Close()

	var fileSize int64
	if info, err := f.Stat(); err == nil {
		fileSize = info.Size()
	}
	go NewProgressTicker(ctx, e.opts.ProgressInterval, func() {
		fields := []zap.Field{
			zap.Int64("nodes", e.idx.nodes.Load()),
			zap.Int64("ways", e.idx.ways.Load()),
		}
		if fileSize > 0 {
			fields = append(fields, zap.Float64("percent", float64(e.bytes.Load())*100/float64(fileSize)))
		}
		log.Info("Reading input", fields...)
	}).Run()

	log.Info("Reading OSM data", zap.String("file", path), zap.Stringer("bbox", e.opts.BBox))
	for scanner.Scan() {
		switch obj := scanner.Object().(type) {
		case *osm.Node:
			if err := e.idx.AddNode(b, int64(obj.ID), obj.Lat, obj.Lon); err != nil {
				return nil, err
			}
		case *osm.Way:
			if err := e.idx.AddWay(b, int64(obj.ID), wayNodeIDs(obj), obj.Tags.Map()); err != nil {
				return nil, err
			}
		}
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stats := e.idx.Stats()
	stats.BytesRead = e.bytes.Load()
	stats.Duration = time.Since(start)
	stats.Log("Input read")
	return &stats, nil
}

// newScanner picks the decoder from the file extension
func (e *Extractor) newScanner(ctx context.Context, path string, r io.Reader) (osm.Scanner, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".pbf":
		s := osmpbf.New(ctx, r, e.opts.Workers)
		s.SkipRelations = true
		return s, nil
	case ".osm", ".xml":
		return osmxml.New(ctx, r), nil
	default:
		return nil, fmt.Errorf("unsupported input format %q (want .osm.pbf, .osm or .xml)", ext)
	}
}

func wayNodeIDs(w *osm.Way) []int64 {
	ids := make([]int64, len(w.Nodes))
	for i, ref := range w.Nodes {
		ids[i] = int64(ref.ID)
	}
	return ids
}

// countingReader counts bytes handed to the decoder
type countingReader struct {
	r io.Reader
	n *atomic.Int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n.Add(int64(n))
	return n, err
}
