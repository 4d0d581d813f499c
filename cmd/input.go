package cmd

import (
	"context"
	"fmt"

	"github.com/wegman-software/osm2voxel-go/internal/flex"
	"github.com/wegman-software/osm2voxel-go/internal/middle"
	"github.com/wegman-software/osm2voxel-go/internal/pbf"
	"github.com/wegman-software/osm2voxel-go/internal/store"
	"github.com/wegman-software/osm2voxel-go/internal/style"
)

// loadStyle reads --style, or returns the built-in style
func loadStyle() (*style.Config, error) {
	if cfg.StyleFile == "" {
		return style.DefaultConfig(), nil
	}
	return style.LoadConfig(cfg.StyleFile)
}

// openStore is the store constructor used by the commands
var openStore = buildStore

// buildStore ingests the configured input into a read-only store
func buildStore(ctx context.Context, st *style.Config) (*store.Store, error) {
	var classifier pbf.Classifier
	if cfg.StyleLua != "" {
		runtime := flex.NewRuntime()
		defer runtime.Close()
		if err := runtime.LoadFile(cfg.StyleLua); err != nil {
			return nil, err
		}
		classifier = runtime
	}

	var b *store.Builder
	if cfg.FlatNodesFile != "" {
		nodes, err := store.NewFlatNodes(cfg.FlatNodesFile, cfg.FlatNodesCapacity, cfg.Zoom)
		if err != nil {
			return nil, err
		}
		b = store.NewBuilderWithNodes(cfg.Zoom, nodes)
	} else {
		b = store.NewBuilder(cfg.Zoom)
	}

	if cfg.FromDB {
		pool, err := middle.Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		defer pool.Close()
		idx := pbf.NewIndexer(cfg.BBox, st, classifier)
		if _, err := middle.NewSource(pool, cfg.DBSchema, cfg.BBox, idx).Load(ctx, b); err != nil {
			return nil, fmt.Errorf("ingestion failed: %w", err)
		}
	} else {
		extractor := pbf.NewExtractor(pbf.Options{
			BBox:             cfg.BBox,
			Style:            st,
			Classifier:       classifier,
			Workers:          cfg.Workers,
			ProgressInterval: cfg.ProgressInterval,
		})
		if _, err := extractor.Run(ctx, cfg.InputFile, b); err != nil {
			return nil, fmt.Errorf("ingestion failed: %w", err)
		}
	}

	return b.Build()
}
