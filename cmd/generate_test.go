package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wegman-software/osm2voxel-go/internal/config"
	"github.com/wegman-software/osm2voxel-go/internal/geo"
	"github.com/wegman-software/osm2voxel-go/internal/storage"
	"github.com/wegman-software/osm2voxel-go/internal/store"
	"github.com/wegman-software/osm2voxel-go/internal/style"
)

type countingNodes struct {
	*store.MemoryNodes
	closed int
}

func (c *countingNodes) Close() error {
	c.closed++
	return c.MemoryNodes.Close()
}

// useStore points openStore at a one-building store and the global config
// at a fresh default for the duration of the test
func useStore(t *testing.T) *countingNodes {
	t.Helper()
	nodes := &countingNodes{MemoryNodes: store.NewMemoryNodes()}

	prevOpen, prevCfg := openStore, cfg
	t.Cleanup(func() { openStore, cfg = prevOpen, prevCfg })

	cfg = config.DefaultConfig()
	cfg.InputFile = "test.osm"
	cfg.MetricsInterval = 0
	cfg.WriteRetries = 0

	openStore = func(ctx context.Context, st *style.Config) (*store.Store, error) {
		b := store.NewBuilderWithNodes(17, nodes)
		corners := []geo.Coordinate{
			geo.NewCoordinate(51.5010, -0.1200),
			geo.NewCoordinate(51.5010, -0.1198),
			geo.NewCoordinate(51.5008, -0.1198),
			geo.NewCoordinate(51.5008, -0.1200),
		}
		for i, c := range corners {
			if err := b.AddNode(int64(i+1), c); err != nil {
				return nil, err
			}
		}
		if err := b.AddWay(1, []int64{1, 2, 3, 4, 1}, "building"); err != nil {
			return nil, err
		}
		return b.Build()
	}
	return nodes
}

func TestGenerateReleasesStore(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T) string
		wantErr string
	}{
		{
			name:  "success",
			setup: func(t *testing.T) string { return t.TempDir() },
		},
		{
			name: "output is a file",
			setup: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "world")
				if err := os.WriteFile(path, nil, 0o644); err != nil {
					t.Fatal(err)
				}
				return path
			},
			wantErr: "failed to open output",
		},
		{
			name: "region write fails",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				if err := os.WriteFile(filepath.Join(dir, "region"), nil, 0o644); err != nil {
					t.Fatal(err)
				}
				return dir
			},
			wantErr: "regions failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nodes := useStore(t)
			cfg.OutputDir = tt.setup(t)

			err := generate(context.Background())
			if tt.wantErr == "" && err != nil {
				t.Fatalf("generate() error = %v", err)
			}
			if tt.wantErr != "" && (err == nil || !strings.Contains(err.Error(), tt.wantErr)) {
				t.Fatalf("generate() error = %v, want %q", err, tt.wantErr)
			}
			if nodes.closed != 1 {
				t.Errorf("store closed %d times, want 1", nodes.closed)
			}
		})
	}
}

func TestGenerateWritesRegion(t *testing.T) {
	useStore(t)
	cfg.OutputDir = t.TempDir()

	if err := generate(context.Background()); err != nil {
		t.Fatalf("generate() error = %v", err)
	}
	matches, err := filepath.Glob(filepath.Join(cfg.OutputDir, "region", "r.*.mca"))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 {
		t.Fatalf("region files = %v, want 1", matches)
	}
	want := filepath.Join(cfg.OutputDir, filepath.FromSlash(storage.RegionName(0, 0)))
	if matches[0] != want {
		t.Errorf("region file = %s, want %s", matches[0], want)
	}
}

func TestInspectReleasesStore(t *testing.T) {
	nodes := useStore(t)
	var out bytes.Buffer
	if err := inspect(context.Background(), &out); err != nil {
		t.Fatalf("inspect() error = %v", err)
	}
	if nodes.closed != 1 {
		t.Errorf("store closed %d times, want 1", nodes.closed)
	}
	for _, want := range []string{"Nodes:   4", "Ways:    1", "building", "Regions: 1"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}
