package report

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/apache/arrow/go/v14/parquet/file"

	"github.com/wegman-software/osm2voxel-go/internal/pipeline"
)

func TestWriteResult(t *testing.T) {
	res := &pipeline.Result{
		Regions: []pipeline.RegionResult{
			{RX: 0, RY: 0, Chunks: 1024, Bytes: 4 << 20, Areas: 12, Lines: 2, Duration: time.Second},
			{RX: 1, RY: 0, Chunks: 1024, Bytes: 3 << 20, Areas: 0, Lines: 2, Duration: 2 * time.Second},
			{RX: 0, RY: 1, Err: &pipeline.RegionError{RX: 0, RY: 1, Stage: "write", Err: errors.New("disk full")}},
		},
	}

	path := filepath.Join(t.TempDir(), "report.parquet")
	n, err := WriteResult(path, res)
	if err != nil {
		t.Fatalf("WriteResult: %v", err)
	}
	if n != 3 {
		t.Errorf("rows written = %d, want 3", n)
	}

	r, err := file.OpenParquetFile(path, false)
	if err != nil {
		t.Fatalf("OpenParquetFile: %v", err)
	}
	defer r.Close()

	if r.NumRows() != 3 {
		t.Errorf("NumRows = %d, want 3", r.NumRows())
	}
	if got := r.MetaData().Schema.NumColumns(); got != 10 {
		t.Errorf("NumColumns = %d, want 10", got)
	}
}

func TestWriterBatches(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.parquet")
	w, err := NewWriter(path, 2)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	for i := 0; i < 5; i++ {
		if err := w.Write(pipeline.RegionResult{RX: i, Chunks: 1024}); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := file.OpenParquetFile(path, false)
	if err != nil {
		t.Fatalf("OpenParquetFile: %v", err)
	}
	defer r.Close()
	if r.NumRows() != 5 {
		t.Errorf("NumRows = %d, want 5", r.NumRows())
	}
}

func TestNewWriterBadPath(t *testing.T) {
	if _, err := NewWriter(filepath.Join(t.TempDir(), "missing", "report.parquet"), 0); err == nil {
		t.Error("NewWriter should fail when the directory does not exist")
	}
}
