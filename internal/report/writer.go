package report

import (
	"errors"
	"fmt"
	"os"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/apache/arrow/go/v14/parquet"
	"github.com/apache/arrow/go/v14/parquet/compress"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"

	"github.com/wegman-software/osm2voxel-go/internal/pipeline"
	"github.com/wegman-software/osm2voxel-go/internal/storage"
)

var schema = arrow.NewSchema([]arrow.Field{
	{Name: "rx", Type: arrow.PrimitiveTypes.Int32, Nullable: false},
	{Name: "ry", Type: arrow.PrimitiveTypes.Int32, Nullable: false},
	{Name: "file", Type: arrow.BinaryTypes.String, Nullable: false},
	{Name: "chunks", Type: arrow.PrimitiveTypes.Int32, Nullable: false},
	{Name: "bytes", Type: arrow.PrimitiveTypes.Int64, Nullable: false},
	{Name: "areas", Type: arrow.PrimitiveTypes.Int32, Nullable: false},
	{Name: "lines", Type: arrow.PrimitiveTypes.Int32, Nullable: false},
	{Name: "duration_ms", Type: arrow.PrimitiveTypes.Int64, Nullable: false},
	{Name: "stage", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "error", Type: arrow.BinaryTypes.String, Nullable: true},
}, nil)

// Writer writes one Parquet row per region
type Writer struct {
	file      *os.File
	writer    *pqarrow.FileWriter
	builder   *array.RecordBuilder
	batchSize int
	count     int
	rows      int
}

// NewWriter creates a region report at path
func NewWriter(path string, batchSize int) (*Writer, error) {
	if batchSize <= 0 {
		batchSize = 1024
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create report: %w", err)
	}

	writerProps := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Zstd),
		parquet.WithDictionaryDefault(false),
	)

	writer, err := pqarrow.NewFileWriter(schema, f, writerProps, pqarrow.DefaultWriterProps())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create parquet writer: %w", err)
	}

	return &Writer{
		file:      f,
		writer:    writer,
		builder:   array.NewRecordBuilder(memory.DefaultAllocator, schema),
		batchSize: batchSize,
	}, nil
}

// Write appends one region row
func (w *Writer) Write(r pipeline.RegionResult) error {
	w.builder.Field(0).(*array.Int32Builder).Append(int32(r.RX))
	w.builder.Field(1).(*array.Int32Builder).Append(int32(r.RY))
	w.builder.Field(2).(*array.StringBuilder).Append(storage.RegionName(r.RX, r.RY))
	w.builder.Field(3).(*array.Int32Builder).Append(int32(r.Chunks))
	w.builder.Field(4).(*array.Int64Builder).Append(int64(r.Bytes))
	w.builder.Field(5).(*array.Int32Builder).Append(int32(r.Areas))
	w.builder.Field(6).(*array.Int32Builder).Append(int32(r.Lines))
	w.builder.Field(7).(*array.Int64Builder).Append(r.Duration.Milliseconds())
	if r.Err != nil {
		w.builder.Field(8).(*array.StringBuilder).Append(r.Err.Stage)
		w.builder.Field(9).(*array.StringBuilder).Append(r.Err.Err.Error())
	} else {
		w.builder.Field(8).(*array.StringBuilder).AppendNull()
		w.builder.Field(9).(*array.StringBuilder).AppendNull()
	}

	w.rows++
	w.count++
	if w.count >= w.batchSize {
		return w.flush()
	}
	return nil
}

// Rows returns the number of rows written so far
func (w *Writer) Rows() int {
	return w.rows
}

func (w *Writer) flush() error {
	if w.count == 0 {
		return nil
	}
	rec := w.builder.NewRecord()
	defer rec.Release()
	err := w.writer.Write(rec)
	w.count = 0
	return err
}

// Close flushes pending rows and closes the file
func (w *Writer) Close() error {
	defer w.builder.Release()
	if err := w.flush(); err != nil {
		w.writer.Close()
		w.file.Close()
		return err
	}
	if err := w.writer.Close(); err != nil {
		return err
	}
	// pqarrow may already have closed the file
	if err := w.file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return err
	}
	return nil
}

// WriteResult writes every region of a run to path and returns the row count
func WriteResult(path string, res *pipeline.Result) (int, error) {
	w, err := NewWriter(path, 0)
	if err != nil {
		return 0, err
	}
	for _, r := range res.Regions {
		if err := w.Write(r); err != nil {
			w.Close()
			return 0, fmt.Errorf("failed to write report row: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("failed to close report: %w", err)
	}
	return w.Rows(), nil
}
