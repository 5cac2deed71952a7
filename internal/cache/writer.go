package cache

import (
	"fmt"
	"os"

	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/apache/arrow/go/v14/parquet"
	"github.com/apache/arrow/go/v14/parquet/compress"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"

	"github.com/wegman-software/nvdb2osm-go/internal/nvdb"
)

// Writer writes segment records to a Parquet cache file.
type Writer struct {
	file      *os.File
	writer    *pqarrow.FileWriter
	builder   *array.RecordBuilder
	batchSize int
	count     int
}

// NewWriter creates a cache writer. batchSize is rows per row group.
func NewWriter(path string, batchSize int) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	writerProps := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Zstd),
		parquet.WithDictionaryDefault(false),
	)
	writer, err := pqarrow.NewFileWriter(Schema, f, writerProps, pqarrow.DefaultWriterProps())
	if err != nil {
		f.Close()
		return nil, err
	}

	return &Writer{
		file:      f,
		writer:    writer,
		builder:   array.NewRecordBuilder(memory.DefaultAllocator, Schema),
		batchSize: batchSize,
	}, nil
}

// Write appends one segment record.
func (w *Writer) Write(rec nvdb.Record) error {
	props, err := rec.Props.ToJSON()
	if err != nil {
		return fmt.Errorf("encode properties: %w", err)
	}

	w.builder.Field(0).(*array.StringBuilder).Append(rec.RouteID())
	w.builder.Field(1).(*array.Float64Builder).Append(rec.FromMeasure())
	w.builder.Field(2).(*array.BinaryBuilder).Append(rec.WKB)
	w.builder.Field(3).(*array.StringBuilder).Append(string(props))

	w.count++
	if w.count >= w.batchSize {
		return w.flush()
	}
	return nil
}

func (w *Writer) flush() error {
	if w.count == 0 {
		return nil
	}
	rec := w.builder.NewRecord()
	defer rec.Release()
	w.count = 0
	return w.writer.Write(rec)
}

// Close flushes remaining rows and finalizes the file.
func (w *Writer) Close() error {
	if err := w.flush(); err != nil {
		return err
	}
	w.builder.Release()
	return w.writer.Close()
}
