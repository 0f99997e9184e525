package archive

import (
	"context"
	"errors"
	"io"
)

// File is an open archive file: sink writer, optional compression and row
// encoder stacked in that order.
type File struct {
	rows       RowWriter
	compressed io.WriteCloser
	dest       io.WriteCloser
	count      int64
}

// Create opens uri on sink and prepares it for rows with the given columns.
func Create(ctx context.Context, sink Sink, uri string, f Format, c Compression, columns []string) (*File, error) {
	exporter, err := ExporterFor(f)
	if err != nil {
		return nil, err
	}

	dest, err := sink.Create(ctx, uri)
	if err != nil {
		return nil, err
	}
	compressed, err := Compress(dest, c)
	if err != nil {
		dest.Close()
		return nil, err
	}
	rows, err := exporter.NewWriter(compressed, columns)
	if err != nil {
		compressed.Close()
		dest.Close()
		return nil, err
	}
	return &File{rows: rows, compressed: compressed, dest: dest}, nil
}

// WriteRow appends one row.
func (f *File) WriteRow(values []any) error {
	if err := f.rows.WriteRow(values); err != nil {
		return err
	}
	f.count++
	return nil
}

// Rows returns the number of rows written.
func (f *File) Rows() int64 {
	return f.count
}

// Close flushes and closes every layer.
func (f *File) Close() error {
	return errors.Join(f.rows.Close(), f.compressed.Close(), f.dest.Close())
}
