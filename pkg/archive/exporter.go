package archive

import (
	"compress/gzip"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// RowWriter encodes one row at a time. Close flushes buffered output but
// does not close the underlying writer.
type RowWriter interface {
	WriteRow(values []any) error
	Close() error
}

// RowExporter creates RowWriters for a format.
type RowExporter interface {
	Format() Format
	NewWriter(w io.Writer, columns []string) (RowWriter, error)
}

// ExporterFor returns the row exporter of f. Columnar formats need a
// warehouse-native export and have none.
func ExporterFor(f Format) (RowExporter, error) {
	switch f {
	case FormatCSV:
		return NewCSVExporter(true), nil
	case FormatJSON:
		return NewJSONLinesExporter(), nil
	default:
		return nil, fmt.Errorf("format %s cannot be written row by row", f)
	}
}

// CSVExporter writes comma-separated rows.
type CSVExporter struct {
	// IncludeHeader includes a header row with column names.
	IncludeHeader bool
}

// NewCSVExporter creates a new CSV exporter.
func NewCSVExporter(includeHeader bool) *CSVExporter {
	return &CSVExporter{IncludeHeader: includeHeader}
}

func (e *CSVExporter) Format() Format { return FormatCSV }

func (e *CSVExporter) NewWriter(w io.Writer, columns []string) (RowWriter, error) {
	cw := csv.NewWriter(w)
	if e.IncludeHeader {
		if err := cw.Write(columns); err != nil {
			return nil, fmt.Errorf("write csv header: %w", err)
		}
	}
	return &csvRowWriter{w: cw, width: len(columns)}, nil
}

type csvRowWriter struct {
	w     *csv.Writer
	width int
}

func (c *csvRowWriter) WriteRow(values []any) error {
	if len(values) != c.width {
		return fmt.Errorf("row has %d values, header has %d", len(values), c.width)
	}
	record := make([]string, len(values))
	for i, v := range values {
		record[i] = formatCSVValue(Normalize(v))
	}
	return c.w.Write(record)
}

func (c *csvRowWriter) Close() error {
	c.w.Flush()
	return c.w.Error()
}

func formatCSVValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

// JSONLinesExporter writes one JSON object per line, keyed by column name.
type JSONLinesExporter struct{}

// NewJSONLinesExporter creates a newline-delimited JSON exporter.
func NewJSONLinesExporter() *JSONLinesExporter {
	return &JSONLinesExporter{}
}

func (e *JSONLinesExporter) Format() Format { return FormatJSON }

func (e *JSONLinesExporter) NewWriter(w io.Writer, columns []string) (RowWriter, error) {
	return &jsonRowWriter{enc: json.NewEncoder(w), columns: columns}, nil
}

type jsonRowWriter struct {
	enc     *json.Encoder
	columns []string
}

func (j *jsonRowWriter) WriteRow(values []any) error {
	if len(values) != len(j.columns) {
		return fmt.Errorf("row has %d values, expected %d", len(values), len(j.columns))
	}
	obj := make(map[string]any, len(values))
	for i, col := range j.columns {
		obj[col] = Normalize(values[i])
	}
	return j.enc.Encode(obj)
}

func (j *jsonRowWriter) Close() error { return nil }

// Normalize converts driver values to portable scalars: byte slices become
// strings and times are rendered in UTC.
func Normalize(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	default:
		return v
	}
}

// Compress wraps w for the codec. The returned closer finishes the stream
// and must be closed before w.
func Compress(w io.Writer, c Compression) (io.WriteCloser, error) {
	switch c {
	case CompressionNone, "":
		return nopCloser{w}, nil
	case CompressionGzip:
		return gzip.NewWriter(w), nil
	default:
		return nil, fmt.Errorf("compression %s is not supported for row exports", c)
	}
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
