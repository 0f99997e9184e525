package archive

import (
	"fmt"
	"strings"
)

// Format is an archive file format, named as BigQuery names them.
type Format string

const (
	FormatParquet Format = "PARQUET"
	FormatAvro    Format = "AVRO"
	FormatCSV     Format = "CSV"
	FormatJSON    Format = "NEWLINE_DELIMITED_JSON"
)

// ParseFormat accepts a format name case-insensitively. "json" and "jsonl"
// mean newline-delimited JSON.
func ParseFormat(s string) (Format, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PARQUET":
		return FormatParquet, nil
	case "AVRO":
		return FormatAvro, nil
	case "CSV":
		return FormatCSV, nil
	case "JSON", "JSONL", "NEWLINE_DELIMITED_JSON":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown archive format %q", s)
	}
}

// Extension is the file suffix used for the format, without the dot.
func (f Format) Extension() string {
	switch f {
	case FormatJSON:
		return "json"
	default:
		return strings.ToLower(string(f))
	}
}

// Compression is an archive compression codec.
type Compression string

const (
	CompressionNone    Compression = "NONE"
	CompressionGzip    Compression = "GZIP"
	CompressionSnappy  Compression = "SNAPPY"
	CompressionDeflate Compression = "DEFLATE"
)

// ParseCompression accepts a codec name case-insensitively; empty means none.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "NONE":
		return CompressionNone, nil
	case "GZIP":
		return CompressionGzip, nil
	case "SNAPPY":
		return CompressionSnappy, nil
	case "DEFLATE":
		return CompressionDeflate, nil
	default:
		return "", fmt.Errorf("unknown compression %q", s)
	}
}
