package archive

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLayout(t *testing.T) {
	l := GCSLayout("archive-bkt")
	at := time.Date(2024, 6, 1, 13, 4, 5, 0, time.UTC)

	if got, want := l.ObjectURI("orders", at, FormatParquet), "gs://archive-bkt/orders/2024-06-01-13-04-05.parquet"; got != want {
		t.Errorf("ObjectURI() = %q, want %q", got, want)
	}
	if got, want := l.GlobURI("orders", FormatJSON), "gs://archive-bkt/orders/*.json"; got != want {
		t.Errorf("GlobURI() = %q, want %q", got, want)
	}

	local := Layout{Base: "/var/archive/"}
	if got := local.GlobURI("orders", FormatCSV); got != "/var/archive/orders/*.csv" {
		t.Errorf("local GlobURI() = %q", got)
	}
}

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{
		"parquet": FormatParquet,
		"Avro":    FormatAvro,
		"csv":     FormatCSV,
		"json":    FormatJSON,
		"jsonl":   FormatJSON,
	}
	for in, want := range tests {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseFormat("orc"); err == nil {
		t.Error("ParseFormat(orc) should fail")
	}
	if _, err := ParseCompression("zstd"); err == nil {
		t.Error("ParseCompression(zstd) should fail")
	}
}

func TestSplitGCSURI(t *testing.T) {
	bucket, object, err := SplitGCSURI("gs://bkt/orders/2024.parquet")
	if err != nil || bucket != "bkt" || object != "orders/2024.parquet" {
		t.Errorf("SplitGCSURI() = %q, %q, %v", bucket, object, err)
	}
	for _, bad := range []string{"s3://bkt/x", "gs://bkt", "gs:///x"} {
		if _, _, err := SplitGCSURI(bad); err == nil {
			t.Errorf("SplitGCSURI(%q) should fail", bad)
		}
	}
}

func TestCreate_JSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders", "export.json")
	f, err := Create(context.Background(), LocalSink{}, "file://"+path, FormatJSON, CompressionNone, []string{"id", "name"})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if err := f.WriteRow([]any{int64(1), []byte("alpha")}); err != nil {
		t.Fatalf("WriteRow() failed: %v", err)
	}
	if err := f.WriteRow([]any{int64(2), nil}); err != nil {
		t.Fatalf("WriteRow() failed: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if f.Rows() != 2 {
		t.Errorf("Rows() = %d, want 2", f.Rows())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("export has %d lines, want 2", len(lines))
	}
	var first map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("decode line: %v", err)
	}
	if first["name"] != "alpha" || first["id"] != float64(1) {
		t.Errorf("first row = %v", first)
	}
}

func TestCreate_GzipCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.csv.gz")
	f, err := Create(context.Background(), LocalSink{}, path, FormatCSV, CompressionGzip, []string{"id", "at"})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	if err := f.WriteRow([]any{7, at}); err != nil {
		t.Fatalf("WriteRow() failed: %v", err)
	}
	if err := f.WriteRow([]any{7}); err == nil {
		t.Error("WriteRow() with a short row should fail")
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	raw, err := os.Open(path)
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	defer raw.Close()
	zr, err := gzip.NewReader(raw)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	scanner := bufio.NewScanner(zr)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if len(lines) != 2 || lines[0] != "id,at" || lines[1] != "7,2024-01-02T03:04:05Z" {
		t.Errorf("csv lines = %q", lines)
	}
}

func TestExporterFor_Columnar(t *testing.T) {
	if _, err := ExporterFor(FormatParquet); err == nil {
		t.Error("ExporterFor(PARQUET) should fail")
	}
}

func TestMultiSink_RequiresGCS(t *testing.T) {
	_, err := MultiSink{}.Create(context.Background(), "gs://bkt/obj")
	if err == nil {
		t.Error("MultiSink without GCS should reject gs:// URIs")
	}
}
