package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// Sink opens archive locations for writing.
type Sink interface {
	Create(ctx context.Context, uri string) (io.WriteCloser, error)
}

// LocalSink writes to the local filesystem. It accepts file:// URIs and
// plain paths.
type LocalSink struct{}

// Create opens path for writing, creating parent directories.
func (LocalSink) Create(ctx context.Context, uri string) (io.WriteCloser, error) {
	path := strings.TrimPrefix(uri, "file://")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create archive file %s: %w", path, err)
	}
	return f, nil
}

// GCSSink writes objects to Cloud Storage.
type GCSSink struct {
	client *storage.Client
}

// NewGCSSink creates a Cloud Storage sink. With an empty credentialsFile the
// client uses application default credentials.
func NewGCSSink(ctx context.Context, credentialsFile string) (*GCSSink, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		if _, err := os.Stat(credentialsFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("service account key not found at path: %s", credentialsFile)
		}
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}
	return &GCSSink{client: client}, nil
}

// Create opens a writer for a gs://bucket/object URI. The object becomes
// visible when the writer is closed.
func (s *GCSSink) Create(ctx context.Context, uri string) (io.WriteCloser, error) {
	bucket, object, err := SplitGCSURI(uri)
	if err != nil {
		return nil, err
	}
	w := s.client.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = "application/octet-stream"
	return w, nil
}

// Close releases the storage client.
func (s *GCSSink) Close() error {
	return s.client.Close()
}

// SplitGCSURI splits "gs://bucket/path/to/object".
func SplitGCSURI(uri string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(uri, "gs://")
	if !ok {
		return "", "", fmt.Errorf("not a gs:// URI: %s", uri)
	}
	bucket, object, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || object == "" {
		return "", "", fmt.Errorf("gs:// URI needs a bucket and object: %s", uri)
	}
	return bucket, object, nil
}

// MultiSink routes gs:// URIs to GCS and everything else to the local
// filesystem. GCS may be nil when no bucket is configured.
type MultiSink struct {
	GCS   Sink
	Local Sink
}

// Create implements Sink.
func (m MultiSink) Create(ctx context.Context, uri string) (io.WriteCloser, error) {
	if strings.HasPrefix(uri, "gs://") {
		if m.GCS == nil {
			return nil, fmt.Errorf("no Cloud Storage sink configured for %s", uri)
		}
		return m.GCS.Create(ctx, uri)
	}
	local := m.Local
	if local == nil {
		local = LocalSink{}
	}
	return local.Create(ctx, uri)
}
