package archive

import (
	"strings"
	"time"
)

// TimestampLayout names archive files by export time.
const TimestampLayout = "2006-01-02-15-04-05"

// Layout places archive files under a base location, one folder per entity.
type Layout struct {
	// Base is "gs://<bucket>", "file:///<dir>" or a plain directory.
	Base string
}

// GCSLayout returns the layout of a bucket.
func GCSLayout(bucket string) Layout {
	return Layout{Base: "gs://" + bucket}
}

func (l Layout) base() string {
	return strings.TrimRight(l.Base, "/")
}

// ObjectURI is the file an export of entity at t writes.
func (l Layout) ObjectURI(entity string, t time.Time, f Format) string {
	return l.base() + "/" + entity + "/" + t.UTC().Format(TimestampLayout) + "." + f.Extension()
}

// GlobURI matches every archive file of entity.
func (l Layout) GlobURI(entity string, f Format) string {
	return l.base() + "/" + entity + "/*." + f.Extension()
}
