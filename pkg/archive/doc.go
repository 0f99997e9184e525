// Package archive writes archived rows to long-term storage.
//
// A Layout decides where an entity's archive files live:
//
//	gs://<bucket>/<entity>/<YYYY-MM-DD-HH-MM-SS>.<ext>
//
// and the glob an external table is defined over:
//
//	gs://<bucket>/<entity>/*.<ext>
//
// Sinks open those locations for writing (GCSSink for gs:// URIs, LocalSink
// for file:// URIs and plain paths), and RowExporters encode rows as CSV or
// newline-delimited JSON. Warehouses with a native export (BigQuery) only use
// the Layout; SQL warehouses stream rows through an exporter into a sink.
package archive
