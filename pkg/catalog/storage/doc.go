// Package storage provides catalog.Store implementations: MemoryStore for
// tests and small deployments, and SQLiteStore for a persistent local catalog.
package storage
