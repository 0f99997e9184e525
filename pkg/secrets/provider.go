// Package secrets resolves ${secret:name} references in configuration
// values from a directory of secret files and from environment variables.
//
// Credentials such as a warehouse DSN or a catalog repository token can be
// written as references instead of literals:
//
//	warehouse:
//	  sql:
//	    dsn: postgres://keeper:${secret:warehouse-password}@db/analytics
//
// With the default prefix, warehouse-password is read from the file
// <dir>/warehouse-password or from KEEPER_SECRET_WAREHOUSE_PASSWORD.
package secrets

import "context"

// Provider retrieves secrets from one backend.
type Provider interface {
	// Get returns the secret value, or an error when the backend does not
	// hold it.
	Get(ctx context.Context, name string) (string, error)

	// Name identifies the provider in logs.
	Name() string
}
