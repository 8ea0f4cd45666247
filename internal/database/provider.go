package database

import (
	"context"
	"errors"
)

var (
	postgresRegistry    func() Registry
	postgresImageReader func() ImageReader
	postgresInitialized bool
)

// RegisterPostgresBackend registers PostgreSQL repository constructors.
// This is called by the serve and ingest commands to avoid import cycles.
func RegisterPostgresBackend(registry func() Registry, reader func() ImageReader) {
	postgresRegistry = registry
	postgresImageReader = reader
	postgresInitialized = registry != nil && reader != nil
}

// IsInitialized returns whether the PostgreSQL backend has been registered.
func IsInitialized() bool {
	return postgresInitialized
}

// GetRegistry returns the Registry of the PostgreSQL backend
func GetRegistry(ctx context.Context) (Registry, error) {
	if !postgresInitialized {
		return nil, errors.New("PostgreSQL backend not initialized: DATABASE_URL is required")
	}
	return postgresRegistry(), nil
}

// GetImageReader returns an ImageReader from the PostgreSQL backend
func GetImageReader(ctx context.Context) (ImageReader, error) {
	if !postgresInitialized {
		return nil, errors.New("PostgreSQL backend not initialized: DATABASE_URL is required")
	}
	return postgresImageReader(), nil
}
