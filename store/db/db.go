// Package db opens the store.DB implementation named in the configuration.
package db

import (
	"context"
	"fmt"

	"github.com/tranvictor/vestingscope/store"
	"github.com/tranvictor/vestingscope/store/memory"
	"github.com/tranvictor/vestingscope/store/postgres"
)

const (
	MEMORY   string = "memory"
	POSTGRES string = "postgres"
)

// New returns a store according to dbType. For postgres connection is the
// DSN, for memory it is an optional fixtures file.
func New(ctx context.Context, dbType, connection string) (store.DB, error) {
	switch dbType {
	case MEMORY, "":
		return memory.NewFromFile(connection)
	case POSTGRES, "postgresql":
		return postgres.New(ctx, connection)
	}
	return nil, fmt.Errorf("unsupported database type %q", dbType)
}

// Migrate prepares the schema of stores that have one.
func Migrate(ctx context.Context, db store.DB) error {
	if m, ok := db.(interface {
		Migrate(ctx context.Context) error
	}); ok {
		return m.Migrate(ctx)
	}
	return nil
}
