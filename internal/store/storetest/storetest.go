// Package storetest provides throwaway gateways for tests.
package storetest

import (
	"context"
	"testing"

	"github.com/pesio-ai/be-zoo-core/internal/store"
	"github.com/pesio-ai/be-zoo-core/pkg/logger"
)

// NewSQLite opens a migrated in-memory SQLite gateway closed at test cleanup
func NewSQLite(t testing.TB) *store.Gateway {
	t.Helper()

	ctx := context.Background()
	g, err := store.Open(ctx, store.Options{Driver: "sqlite", DSN: ":memory:"}, logger.Nop())
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = g.Close() })

	if err := g.Migrate(ctx); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return g
}
