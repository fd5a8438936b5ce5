// Package test provides in-memory store construction for tests.
package test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/inkstonehq/inkstone/internal/profile"
	"github.com/inkstonehq/inkstone/store"
	"github.com/inkstonehq/inkstone/store/db"
	"github.com/inkstonehq/inkstone/vecstore"
)

var testDBCounter atomic.Int64

// NewTestingStore creates a migrated, in-memory SQLite store. Each call gets
// its own database.
func NewTestingStore(ctx context.Context, t *testing.T) *store.Store {
	st, _ := NewTestingStores(ctx, t)
	return st
}

// NewTestingStores creates an in-memory SQLite store plus an in-memory vector
// store, with migrations (schema and vector indexes) applied.
func NewTestingStores(ctx context.Context, t *testing.T) (*store.Store, *vecstore.Store) {
	p := &profile.Profile{
		Mode:   "dev",
		Driver: "sqlite",
		DSN:    fmt.Sprintf("file:inkstone_test_%d?mode=memory&cache=shared", testDBCounter.Add(1)),
	}

	driver, err := db.NewDBDriver(p)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = driver.Close()
	})

	vec, err := vecstore.New("")
	require.NoError(t, err)

	st := store.New(driver, p)
	require.NoError(t, st.Migrate(ctx, vec))
	return st, vec
}
