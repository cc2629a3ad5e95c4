package testsupport

import (
	"context"
	"testing"

	"mediaflow/internal/config"
	"mediaflow/internal/ledger"
)

// MustOpenLedger opens a ledger.Store for tests and registers cleanup.
func MustOpenLedger(t testing.TB, cfg *config.Config) *ledger.Store {
	t.Helper()

	store, err := ledger.Open(cfg)
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// BeginRun records a running run for tests.
func BeginRun(t testing.TB, store *ledger.Store, runID string, items int) {
	t.Helper()

	if err := store.BeginRun(context.Background(), runID, items); err != nil {
		t.Fatalf("store.BeginRun: %v", err)
	}
}
