package testsupport

import (
	"testing"

	"shotforge/internal/checkpoint"
	"shotforge/internal/config"
)

// MustOpenStore opens the checkpoint store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *checkpoint.Store {
	t.Helper()

	store, err := checkpoint.Open(cfg.CheckpointDBPath())
	if err != nil {
		t.Fatalf("checkpoint.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
