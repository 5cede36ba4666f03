package memory

import (
	"context"
	"testing"
)

func TestStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()

	if rec := s.Load(ctx); len(rec.ProcessedKeys) != 0 || rec.LastSync != nil {
		t.Fatalf("new store should be empty, got %+v", rec)
	}

	for _, key := range []string{"A", "B", "A"} {
		if err := s.MarkProcessed(ctx, key); err != nil {
			t.Fatalf("MarkProcessed(%s): %v", key, err)
		}
	}

	rec := s.Load(ctx)
	if len(rec.ProcessedKeys) != 2 {
		t.Errorf("expected 2 keys, got %v", rec.ProcessedKeys)
	}
	if rec.LastSync == nil {
		t.Error("LastSync should be set after a mark")
	}

	// Mutating the loaded copy must not leak into the store.
	rec.ProcessedKeys = append(rec.ProcessedKeys, "C")
	if s.Load(ctx).Has("C") {
		t.Error("Load returned shared state")
	}

	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if err := s.Reset(ctx); err != nil {
		t.Fatalf("second Reset: %v", err)
	}
	if rec := s.Load(ctx); len(rec.ProcessedKeys) != 0 || rec.LastSync != nil {
		t.Errorf("store not empty after reset: %+v", rec)
	}
}

func TestInstancesAreIndependent(t *testing.T) {
	ctx := context.Background()
	a, b := New(), New()

	if err := a.MarkProcessed(ctx, "K"); err != nil {
		t.Fatal(err)
	}
	if b.Load(ctx).Has("K") {
		t.Error("instances share state")
	}
}
