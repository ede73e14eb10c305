package memory

import (
	"context"
	"testing"

	"github.com/Homlet/middleware-android-sub001/internal/rdc/store"
	"github.com/Homlet/middleware-android-sub001/internal/rdc/store/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s := New()
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestRecordsAreCopied(t *testing.T) {
	s := New()
	ctx := context.Background()
	rec := storetest.Record("alpha", 1, "temp")
	if err := s.Put(ctx, rec); err != nil {
		t.Fatal(err)
	}
	rec.Endpoints[0].Name = "mutated"

	got, err := s.Get(ctx, "alpha")
	if err != nil {
		t.Fatal(err)
	}
	if got.Endpoints[0].Name != "temp" {
		t.Errorf("stored record aliased caller slice: %q", got.Endpoints[0].Name)
	}
}

func TestRegistered(t *testing.T) {
	if !store.IsRegistered("memory") {
		t.Fatal("memory store not registered")
	}
	s, err := store.New(context.Background(), "memory", nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Close()
}
