// Package storetest holds the behaviour every rdc store must share.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Homlet/middleware-android-sub001/internal/rdc/store"
	"github.com/Homlet/middleware-android-sub001/pkg/endpoint"
	"github.com/Homlet/middleware-android-sub001/pkg/location"
)

// Record builds a record for the location id with one SOURCE endpoint per name.
func Record(id string, seq uint64, names ...string) *store.Record {
	rec := &store.Record{
		Location: location.Location{ID: id, Addresses: []location.Address{location.Address("tcp://" + id + ":7400")}},
		Seq:      seq,
		Updated:  time.UnixMilli(1_700_000_000_000 + int64(seq)).UTC(),
	}
	for _, n := range names {
		rec.Endpoints = append(rec.Endpoints, endpoint.New(n, "", endpoint.Source, `{"type":"string"}`, "green"))
	}
	return rec
}

// Run exercises open against the shared store contract. open must return a
// fresh, empty store.
func Run(t *testing.T, open func(t *testing.T) store.Store) {
	t.Helper()

	t.Run("PutGet", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		want := Record("alpha", 1, "temp", "humidity")
		if err := s.Put(ctx, want); err != nil {
			t.Fatalf("Put: %v", err)
		}
		got, err := s.Get(ctx, "alpha")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.Seq != 1 || len(got.Endpoints) != 2 || got.Endpoints[1].Name != "humidity" {
			t.Errorf("Get = %+v", got)
		}
		if !got.Updated.Equal(want.Updated) {
			t.Errorf("Updated = %v, want %v", got.Updated, want.Updated)
		}
	})

	t.Run("PutReplaces", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		if err := s.Put(ctx, Record("alpha", 1, "temp")); err != nil {
			t.Fatal(err)
		}
		if err := s.Put(ctx, Record("alpha", 1, "pressure")); err != nil {
			t.Fatal(err)
		}
		list, err := s.List(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(list) != 1 || list[0].Endpoints[0].Name != "pressure" {
			t.Errorf("List = %+v, want one record with pressure", list)
		}
	})

	t.Run("GetNotFound", func(t *testing.T) {
		s := open(t)
		if _, err := s.Get(context.Background(), "nobody"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("Get = %v, want ErrNotFound", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		_ = s.Put(ctx, Record("alpha", 1, "temp"))
		_ = s.Put(ctx, Record("beta", 2, "temp"))
		if err := s.Delete(ctx, "alpha"); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if err := s.Delete(ctx, "alpha"); err != nil {
			t.Fatalf("Delete twice: %v", err)
		}
		list, err := s.List(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(list) != 1 || list[0].Key() != "beta" {
			t.Errorf("List = %+v, want only beta", list)
		}
	})

	t.Run("Closed", func(t *testing.T) {
		s := open(t)
		if err := s.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
		if err := s.Put(context.Background(), Record("alpha", 1)); !errors.Is(err, store.ErrClosed) {
			t.Errorf("Put after Close = %v, want ErrClosed", err)
		}
		if _, err := s.List(context.Background()); !errors.Is(err, store.ErrClosed) {
			t.Errorf("List after Close = %v, want ErrClosed", err)
		}
	})
}
