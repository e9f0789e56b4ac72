package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/inamate/projmap/internal/surface"
)

func testStores(t *testing.T) map[string]Store {
	t.Helper()
	ctx := context.Background()

	file, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "nested", "projmap.db"))
	if err != nil {
		t.Fatalf("OpenSQLite() failed: %v", err)
	}
	mem, err := OpenSQLite(ctx, ":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite(:memory:) failed: %v", err)
	}
	stores := map[string]Store{
		"memory":        NewMemory(),
		"sqlite file":   file,
		"sqlite memory": mem,
	}
	if dsn := os.Getenv("PROJMAP_TEST_DATABASE_URL"); dsn != "" {
		pg, err := OpenPostgres(ctx, dsn)
		if err != nil {
			t.Fatalf("OpenPostgres() failed: %v", err)
		}
		stores["postgres"] = pg
	}
	for _, s := range stores {
		t.Cleanup(func() { s.Close() })
	}
	return stores
}

func TestStoreContract(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
			older := Version{ID: "snap_a", Name: "first", Timestamp: base, Shapes: surface.NewSampleLayout()}
			newer := Version{ID: "snap_b", Name: "second", Timestamp: base.Add(time.Minute), Shapes: []surface.Surface{}}

			if err := s.Save(ctx, older); err != nil {
				t.Fatalf("Save() failed: %v", err)
			}
			if err := s.Save(ctx, newer); err != nil {
				t.Fatalf("Save() failed: %v", err)
			}

			got, err := s.Get(ctx, "snap_a")
			if err != nil {
				t.Fatalf("Get() failed: %v", err)
			}
			if got.ID != older.ID || got.Name != older.Name || !got.Timestamp.Equal(older.Timestamp) {
				t.Errorf("Get() = %s %q %v, want %s %q %v", got.ID, got.Name, got.Timestamp, older.ID, older.Name, older.Timestamp)
			}
			if !reflect.DeepEqual(got.Shapes, older.Shapes) {
				t.Errorf("Get() shapes = %+v\nwant %+v", got.Shapes, older.Shapes)
			}

			list, err := s.List(ctx)
			if err != nil {
				t.Fatalf("List() failed: %v", err)
			}
			if len(list) != 2 || list[0].ID != "snap_b" || list[1].ID != "snap_a" {
				t.Errorf("List() order = %v, want newest first", ids(list))
			}

			older.Name = "renamed"
			if err := s.Save(ctx, older); err != nil {
				t.Fatalf("Save() overwrite failed: %v", err)
			}
			if got, _ := s.Get(ctx, "snap_a"); got.Name != "renamed" {
				t.Errorf("overwrite kept name %q", got.Name)
			}

			if err := s.Delete(ctx, "snap_a"); err != nil {
				t.Fatalf("Delete() failed: %v", err)
			}
			if _, err := s.Get(ctx, "snap_a"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
			}
			if err := s.Delete(ctx, "snap_a"); !errors.Is(err, ErrNotFound) {
				t.Errorf("second Delete() error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestMemoryStoreCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	shapes := surface.NewSampleLayout()
	m.Save(ctx, Version{ID: "v", Shapes: shapes})
	shapes[0].Points[0].X = 0.99

	got, _ := m.Get(ctx, "v")
	if got.Shapes[0].Points[0].X == 0.99 {
		t.Error("Save() kept a reference to the caller's points")
	}
}

func TestOpenUnknownKind(t *testing.T) {
	if _, err := Open(context.Background(), Options{Kind: "redis"}); err == nil {
		t.Error("Open() accepted an unknown backend")
	}
}

func ids(list []Version) []string {
	out := make([]string, len(list))
	for i, v := range list {
		out[i] = v.ID
	}
	return out
}
