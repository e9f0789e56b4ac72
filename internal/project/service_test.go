package project

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/inamate/projmap/internal/geom"
	"github.com/inamate/projmap/internal/store"
	"github.com/inamate/projmap/internal/surface"
)

var triangle = []geom.Point{{X: 0.1, Y: 0.1}, {X: 0.5, Y: 0.1}, {X: 0.5, Y: 0.5}}

func newTestService() *Service {
	s := NewService(store.NewMemory())
	s.now = func() time.Time { return time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC) }
	return s
}

func TestDefaultNamesNeverReuseOrdinals(t *testing.T) {
	s := newTestService()
	a := s.CreateSurface(triangle)
	s.CreateSurface(append(triangle, geom.Pt(0.1, 0.5)))
	if err := s.Delete(a); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	s.CreateSurface(triangle)

	var names []string
	for _, sf := range s.Surfaces() {
		names = append(names, sf.Name)
	}
	want := []string{"Quad 2", "Triangle 3"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("names = %v, want %v", names, want)
	}
}

func TestDeleteSelectedClearsSelection(t *testing.T) {
	s := newTestService()
	a := s.CreateSurface(triangle)
	b := s.CreateSurface(triangle)

	s.Select(a)
	if err := s.Delete(b); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if s.Selected() != a {
		t.Errorf("deleting another surface changed the selection to %q", s.Selected())
	}
	if err := s.Delete(a); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if s.Selected() != "" {
		t.Errorf("selection = %q after deleting it, want empty", s.Selected())
	}
	if err := s.Delete(a); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() missing error = %v, want ErrNotFound", err)
	}
}

func TestSelectUnknownClears(t *testing.T) {
	s := newTestService()
	s.Select(s.CreateSurface(triangle))
	s.Select("surf_nope")
	if s.Selected() != "" {
		t.Errorf("Selected() = %q, want empty", s.Selected())
	}
}

func TestMovePointCopiesOnWrite(t *testing.T) {
	s := newTestService()
	id := s.CreateSurface(triangle)
	before := s.Surfaces()
	s.MovePoint(id, 0, geom.Pt(1.4, -0.3))

	if got := before[0].Points[0]; got != triangle[0] {
		t.Errorf("earlier snapshot changed to %v", got)
	}
	after, _ := s.Get(id)
	if got := after.Points[0]; got != (geom.Point{X: 1, Y: 0}) {
		t.Errorf("moved point = %v, want (1, 0)", got)
	}
}

func TestDuplicateAndReorder(t *testing.T) {
	s := newTestService()
	a := s.CreateSurface(triangle)
	b := s.CreateSurface(triangle)
	dup, err := s.Duplicate(a)
	if err != nil {
		t.Fatalf("Duplicate() failed: %v", err)
	}
	if got := order(s); !reflect.DeepEqual(got, []string{a, dup, b}) {
		t.Fatalf("order after duplicate = %v", got)
	}
	d, _ := s.Get(dup)
	if d.Name != "Triangle 1 copy" || geom.Distance(d.Points[0], geom.Pt(0.12, 0.12)) > 1e-9 {
		t.Errorf("duplicate = %q %v", d.Name, d.Points[0])
	}

	if err := s.Reorder(a, 5); err != nil {
		t.Fatalf("Reorder() failed: %v", err)
	}
	if got := order(s); !reflect.DeepEqual(got, []string{dup, b, a}) {
		t.Errorf("order after raise = %v", got)
	}
	if err := s.Reorder(a, -1); err != nil {
		t.Fatalf("Reorder() failed: %v", err)
	}
	if got := order(s); !reflect.DeepEqual(got, []string{dup, a, b}) {
		t.Errorf("order after lower = %v", got)
	}
}

func TestUpdateNormalizes(t *testing.T) {
	s := newTestService()
	id := s.CreateSurface(triangle)
	err := s.Update(id, func(sf *surface.Surface) {
		sf.ID = "hijack"
		sf.Style.Opacity = 3
		sf.Style.EffectSpeed = 40
	})
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	sf, err := s.Get(id)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if sf.Style.Opacity != 1 || sf.Style.EffectSpeed != surface.MaxEffectSpeed {
		t.Errorf("style not normalized: %+v", sf.Style)
	}
	if err := s.ToggleVisible(id); err != nil {
		t.Fatalf("ToggleVisible() failed: %v", err)
	}
	if sf, _ := s.Get(id); sf.Visible {
		t.Error("ToggleVisible() left the surface visible")
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	s := newTestService()
	s.Replace(surface.NewSampleLayout())
	want := s.Surfaces()

	var buf bytes.Buffer
	if err := s.Export(&buf); err != nil {
		t.Fatalf("Export() failed: %v", err)
	}
	s.Clear()
	if err := s.Import(&buf); err != nil {
		t.Fatalf("Import() failed: %v", err)
	}
	if got := s.Surfaces(); !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestImportFailureLeavesListUntouched(t *testing.T) {
	s := newTestService()
	s.Replace(surface.NewSampleLayout())
	want := s.Surfaces()

	err := s.Import(strings.NewReader(`{"app":"projmap","version":"1.0"}`))
	if !errors.Is(err, surface.ErrMissingShapes) {
		t.Errorf("Import() error = %v, want ErrMissingShapes", err)
	}
	if got := s.Surfaces(); !reflect.DeepEqual(got, want) {
		t.Error("failed import changed the list")
	}
}

func TestVersions(t *testing.T) {
	ctx := context.Background()
	s := newTestService()
	s.CreateSurface(triangle)

	v, err := s.SaveVersion(ctx, "")
	if err != nil {
		t.Fatalf("SaveVersion() failed: %v", err)
	}
	if v.Name != "2026-04-02 09:30:00" || len(v.Shapes) != 1 {
		t.Errorf("version = %q with %d shapes", v.Name, len(v.Shapes))
	}
	if err := s.Autosave(ctx); err != nil {
		t.Fatalf("Autosave() failed: %v", err)
	}

	list, err := s.Versions(ctx)
	if err != nil {
		t.Fatalf("Versions() failed: %v", err)
	}
	if len(list) != 1 || list[0].ID != v.ID {
		t.Errorf("Versions() = %v, want only %s", list, v.ID)
	}

	s.Clear()
	if err := s.RestoreVersion(ctx, v.ID); err != nil {
		t.Fatalf("RestoreVersion() failed: %v", err)
	}
	if len(s.Surfaces()) != 1 {
		t.Errorf("restored %d surfaces, want 1", len(s.Surfaces()))
	}

	if err := s.RestoreVersion(ctx, "snap_missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("RestoreVersion() missing error = %v", err)
	}
	if err := s.DeleteVersion(ctx, v.ID); err != nil {
		t.Fatalf("DeleteVersion() failed: %v", err)
	}

	s.Clear()
	ok, err := s.LoadAutosave(ctx)
	if err != nil || !ok || len(s.Surfaces()) != 1 {
		t.Errorf("LoadAutosave() = %v, %v with %d surfaces", ok, err, len(s.Surfaces()))
	}
}

func TestApplyLayoutSkipsShortRecords(t *testing.T) {
	s := newTestService()
	records := []surface.Surface{
		{Name: "Stage", Points: triangle, Style: surface.Style{Color: "#ff0000"}},
		{Name: "Line", Points: triangle[:2]},
	}
	ids := s.ApplyLayout(records)
	if len(ids) != 1 {
		t.Fatalf("ApplyLayout() created %d surfaces, want 1", len(ids))
	}
	sf, _ := s.Get(ids[0])
	if sf.Name != "Stage" || sf.Style.Color != "#ff0000" || sf.Style.FillType != surface.FillSolid || !sf.IsClosed {
		t.Errorf("layout surface = %+v", sf)
	}
}

func TestOnChange(t *testing.T) {
	s := newTestService()
	calls := 0
	s.OnChange(func() { calls++ })
	id := s.CreateSurface(triangle)
	s.Select(id)
	s.Select(id)
	if calls != 2 {
		t.Errorf("OnChange fired %d times, want 2", calls)
	}
}

func order(s *Service) []string {
	var out []string
	for _, sf := range s.Surfaces() {
		out = append(out, sf.ID)
	}
	return out
}
