package surface

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/inamate/projmap/internal/geom"
)

func TestNewClampsPoints(t *testing.T) {
	s := New("x", []geom.Point{{X: -1, Y: 0.5}, {X: 2, Y: 2}, {X: 0.3, Y: -0.1}})
	want := []geom.Point{{X: 0, Y: 0.5}, {X: 1, Y: 1}, {X: 0.3, Y: 0}}
	if !reflect.DeepEqual(s.Points, want) {
		t.Errorf("New() points = %v, want %v", s.Points, want)
	}
	if !s.IsClosed || !s.Visible {
		t.Error("New() surface should be closed and visible")
	}
	if s.ID == "" {
		t.Error("New() returned empty id")
	}
}

func TestDefaultName(t *testing.T) {
	tests := []struct {
		n, ord int
		want   string
	}{
		{3, 1, "Triangle 1"},
		{4, 2, "Quad 2"},
		{6, 7, "Polygon 7"},
	}
	for _, tt := range tests {
		if got := DefaultName(tt.n, tt.ord); got != tt.want {
			t.Errorf("DefaultName(%d, %d) = %q, want %q", tt.n, tt.ord, got, tt.want)
		}
	}
}

func TestCloneIsDeep(t *testing.T) {
	s := New("a", []geom.Point{{X: 0.1, Y: 0.1}, {X: 0.2, Y: 0.2}, {X: 0.3, Y: 0.1}})
	c := s.Clone()
	c.Points[0].X = 0.9
	if s.Points[0].X != 0.1 {
		t.Error("Clone() shares the points slice")
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	shapes := NewSampleLayout()
	shapes[1].Visible = false
	shapes[2].Style.ImageSrc = "media/brick.png"
	shapes[2].Style.FillType = FillImage
	shapes[2].Style.MappingMode = MappingMask

	var buf bytes.Buffer
	if err := Encode(&buf, shapes, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)); err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}
	got, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}
	if !reflect.DeepEqual(got, shapes) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, shapes)
	}
}

func TestDecodeLegacyFlattened(t *testing.T) {
	legacy := `{"app":"projmap","version":"0.9","shapes":[
		{"id":"old1","name":"Wall","points":[{"x":0.1,"y":0.1},{"x":0.9,"y":0.1},{"x":0.5,"y":0.9}],
		 "color":"#ff0000","opacity":0.5,"effect":"strobe","visible":false}
	]}`
	got, err := Decode(strings.NewReader(legacy))
	if err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Decode() returned %d shapes, want 1", len(got))
	}
	s := got[0]
	if s.Style.Color != "#ff0000" || s.Style.Opacity != 0.5 || s.Style.Effect != EffectStrobe {
		t.Errorf("legacy style not upgraded: %+v", s.Style)
	}
	if s.Style.FillType != FillSolid || s.Style.EffectSpeed != DefaultEffectSpeed {
		t.Errorf("legacy defaults missing: %+v", s.Style)
	}
	if s.Visible {
		t.Error("legacy visible=false was lost")
	}
	if !s.IsClosed {
		t.Error("legacy shapes should be closed")
	}
}

func TestDecodeStructuredStyleDefaults(t *testing.T) {
	tests := []struct {
		name    string
		style   string
		opacity float64
	}{
		{"missing opacity", `{"color":"#ff0000"}`, 1},
		{"explicit zero", `{"color":"#ff0000","opacity":0}`, 0},
		{"explicit half", `{"color":"#ff0000","opacity":0.5}`, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := `{"shapes":[{"id":"a","points":[{"x":0.1,"y":0.1},{"x":0.9,"y":0.1},{"x":0.5,"y":0.9}],"style":` + tt.style + `}]}`
			got, err := Decode(strings.NewReader(in))
			if err != nil {
				t.Fatalf("Decode() failed: %v", err)
			}
			st := got[0].Style
			if st.Opacity != tt.opacity {
				t.Errorf("opacity = %v, want %v", st.Opacity, tt.opacity)
			}
			if st.Color != "#ff0000" || st.FillType != FillSolid || st.EffectSpeed != DefaultEffectSpeed {
				t.Errorf("style defaults missing: %+v", st)
			}
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want error
	}{
		{"not json", "{", ErrInvalidFile},
		{"no shapes", `{"app":"projmap"}`, ErrMissingShapes},
		{"null shapes", `{"shapes":null}`, ErrMissingShapes},
		{"empty points", `{"shapes":[{"id":"a","points":[]}]}`, ErrInvalidFile},
		{"duplicate ids", `{"shapes":[{"id":"a","points":[{"x":0,"y":0}]},{"id":"a","points":[{"x":0,"y":0}]}]}`, ErrInvalidFile},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.in))
			if !errors.Is(err, tt.want) {
				t.Errorf("Decode() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDecodeAssignsMissingIDs(t *testing.T) {
	got, err := Decode(strings.NewReader(`{"shapes":[{"points":[{"x":0.2,"y":0.2},{"x":0.4,"y":0.2},{"x":0.3,"y":0.5}]}]}`))
	if err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}
	if got[0].ID == "" || got[0].Name != "Triangle 1" {
		t.Errorf("missing id/name not filled: %+v", got[0])
	}
}

func TestClampSpeed(t *testing.T) {
	tests := map[float64]float64{0: 5, -2: 5, 0.5: 1, 3: 3, 42: 10}
	for in, want := range tests {
		if got := ClampSpeed(in); got != want {
			t.Errorf("ClampSpeed(%v) = %v, want %v", in, got, want)
		}
	}
}
