package surface

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/inamate/projmap/internal/geom"
	"github.com/inamate/projmap/internal/typeid"
)

const (
	AppName     = "projmap"
	FileVersion = "1.0"
)

var (
	ErrMissingShapes = errors.New("file has no shapes field")
	ErrInvalidFile   = errors.New("invalid project file")
)

// File is the export/import document.
type File struct {
	App       string    `json:"app"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	Shapes    []Surface `json:"shapes"`
}

// record accepts both the structured form and the flattened legacy form
// (color/opacity/effect at the top level, no style object).
type record struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Points   []geom.Point    `json:"points"`
	IsClosed *bool           `json:"isClosed"`
	Visible  *bool           `json:"visible"`
	Style    json.RawMessage `json:"style"`

	Color   string   `json:"color"`
	Opacity *float64 `json:"opacity"`
	Effect  Effect   `json:"effect"`
}

// UnmarshalJSON reads either form and upgrades legacy records to a
// structured Style in memory.
func (s *Surface) UnmarshalJSON(data []byte) error {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}

	out := Surface{
		ID:       r.ID,
		Name:     r.Name,
		Points:   r.Points,
		IsClosed: true,
		Visible:  true,
	}
	if r.IsClosed != nil {
		out.IsClosed = *r.IsClosed
	}
	if r.Visible != nil {
		out.Visible = *r.Visible
	}

	// Fields missing from a structured style keep their defaults, so an
	// absent opacity reads as 1 while an explicit 0 survives.
	out.Style = DefaultStyle()
	if len(r.Style) > 0 && string(r.Style) != "null" {
		if err := json.Unmarshal(r.Style, &out.Style); err != nil {
			return fmt.Errorf("style: %w", err)
		}
	} else {
		if r.Color != "" {
			out.Style.Color = r.Color
		}
		if r.Opacity != nil {
			out.Style.Opacity = *r.Opacity
		}
		if r.Effect != "" {
			out.Style.Effect = r.Effect
		}
	}

	*s = out
	return nil
}

// Encode writes shapes as a File document.
func Encode(w io.Writer, shapes []Surface, now time.Time) error {
	if shapes == nil {
		shapes = []Surface{}
	}
	f := File{
		App:       AppName,
		Version:   FileVersion,
		Timestamp: now.UTC(),
		Shapes:    shapes,
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("encode project file: %w", err)
	}
	return nil
}

// Decode reads a File document and returns its validated shapes. Nothing
// is returned unless every record is valid.
func Decode(r io.Reader) ([]Surface, error) {
	var raw struct {
		App     string          `json:"app"`
		Version string          `json:"version"`
		Shapes  json.RawMessage `json:"shapes"`
	}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	if len(raw.Shapes) == 0 || string(raw.Shapes) == "null" {
		return nil, ErrMissingShapes
	}
	return DecodeShapes(raw.Shapes)
}

// DecodeShapes parses a JSON array of surface records in either form.
func DecodeShapes(data []byte) ([]Surface, error) {
	var shapes []Surface
	if err := json.Unmarshal(data, &shapes); err != nil {
		return nil, fmt.Errorf("%w: shapes: %v", ErrInvalidFile, err)
	}
	if shapes == nil {
		shapes = []Surface{}
	}
	if err := Validate(shapes); err != nil {
		return nil, err
	}
	return shapes, nil
}

// Validate checks and normalizes a decoded list in place. Records without
// an id get a fresh one.
func Validate(shapes []Surface) error {
	seen := make(map[string]bool, len(shapes))
	for i := range shapes {
		s := &shapes[i]
		if len(s.Points) == 0 {
			return fmt.Errorf("%w: shape %d has no points", ErrInvalidFile, i)
		}
		if s.ID == "" {
			s.ID = typeid.NewSurfaceID()
		}
		if seen[s.ID] {
			return fmt.Errorf("%w: duplicate shape id %q", ErrInvalidFile, s.ID)
		}
		seen[s.ID] = true
		if s.Name == "" {
			s.Name = DefaultName(len(s.Points), i+1)
		}
		s.Normalize()
	}
	return nil
}
