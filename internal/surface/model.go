// Package surface defines the projection surface model and its exchange
// formats. A surface is a polygon in normalized output space plus the
// style used to paint it.
package surface

import (
	"fmt"

	"github.com/inamate/projmap/internal/geom"
	"github.com/inamate/projmap/internal/typeid"
)

type Effect string

const (
	EffectNone    Effect = "none"
	EffectStrobe  Effect = "strobe"
	EffectBreathe Effect = "breathe"
	EffectRainbow Effect = "rainbow"
)

type FillType string

const (
	FillSolid        FillType = "solid"
	FillCheckerboard FillType = "checkerboard"
	FillGrid         FillType = "grid"
	FillVideo        FillType = "video"
	FillImage        FillType = "image"
)

// IsMedia reports whether the fill needs a raster asset.
func (f FillType) IsMedia() bool {
	return f == FillVideo || f == FillImage
}

type MappingMode string

const (
	// MappingMask clips raster content to the shape's bounding box.
	MappingMask MappingMode = "mask"
	// MappingStretch warps raster content onto the shape's vertices.
	MappingStretch MappingMode = "stretch"
)

const (
	MinEffectSpeed     = 1
	MaxEffectSpeed     = 10
	DefaultEffectSpeed = 5
	DefaultColor       = "#00ffcc"
)

type Style struct {
	Color       string      `json:"color"`
	Opacity     float64     `json:"opacity"`
	Effect      Effect      `json:"effect"`
	EffectSpeed float64     `json:"effectSpeed"`
	FillType    FillType    `json:"fillType"`
	MappingMode MappingMode `json:"mappingMode"`
	VideoSrc    string      `json:"videoSrc,omitempty"`
	ImageSrc    string      `json:"imageSrc,omitempty"`
	Muted       bool        `json:"muted,omitempty"`
}

// DefaultStyle is the style given to newly drawn surfaces.
func DefaultStyle() Style {
	return Style{
		Color:       DefaultColor,
		Opacity:     1,
		Effect:      EffectNone,
		EffectSpeed: DefaultEffectSpeed,
		FillType:    FillSolid,
		MappingMode: MappingStretch,
	}
}

// MediaSrc returns the content reference for the active media fill, or ""
// for non-media fills.
func (s Style) MediaSrc() string {
	switch s.FillType {
	case FillVideo:
		return s.VideoSrc
	case FillImage:
		return s.ImageSrc
	}
	return ""
}

type Surface struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Points   []geom.Point `json:"points"`
	IsClosed bool         `json:"isClosed"`
	Visible  bool         `json:"visible"`
	Style    Style        `json:"style"`
}

// New creates a closed, visible surface with a fresh id and the default
// style. Points are clamped into [0,1].
func New(name string, points []geom.Point) Surface {
	s := Surface{
		ID:       typeid.NewSurfaceID(),
		Name:     name,
		Points:   clampAll(points),
		IsClosed: true,
		Visible:  true,
		Style:    DefaultStyle(),
	}
	return s
}

// DefaultName returns "<Type> <ordinal>" for a surface with n points.
func DefaultName(n, ordinal int) string {
	kind := "Polygon"
	switch n {
	case 3:
		kind = "Triangle"
	case 4:
		kind = "Quad"
	}
	return fmt.Sprintf("%s %d", kind, ordinal)
}

// Paintable reports whether the surface has enough points for area fill.
func (s Surface) Paintable() bool {
	return len(s.Points) >= 3
}

// Clone returns a deep copy.
func (s Surface) Clone() Surface {
	out := s
	out.Points = append([]geom.Point(nil), s.Points...)
	return out
}

// CloneAll deep-copies a surface list.
func CloneAll(list []Surface) []Surface {
	if list == nil {
		return nil
	}
	out := make([]Surface, len(list))
	for i, s := range list {
		out[i] = s.Clone()
	}
	return out
}

// Normalize clamps points and fills zero-valued style fields with defaults.
func (s *Surface) Normalize() {
	s.Points = clampAll(s.Points)
	def := DefaultStyle()
	if s.Style.Color == "" {
		s.Style.Color = def.Color
	}
	if s.Style.Effect == "" {
		s.Style.Effect = def.Effect
	}
	if s.Style.FillType == "" {
		s.Style.FillType = def.FillType
	}
	if s.Style.MappingMode == "" {
		s.Style.MappingMode = def.MappingMode
	}
	s.Style.Opacity = geom.Clamp01(s.Style.Opacity)
	s.Style.EffectSpeed = ClampSpeed(s.Style.EffectSpeed)
}

// ClampSpeed maps a speed into [MinEffectSpeed, MaxEffectSpeed]; zero or
// negative means unset and yields DefaultEffectSpeed.
func ClampSpeed(v float64) float64 {
	if v <= 0 {
		return DefaultEffectSpeed
	}
	if v < MinEffectSpeed {
		return MinEffectSpeed
	}
	if v > MaxEffectSpeed {
		return MaxEffectSpeed
	}
	return v
}

func clampAll(points []geom.Point) []geom.Point {
	out := make([]geom.Point, len(points))
	for i, p := range points {
		out[i] = geom.ClampPoint(p)
	}
	return out
}

// Find returns the index of the surface with the given id, or -1.
func Find(list []Surface, id string) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}
