// Package typeid issues the prefixed, sortable ids used for projects,
// surfaces, versions and media files.
package typeid

import (
	"fmt"

	"go.jetify.com/typeid/v2"
)

const (
	PrefixProject = "proj"
	PrefixSurface = "surf"
	PrefixVersion = "snap"
	PrefixLayout  = "lay"
	PrefixAsset   = "asset"
)

func New(prefix string) string {
	id := typeid.MustGenerate(prefix)
	return id.String()
}

func NewProjectID() string { return New(PrefixProject) }
func NewSurfaceID() string { return New(PrefixSurface) }
func NewVersionID() string { return New(PrefixVersion) }
func NewLayoutID() string  { return New(PrefixLayout) }
func NewAssetID() string   { return New(PrefixAsset) }

// Validate checks that id parses and carries prefix.
func Validate(id, prefix string) error {
	tid, err := typeid.Parse(id)
	if err != nil {
		return fmt.Errorf("parse id %q: %w", id, err)
	}
	if got := tid.Prefix(); got != prefix {
		return fmt.Errorf("id %q has prefix %q, want %q", id, got, prefix)
	}
	return nil
}
