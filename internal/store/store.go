// Package store persists named snapshots (versions) of a surface list.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/inamate/projmap/internal/surface"
)

var ErrNotFound = errors.New("version not found")

// AutosaveID is the reserved version id for the live list saved on exit.
const AutosaveID = "autosave"

// Version is one saved snapshot.
type Version struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Timestamp time.Time         `json:"timestamp"`
	Shapes    []surface.Surface `json:"shapes"`
}

// Store saves and loads versions. Save replaces an existing version with
// the same id. List returns newest first.
type Store interface {
	Save(ctx context.Context, v Version) error
	List(ctx context.Context) ([]Version, error)
	Get(ctx context.Context, id string) (Version, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Kind        string // sqlite, postgres or memory
	SQLitePath  string
	DatabaseURL string
}

// Open returns the backend named by opts.Kind.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Kind {
	case "", "sqlite":
		return openSQLite(ctx, opts.SQLitePath)
	case "postgres":
		p, err := OpenPostgres(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "memory":
		return NewMemory(), nil
	}
	return nil, fmt.Errorf("unknown store %q", opts.Kind)
}

func encodeShapes(shapes []surface.Surface) ([]byte, error) {
	if shapes == nil {
		shapes = []surface.Surface{}
	}
	data, err := json.Marshal(shapes)
	if err != nil {
		return nil, fmt.Errorf("marshal shapes: %w", err)
	}
	return data, nil
}

func decodeShapes(data []byte) ([]surface.Surface, error) {
	shapes, err := surface.DecodeShapes(data)
	if err != nil {
		return nil, fmt.Errorf("decode stored shapes: %w", err)
	}
	return shapes, nil
}
