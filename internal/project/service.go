// Package project owns the live surface list and selection for one editing
// session, plus its saved versions and file exchange.
package project

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/inamate/projmap/internal/geom"
	"github.com/inamate/projmap/internal/store"
	"github.com/inamate/projmap/internal/surface"
	"github.com/inamate/projmap/internal/typeid"
)

var ErrNotFound = errors.New("surface not found")

// duplicateOffset shifts a duplicated surface so it does not sit exactly on
// top of its original.
const duplicateOffset = 0.02

// Service holds the project state. Points slices are never modified in
// place, so a list returned by Surfaces stays valid while the service
// keeps changing.
type Service struct {
	mu       sync.Mutex
	id       string
	surfaces []surface.Surface
	selected string
	// created counts surfaces ever created, for default names.
	created int

	versions store.Store
	now      func() time.Time

	onChange []func()
}

// NewService creates an empty project. versions may be nil, in which case
// version operations fail.
func NewService(versions store.Store) *Service {
	return &Service{
		id:       typeid.NewProjectID(),
		versions: versions,
		now:      time.Now,
	}
}

// ID returns the project id.
func (s *Service) ID() string { return s.id }

// OnChange registers fn to run after every mutation, outside the lock.
func (s *Service) OnChange(fn func()) {
	s.mu.Lock()
	s.onChange = append(s.onChange, fn)
	s.mu.Unlock()
}

func (s *Service) changed() {
	s.mu.Lock()
	fns := append([]func(){}, s.onChange...)
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// --- Reads ---

// Surfaces returns the ordered list, bottom-most first.
func (s *Service) Surfaces() []surface.Surface {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]surface.Surface(nil), s.surfaces...)
}

// Selected returns the selected surface id, or "".
func (s *Service) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// Get returns a copy of one surface.
func (s *Service) Get(id string) (surface.Surface, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := surface.Find(s.surfaces, id)
	if i < 0 {
		return surface.Surface{}, ErrNotFound
	}
	return s.surfaces[i].Clone(), nil
}

// --- Mutations ---

// Select changes the selection. Unknown ids clear it.
func (s *Service) Select(id string) {
	s.mu.Lock()
	if surface.Find(s.surfaces, id) < 0 {
		id = ""
	}
	same := s.selected == id
	s.selected = id
	s.mu.Unlock()
	if !same {
		s.changed()
	}
}

// CreateSurface adds a closed surface with the default style and name.
func (s *Service) CreateSurface(points []geom.Point) string {
	return s.Add(surface.New("", points))
}

// Add appends a surface on top. Missing ids and names are filled in and
// the style is normalized.
func (s *Service) Add(sf surface.Surface) string {
	sf = sf.Clone()
	s.mu.Lock()
	s.created++
	if sf.ID == "" || surface.Find(s.surfaces, sf.ID) >= 0 {
		sf.ID = typeid.NewSurfaceID()
	}
	if sf.Name == "" {
		sf.Name = surface.DefaultName(len(sf.Points), s.created)
	}
	sf.Normalize()
	s.surfaces = append(s.surfaces, sf)
	s.mu.Unlock()

	s.changed()
	return sf.ID
}

// MovePoint replaces one vertex. The point is clamped into [0,1].
func (s *Service) MovePoint(id string, index int, p geom.Point) {
	s.mu.Lock()
	i := surface.Find(s.surfaces, id)
	if i < 0 || index < 0 || index >= len(s.surfaces[i].Points) {
		s.mu.Unlock()
		return
	}
	pts := append([]geom.Point(nil), s.surfaces[i].Points...)
	pts[index] = geom.ClampPoint(p)
	s.surfaces[i].Points = pts
	s.mu.Unlock()
	s.changed()
}

// Duplicate copies a surface above the original with a fresh id.
func (s *Service) Duplicate(id string) (string, error) {
	s.mu.Lock()
	i := surface.Find(s.surfaces, id)
	if i < 0 {
		s.mu.Unlock()
		return "", ErrNotFound
	}
	dup := s.surfaces[i].Clone()
	dup.ID = typeid.NewSurfaceID()
	dup.Name = dup.Name + " copy"
	for j, p := range dup.Points {
		dup.Points[j] = geom.ClampPoint(geom.Pt(p.X+duplicateOffset, p.Y+duplicateOffset))
	}
	s.created++
	s.surfaces = append(s.surfaces[:i+1], append([]surface.Surface{dup}, s.surfaces[i+1:]...)...)
	s.mu.Unlock()

	s.changed()
	return dup.ID, nil
}

// Delete removes a surface. Deleting the selected surface clears the
// selection.
func (s *Service) Delete(id string) error {
	s.mu.Lock()
	i := surface.Find(s.surfaces, id)
	if i < 0 {
		s.mu.Unlock()
		return ErrNotFound
	}
	s.surfaces = append(s.surfaces[:i:i], s.surfaces[i+1:]...)
	if s.selected == id {
		s.selected = ""
	}
	s.mu.Unlock()

	s.changed()
	return nil
}

// Update applies fn to a copy of the surface and stores the normalized
// result. The id cannot be changed.
func (s *Service) Update(id string, fn func(*surface.Surface)) error {
	s.mu.Lock()
	i := surface.Find(s.surfaces, id)
	if i < 0 {
		s.mu.Unlock()
		return ErrNotFound
	}
	next := s.surfaces[i].Clone()
	fn(&next)
	next.ID = id
	next.Normalize()
	s.surfaces[i] = next
	s.mu.Unlock()

	s.changed()
	return nil
}

// Rename sets a surface's display name.
func (s *Service) Rename(id, name string) error {
	return s.Update(id, func(sf *surface.Surface) { sf.Name = name })
}

// ToggleVisible flips a surface's visibility.
func (s *Service) ToggleVisible(id string) error {
	return s.Update(id, func(sf *surface.Surface) { sf.Visible = !sf.Visible })
}

// SetStyle replaces a surface's style.
func (s *Service) SetStyle(id string, st surface.Style) error {
	return s.Update(id, func(sf *surface.Surface) { sf.Style = st })
}

// Reorder moves a surface delta steps in z-order; positive is towards the
// top. The move is clamped to the list ends.
func (s *Service) Reorder(id string, delta int) error {
	s.mu.Lock()
	i := surface.Find(s.surfaces, id)
	if i < 0 {
		s.mu.Unlock()
		return ErrNotFound
	}
	j := min(max(i+delta, 0), len(s.surfaces)-1)
	if i == j {
		s.mu.Unlock()
		return nil
	}
	sf := s.surfaces[i]
	rest := append(s.surfaces[:i:i], s.surfaces[i+1:]...)
	s.surfaces = append(rest[:j:j], append([]surface.Surface{sf}, rest[j:]...)...)
	s.mu.Unlock()

	s.changed()
	return nil
}

// Clear removes every surface.
func (s *Service) Clear() {
	s.replace(nil)
}

// Replace swaps in a whole list, for example a sample layout.
func (s *Service) Replace(list []surface.Surface) {
	s.replace(surface.CloneAll(list))
}

func (s *Service) replace(list []surface.Surface) {
	s.mu.Lock()
	s.surfaces = list
	if surface.Find(list, s.selected) < 0 {
		s.selected = ""
	}
	if s.created < len(list) {
		s.created = len(list)
	}
	s.mu.Unlock()
	s.changed()
}

// ApplyLayout creates one surface per record through the same path as
// manual drawing, keeping the record's name and style where given.
// Records with fewer than 3 points are skipped. It returns the new ids.
func (s *Service) ApplyLayout(records []surface.Surface) []string {
	var ids []string
	for _, r := range records {
		if len(r.Points) < 3 {
			continue
		}
		sf := surface.New(r.Name, r.Points)
		if r.Style.Color != "" {
			sf.Style.Color = r.Style.Color
		}
		if r.Style.FillType != "" {
			sf.Style = r.Style
		}
		ids = append(ids, s.Add(sf))
	}
	return ids
}

// --- Exchange ---

// Export writes the project file for the live list.
func (s *Service) Export(w io.Writer) error {
	return surface.Encode(w, s.Surfaces(), s.now())
}

// Import replaces the live list with a project file. Nothing changes
// unless the whole file is valid.
func (s *Service) Import(r io.Reader) error {
	list, err := surface.Decode(r)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	s.replace(list)
	slog.Info("project imported", "project", s.id, "surfaces", len(list))
	return nil
}

// --- Versions ---

var errNoStore = errors.New("no version store configured")

// SaveVersion snapshots the live list under name.
func (s *Service) SaveVersion(ctx context.Context, name string) (store.Version, error) {
	if s.versions == nil {
		return store.Version{}, errNoStore
	}
	now := s.now().UTC()
	if name == "" {
		name = now.Format("2006-01-02 15:04:05")
	}
	v := store.Version{
		ID:        typeid.NewVersionID(),
		Name:      name,
		Timestamp: now,
		Shapes:    surface.CloneAll(s.Surfaces()),
	}
	if err := s.versions.Save(ctx, v); err != nil {
		return store.Version{}, fmt.Errorf("save version: %w", err)
	}
	return v, nil
}

// Versions lists saved versions newest first, without the autosave slot.
func (s *Service) Versions(ctx context.Context) ([]store.Version, error) {
	if s.versions == nil {
		return nil, errNoStore
	}
	all, err := s.versions.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	out := all[:0]
	for _, v := range all {
		if v.ID != store.AutosaveID {
			out = append(out, v)
		}
	}
	return out, nil
}

// RestoreVersion replaces the live list with a saved version.
func (s *Service) RestoreVersion(ctx context.Context, id string) error {
	if s.versions == nil {
		return errNoStore
	}
	v, err := s.versions.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("restore version: %w", err)
	}
	s.replace(surface.CloneAll(v.Shapes))
	return nil
}

// DeleteVersion removes a saved version.
func (s *Service) DeleteVersion(ctx context.Context, id string) error {
	if s.versions == nil {
		return errNoStore
	}
	if err := s.versions.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete version: %w", err)
	}
	return nil
}

// Autosave stores the live list in the reserved autosave slot.
func (s *Service) Autosave(ctx context.Context) error {
	if s.versions == nil {
		return errNoStore
	}
	return s.versions.Save(ctx, store.Version{
		ID:        store.AutosaveID,
		Name:      "Autosave",
		Timestamp: s.now().UTC(),
		Shapes:    s.Surfaces(),
	})
}

// LoadAutosave restores the autosave slot. It reports false when there is
// none.
func (s *Service) LoadAutosave(ctx context.Context) (bool, error) {
	err := s.RestoreVersion(ctx, store.AutosaveID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}
