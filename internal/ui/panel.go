package ui

import (
	"fmt"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/inamate/projmap/internal/surface"
)

// --- Layer list ---

type layerList struct {
	app   *App
	items []surface.Surface
	list  *widget.List
	// loading is set while the list follows the project, so selection
	// callbacks are not echoed back.
	loading bool
}

func newLayerList(a *App) *layerList {
	l := &layerList{app: a}
	l.list = widget.NewList(
		func() int { return len(l.items) },
		func() fyne.CanvasObject { return widget.NewLabel("Surface") },
		func(i widget.ListItemID, o fyne.CanvasObject) {
			o.(*widget.Label).SetText(layerLabel(l.items[i]))
		},
	)
	l.list.OnSelected = func(i widget.ListItemID) {
		if l.loading || i >= len(l.items) {
			return
		}
		a.Project.Select(l.items[i].ID)
	}
	return l
}

// layerLabel lists the top-most surface first in the panel text.
func layerLabel(s surface.Surface) string {
	label := fmt.Sprintf("%s  [%s]", s.Name, s.Style.FillType)
	if !s.Visible {
		label += "  (hidden)"
	}
	return label
}

// refresh reloads the list top-most first and mirrors the selection.
func (l *layerList) refresh() {
	list := l.app.Project.Surfaces()
	l.items = l.items[:0]
	for i := len(list) - 1; i >= 0; i-- {
		l.items = append(l.items, list[i])
	}

	l.loading = true
	defer func() { l.loading = false }()
	l.list.Refresh()
	sel := l.app.Project.Selected()
	for i, s := range l.items {
		if s.ID == sel {
			l.list.Select(i)
			return
		}
	}
	l.list.UnselectAll()
}

func (l *layerList) object() fyne.CanvasObject {
	p := l.app.Project
	withSelection := func(fn func(id string)) func() {
		return func() {
			if id := p.Selected(); id != "" {
				fn(id)
			}
		}
	}
	buttons := container.NewHBox(
		widget.NewButtonWithIcon("", theme.MoveUpIcon(), withSelection(func(id string) { p.Reorder(id, 1) })),
		widget.NewButtonWithIcon("", theme.MoveDownIcon(), withSelection(func(id string) { p.Reorder(id, -1) })),
		widget.NewButtonWithIcon("", theme.VisibilityIcon(), withSelection(func(id string) { p.ToggleVisible(id) })),
		widget.NewButtonWithIcon("", theme.ContentCopyIcon(), l.app.duplicateSelected),
		widget.NewButtonWithIcon("", theme.DeleteIcon(), l.app.deleteSelected),
	)
	return container.NewBorder(widget.NewLabel("Surfaces"), buttons, nil, nil, l.list)
}

// --- Inspector ---

var (
	fillOptions = []string{
		string(surface.FillSolid),
		string(surface.FillCheckerboard),
		string(surface.FillGrid),
		string(surface.FillVideo),
		string(surface.FillImage),
	}
	mappingOptions = []string{string(surface.MappingMask), string(surface.MappingStretch)}
	effectOptions  = []string{
		string(surface.EffectNone),
		string(surface.EffectStrobe),
		string(surface.EffectBreathe),
		string(surface.EffectRainbow),
	}
)

// inspector edits the selected surface.
type inspector struct {
	app *App
	id  string

	name    *widget.Entry
	visible *widget.Check
	fill    *widget.Select
	mapping *widget.Select
	effect  *widget.Select
	speed   *widget.Slider
	opacity *widget.Slider
	color   *widget.Entry
	src     *widget.Entry
	browse  *widget.Button

	fields  []fyne.Disableable
	loading bool
	// last loaded text per entry; an entry is only overwritten when the
	// model value changes, so typing survives unrelated updates
	loaded map[*widget.Entry]string
}

func newInspector(a *App) *inspector {
	in := &inspector{app: a}

	in.name = widget.NewEntry()
	in.name.OnSubmitted = func(s string) {
		in.edit(func(sf *surface.Surface) { sf.Name = strings.TrimSpace(s) })
	}
	in.visible = widget.NewCheck("Visible", func(v bool) {
		in.edit(func(sf *surface.Surface) { sf.Visible = v })
	})
	in.fill = widget.NewSelect(fillOptions, func(v string) {
		in.edit(func(sf *surface.Surface) { sf.Style.FillType = surface.FillType(v) })
	})
	in.mapping = widget.NewSelect(mappingOptions, func(v string) {
		in.edit(func(sf *surface.Surface) { sf.Style.MappingMode = surface.MappingMode(v) })
	})
	in.effect = widget.NewSelect(effectOptions, func(v string) {
		in.edit(func(sf *surface.Surface) { sf.Style.Effect = surface.Effect(v) })
	})
	in.speed = widget.NewSlider(surface.MinEffectSpeed, surface.MaxEffectSpeed)
	in.speed.Step = 1
	in.speed.OnChanged = func(v float64) {
		in.edit(func(sf *surface.Surface) { sf.Style.EffectSpeed = v })
	}
	in.opacity = widget.NewSlider(0, 1)
	in.opacity.Step = 0.05
	in.opacity.OnChanged = func(v float64) {
		in.edit(func(sf *surface.Surface) { sf.Style.Opacity = v })
	}
	in.color = widget.NewEntry()
	in.color.SetPlaceHolder(surface.DefaultColor)
	in.color.Validator = validateColor
	in.color.OnSubmitted = func(v string) {
		if validateColor(v) != nil {
			return
		}
		in.edit(func(sf *surface.Surface) { sf.Style.Color = strings.ToLower(v) })
	}
	in.src = widget.NewEntry()
	in.src.SetPlaceHolder("file path or /media/ url")
	in.src.OnSubmitted = func(v string) { in.setSrc(strings.TrimSpace(v)) }
	in.browse = widget.NewButtonWithIcon("", theme.FolderOpenIcon(), in.chooseMedia)

	in.fields = []fyne.Disableable{
		in.name, in.visible, in.fill, in.mapping, in.effect, in.color, in.src, in.browse,
	}
	return in
}

func (in *inspector) object() fyne.CanvasObject {
	form := widget.NewForm(
		widget.NewFormItem("Name", in.name),
		widget.NewFormItem("", in.visible),
		widget.NewFormItem("Fill", in.fill),
		widget.NewFormItem("Mapping", in.mapping),
		widget.NewFormItem("Effect", in.effect),
		widget.NewFormItem("Speed", in.speed),
		widget.NewFormItem("Opacity", in.opacity),
		widget.NewFormItem("Color", in.color),
		widget.NewFormItem("Media", container.NewBorder(nil, nil, nil, in.browse, in.src)),
	)
	return container.NewVScroll(container.NewVBox(widget.NewLabel("Inspector"), form))
}

// load shows the current selection, or disables the fields without one.
func (in *inspector) load() {
	in.loading = true
	defer func() { in.loading = false }()

	sf, err := in.app.Project.Get(in.app.Project.Selected())
	if err != nil {
		in.id = ""
		for _, f := range in.fields {
			f.Disable()
		}
		return
	}
	if sf.ID != in.id {
		in.loaded = make(map[*widget.Entry]string)
	}
	in.id = sf.ID
	for _, f := range in.fields {
		f.Enable()
	}
	st := sf.Style
	in.setText(in.name, sf.Name)
	in.setText(in.color, st.Color)
	in.setText(in.src, st.MediaSrc())
	in.visible.SetChecked(sf.Visible)
	in.fill.SetSelected(string(st.FillType))
	in.mapping.SetSelected(string(st.MappingMode))
	in.effect.SetSelected(string(st.Effect))
	in.speed.SetValue(st.EffectSpeed)
	in.opacity.SetValue(st.Opacity)
	if !st.FillType.IsMedia() {
		in.src.Disable()
		in.browse.Disable()
	}
}

func (in *inspector) setText(e *widget.Entry, v string) {
	if last, ok := in.loaded[e]; ok && last == v {
		return
	}
	e.SetText(v)
	in.loaded[e] = v
}

func (in *inspector) edit(fn func(*surface.Surface)) {
	if in.loading || in.id == "" {
		return
	}
	if err := in.app.Project.Update(in.id, fn); err != nil {
		in.app.Notify("warn", "Surface no longer exists")
	}
}

// setSrc stores v as the content reference of the active media fill.
func (in *inspector) setSrc(v string) {
	in.edit(func(sf *surface.Surface) {
		switch sf.Style.FillType {
		case surface.FillVideo:
			sf.Style.VideoSrc = v
		case surface.FillImage:
			sf.Style.ImageSrc = v
		}
	})
}

// chooseMedia copies a picked file into the media library and uses it as
// the fill source.
func (in *inspector) chooseMedia() {
	a := in.app
	if a.Library == nil {
		a.Notify("error", "No media library configured")
		return
	}
	dialog.ShowFileOpen(func(r fyne.URIReadCloser, err error) {
		if err != nil {
			a.Notify("error", "Open failed: "+err.Error())
			return
		}
		if r == nil {
			return
		}
		defer r.Close()
		src, err := a.Library.Import(r, r.URI().Name())
		if err != nil {
			a.Notify("error", err.Error())
			return
		}
		in.setSrc(src)
		a.Notify("info", "Loaded "+r.URI().Name())
	}, a.win)
}

func validateColor(v string) error {
	if len(v) != 7 || v[0] != '#' {
		return fmt.Errorf("use #rrggbb")
	}
	for _, c := range strings.ToLower(v[1:]) {
		if !strings.ContainsRune("0123456789abcdef", c) {
			return fmt.Errorf("use #rrggbb")
		}
	}
	return nil
}
