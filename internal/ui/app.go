// Package ui is the fyne desktop host: the editor window with its toolbar
// and panels, and a separate projector output window.
package ui

import (
	"context"
	"log/slog"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"github.com/inamate/projmap/internal/assist"
	"github.com/inamate/projmap/internal/editor"
	"github.com/inamate/projmap/internal/engine"
	"github.com/inamate/projmap/internal/export"
	"github.com/inamate/projmap/internal/media"
	"github.com/inamate/projmap/internal/project"
)

// nudgeStep is the normalized distance an arrow key moves the selection.
const nudgeStep = 0.005

// App wires the project into the desktop windows. Project is required;
// the other services are optional and their actions report an error when
// missing.
type App struct {
	Project  *project.Service
	Media    *media.Cache
	Library  *media.Library
	Camera   *media.Camera
	Assist   *assist.Client
	Recorder *export.Recorder

	Title         string
	Width, Height int
	// projector window and recording size
	OutputWidth, OutputHeight int

	ctx    context.Context
	fyne   fyne.App
	win    fyne.Window
	ctrl   *editor.Controller
	render *engine.Renderer
	view   *SurfaceView

	chrome []fyne.CanvasObject
	status *widget.Label
	mode   *widget.Label
	layers *layerList
	insp   *inspector

	projector     fyne.Window
	projectorView *SurfaceView
}

// Run builds the windows and blocks until the editor window is closed.
func (a *App) Run(ctx context.Context) {
	a.fyne = app.NewWithID("io.inamate.projmap")
	a.build(ctx)
	a.win.ShowAndRun()
	a.closeProjector()
	a.view.Stop()
}

// build creates the editor window and its widgets on a.fyne.
func (a *App) build(ctx context.Context) {
	a.ctx = ctx
	if a.Title == "" {
		a.Title = "Projection Mapper"
	}
	a.win = a.fyne.NewWindow(a.Title)
	a.win.SetMaster()
	if a.Width > 0 && a.Height > 0 {
		a.win.Resize(fyne.NewSize(float32(a.Width), float32(a.Height)))
	}

	a.status = widget.NewLabel("Ready")
	a.mode = widget.NewLabel(editor.ModeIdle.String())
	if a.Camera != nil {
		a.Camera.Notify = a.Notify
	}

	a.ctrl = editor.New(a.Project, max(a.Width, 1), max(a.Height, 1))
	a.render = &engine.Renderer{
		Scene:     a.Project,
		Assets:    a.assets(),
		Overlay:   a.ctrl,
		Authoring: true,
	}
	if a.Camera != nil {
		a.render.Camera = a.Camera
	}
	a.ctrl.OnModeChange = a.modeChanged
	a.view = NewSurfaceView(a.render, a.ctrl)

	a.layers = newLayerList(a)
	a.insp = newInspector(a)
	toolbar := a.newToolbar()
	side := container.NewVSplit(a.layers.object(), a.insp.object())
	side.SetOffset(0.4)
	sideBox := container.NewGridWrap(fyne.NewSize(300, 640), side)
	bottom := container.NewBorder(nil, nil, nil, a.mode, a.status)
	a.chrome = []fyne.CanvasObject{toolbar, sideBox, bottom}

	a.win.SetContent(container.NewBorder(toolbar, bottom, nil, sideBox, a.view))
	a.win.Canvas().SetOnTypedKey(a.typedKey)

	a.Project.OnChange(func() { fyne.Do(a.refresh) })
	a.refresh()
	a.view.Start()
}

// assets returns the media cache as engine.Assets, or nil without one.
func (a *App) assets() engine.Assets {
	if a.Media == nil {
		return nil
	}
	return a.Media
}

// Notify shows a user-facing message in the status bar. It is safe to call
// from any goroutine.
func (a *App) Notify(level, msg string) {
	switch level {
	case "error":
		slog.Error(msg)
	case "warn":
		slog.Warn(msg)
	default:
		slog.Info(msg)
	}
	fyne.Do(func() { a.status.SetText(msg) })
}

// refresh brings the panels and the controller in line with the project.
func (a *App) refresh() {
	if a.Media != nil {
		a.Media.Sync(a.Project.Surfaces())
	}
	a.ctrl.Sync()
	a.layers.refresh()
	a.insp.load()
}

func (a *App) modeChanged(m editor.Mode) {
	a.mode.SetText(m.String())
	projecting := m == editor.ModeProjecting
	a.render.Authoring = !projecting
	for _, o := range a.chrome {
		if projecting {
			o.Hide()
		} else {
			o.Show()
		}
	}
	a.win.SetFullScreen(projecting)
}

// --- Keyboard ---

func (a *App) typedKey(ev *fyne.KeyEvent) {
	c := a.ctrl
	switch ev.Name {
	case fyne.KeyEscape:
		if c.Mode() == editor.ModeProjecting {
			c.ExitProjecting()
		} else {
			c.CancelDrawing()
		}
	case fyne.KeyBackspace:
		c.UndoPoint()
	case fyne.KeyReturn, fyne.KeyEnter:
		if !c.FinishDrawing() && c.Mode() == editor.ModeDrawing {
			a.Notify("info", "A surface needs at least 3 points")
		}
	case fyne.KeyN:
		c.StartDrawing()
	case fyne.KeyP, fyne.KeyF11:
		a.toggleProjecting()
	case fyne.KeyUp:
		c.Nudge(0, -nudgeStep)
	case fyne.KeyDown:
		c.Nudge(0, nudgeStep)
	case fyne.KeyLeft:
		c.Nudge(-nudgeStep, 0)
	case fyne.KeyRight:
		c.Nudge(nudgeStep, 0)
	case fyne.KeyDelete:
		a.deleteSelected()
	case fyne.KeyD:
		a.duplicateSelected()
	}
}

func (a *App) toggleProjecting() {
	if a.ctrl.Mode() == editor.ModeProjecting {
		a.ctrl.ExitProjecting()
	} else {
		a.ctrl.EnterProjecting()
	}
}

func (a *App) deleteSelected() {
	if id := a.Project.Selected(); id != "" {
		a.Project.Delete(id)
	}
}

func (a *App) duplicateSelected() {
	id := a.Project.Selected()
	if id == "" {
		return
	}
	if dup, err := a.Project.Duplicate(id); err == nil {
		a.Project.Select(dup)
	}
}

// --- Projector window ---

// openProjector shows the output-only window, or focuses it when open.
func (a *App) openProjector() {
	if a.projector != nil {
		a.projector.RequestFocus()
		return
	}
	w := a.fyne.NewWindow(a.Title + " - Output")
	if a.OutputWidth > 0 && a.OutputHeight > 0 {
		w.Resize(fyne.NewSize(float32(a.OutputWidth), float32(a.OutputHeight)))
	}
	view := NewSurfaceView(&engine.Renderer{Scene: a.Project, Assets: a.assets()}, nil)
	w.SetContent(view)
	w.Canvas().SetOnTypedKey(func(ev *fyne.KeyEvent) {
		switch ev.Name {
		case fyne.KeyF11, fyne.KeyF:
			w.SetFullScreen(!w.FullScreen())
		case fyne.KeyEscape:
			w.SetFullScreen(false)
		}
	})
	w.SetOnClosed(func() {
		view.Stop()
		a.projector, a.projectorView = nil, nil
		slog.Info("projector window closed")
	})
	a.projector, a.projectorView = w, view
	view.Start()
	w.Show()
	slog.Info("projector window opened")
}

func (a *App) closeProjector() {
	if a.projector != nil {
		a.projector.Close()
	}
}
