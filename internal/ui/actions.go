package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/inamate/projmap/internal/assist"
	"github.com/inamate/projmap/internal/export"
	"github.com/inamate/projmap/internal/store"
	"github.com/inamate/projmap/internal/surface"
)

const (
	storeTimeout  = 10 * time.Second
	assistTimeout = 60 * time.Second
	exportTimeout = 15 * time.Minute
)

func (a *App) newToolbar() fyne.CanvasObject {
	c := a.ctrl
	tb := widget.NewToolbar(
		widget.NewToolbarAction(theme.ContentAddIcon(), c.StartDrawing),
		widget.NewToolbarAction(theme.ContentUndoIcon(), c.UndoPoint),
		widget.NewToolbarAction(theme.CancelIcon(), c.CancelDrawing),
		widget.NewToolbarAction(theme.ConfirmIcon(), func() { c.FinishDrawing() }),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.ComputerIcon(), a.openProjector),
		widget.NewToolbarAction(theme.ViewFullScreenIcon(), a.toggleProjecting),
		widget.NewToolbarAction(theme.MediaVideoIcon(), a.toggleCamera),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.DocumentSaveIcon(), a.saveVersion),
		widget.NewToolbarAction(theme.HistoryIcon(), a.showVersions),
		widget.NewToolbarAction(theme.FolderOpenIcon(), a.importProject),
		widget.NewToolbarAction(theme.DownloadIcon(), a.exportProject),
		widget.NewToolbarAction(theme.MediaRecordIcon(), a.exportVideo),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.GridIcon(), a.loadSample),
		widget.NewToolbarAction(theme.ContentClearIcon(), a.clearAll),
	)
	return container.NewHBox(
		tb,
		widget.NewSeparator(),
		widget.NewButton("AI Layout", a.showAssistant),
		layout.NewSpacer(),
	)
}

// --- Camera ---

func (a *App) toggleCamera() {
	if a.Camera == nil {
		a.Notify("error", "Camera unavailable")
		return
	}
	if a.Camera.Running() {
		a.Camera.Stop()
		a.Notify("info", "Camera off")
		return
	}
	go func() {
		if err := a.Camera.Start(a.ctx); err == nil {
			a.Notify("info", "Camera on")
		}
	}()
}

// --- Versions ---

func (a *App) saveVersion() {
	name := widget.NewEntry()
	name.SetPlaceHolder("defaults to the current time")
	dialog.ShowForm("Save version", "Save", "Cancel", []*widget.FormItem{
		widget.NewFormItem("Name", name),
	}, func(ok bool) {
		if !ok {
			return
		}
		ctx, cancel := context.WithTimeout(a.ctx, storeTimeout)
		defer cancel()
		v, err := a.Project.SaveVersion(ctx, name.Text)
		if err != nil {
			a.Notify("error", "Save failed: "+err.Error())
			return
		}
		a.Notify("info", fmt.Sprintf("Saved version %q (%d surfaces)", v.Name, len(v.Shapes)))
	}, a.win)
}

func (a *App) showVersions() {
	ctx, cancel := context.WithTimeout(a.ctx, storeTimeout)
	defer cancel()
	versions, err := a.Project.Versions(ctx)
	if err != nil {
		a.Notify("error", "Could not list versions: "+err.Error())
		return
	}
	if len(versions) == 0 {
		dialog.ShowInformation("Versions", "No saved versions yet.", a.win)
		return
	}

	var d dialog.Dialog
	selected := -1
	list := widget.NewList(
		func() int { return len(versions) },
		func() fyne.CanvasObject { return widget.NewLabel("version") },
		func(i widget.ListItemID, o fyne.CanvasObject) {
			o.(*widget.Label).SetText(versionLabel(versions[i]))
		},
	)
	list.OnSelected = func(i widget.ListItemID) { selected = i }

	restore := widget.NewButtonWithIcon("Restore", theme.HistoryIcon(), func() {
		if selected < 0 {
			return
		}
		v := versions[selected]
		ctx, cancel := context.WithTimeout(a.ctx, storeTimeout)
		defer cancel()
		if err := a.Project.RestoreVersion(ctx, v.ID); err != nil {
			a.Notify("error", "Restore failed: "+err.Error())
			return
		}
		a.Notify("info", "Restored "+v.Name)
		d.Hide()
	})
	remove := widget.NewButtonWithIcon("Delete", theme.DeleteIcon(), func() {
		if selected < 0 {
			return
		}
		v := versions[selected]
		ctx, cancel := context.WithTimeout(a.ctx, storeTimeout)
		defer cancel()
		if err := a.Project.DeleteVersion(ctx, v.ID); err != nil {
			a.Notify("error", "Delete failed: "+err.Error())
			return
		}
		versions = append(versions[:selected:selected], versions[selected+1:]...)
		selected = -1
		list.UnselectAll()
		list.Refresh()
	})

	content := container.NewBorder(nil, container.NewHBox(layout.NewSpacer(), remove, restore), nil, nil, list)
	d = dialog.NewCustom("Versions", "Close", container.NewGridWrap(fyne.NewSize(420, 320), content), a.win)
	d.Show()
}

func versionLabel(v store.Version) string {
	return fmt.Sprintf("%s  (%d surfaces, %s)", v.Name, len(v.Shapes), v.Timestamp.Local().Format("Jan 2 15:04"))
}

// --- Project file ---

func (a *App) importProject() {
	dialog.ShowFileOpen(func(r fyne.URIReadCloser, err error) {
		if err != nil {
			a.Notify("error", "Open failed: "+err.Error())
			return
		}
		if r == nil {
			return
		}
		defer r.Close()
		if err := a.Project.Import(r); err != nil {
			a.Notify("error", "Import failed: "+err.Error())
			return
		}
		a.Notify("info", "Imported "+r.URI().Name())
	}, a.win)
}

func (a *App) exportProject() {
	d := dialog.NewFileSave(func(w fyne.URIWriteCloser, err error) {
		if err != nil {
			a.Notify("error", "Save failed: "+err.Error())
			return
		}
		if w == nil {
			return
		}
		err = a.Project.Export(w)
		if cerr := w.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			a.Notify("error", "Export failed: "+err.Error())
			return
		}
		a.Notify("info", "Exported "+w.URI().Name())
	}, a.win)
	d.SetFileName("projection-mapping.json")
	d.Show()
}

// --- Video export ---

func (a *App) exportVideo() {
	if a.Recorder == nil {
		a.Notify("error", "Video export unavailable")
		return
	}
	format := widget.NewSelect([]string{string(export.FormatMP4), string(export.FormatWebM), string(export.FormatGIF)}, nil)
	format.SetSelected(string(export.FormatMP4))
	fps := widget.NewEntry()
	fps.SetText("24")
	seconds := widget.NewEntry()
	seconds.SetText("5")

	dialog.ShowForm("Export video", "Next", "Cancel", []*widget.FormItem{
		widget.NewFormItem("Format", format),
		widget.NewFormItem("FPS", fps),
		widget.NewFormItem("Seconds", seconds),
	}, func(ok bool) {
		if !ok {
			return
		}
		rate, err1 := strconv.Atoi(fps.Text)
		secs, err2 := strconv.ParseFloat(seconds.Text, 64)
		if err := errors.Join(err1, err2); err != nil {
			a.Notify("error", "Export failed: fps and seconds must be numbers")
			return
		}
		opts := export.Options{
			Format:   export.Format(format.Selected),
			FPS:      rate,
			Duration: time.Duration(secs * float64(time.Second)),
			W:        a.OutputWidth,
			H:        a.OutputHeight,
		}
		save := dialog.NewFileSave(func(w fyne.URIWriteCloser, err error) {
			if err != nil {
				a.Notify("error", "Save failed: "+err.Error())
				return
			}
			if w != nil {
				go a.record(w, opts)
			}
		}, a.win)
		save.SetFileName("projection." + format.Selected)
		save.Show()
	}, a.win)
}

// record renders and encodes opts into w. It runs off the UI thread.
func (a *App) record(w fyne.URIWriteCloser, opts export.Options) {
	defer w.Close()
	a.Notify("info", fmt.Sprintf("Recording %d frames...", opts.Frames()))

	ctx, cancel := context.WithTimeout(a.ctx, exportTimeout)
	defer cancel()
	out, err := a.Recorder.Record(ctx, a.Project, opts)
	if err != nil {
		a.Notify("error", "Export failed: "+err.Error())
		return
	}
	defer out.Close()

	f, err := os.Open(out.Path)
	if err != nil {
		a.Notify("error", "Export failed: "+err.Error())
		return
	}
	defer f.Close()
	if _, err := io.Copy(w, f); err != nil {
		a.Notify("error", "Export failed: "+err.Error())
		return
	}
	a.Notify("info", "Exported "+w.URI().Name())
}

// --- Layouts ---

func (a *App) loadSample() {
	a.ctrl.CancelDrawing()
	a.Project.Replace(surface.NewSampleLayout())
	a.Notify("info", "Loaded sample layout")
}

func (a *App) clearAll() {
	dialog.ShowConfirm("Clear", "Remove every surface?", func(ok bool) {
		if ok {
			a.ctrl.CancelDrawing()
			a.Project.Clear()
		}
	}, a.win)
}

func (a *App) showAssistant() {
	if a.Assist == nil {
		a.Notify("error", "AI assistant unavailable")
		return
	}
	prompt := widget.NewMultiLineEntry()
	prompt.SetPlaceHolder("e.g. three triangles across the top of a stage")
	prompt.SetMinRowsVisible(3)
	count := widget.NewEntry()
	count.SetPlaceHolder("any")

	dialog.ShowForm("AI layout", "Generate", "Cancel", []*widget.FormItem{
		widget.NewFormItem("Describe", prompt),
		widget.NewFormItem("Shapes", count),
	}, func(ok bool) {
		if !ok {
			return
		}
		n, _ := strconv.Atoi(count.Text)
		req := assist.Request{Prompt: prompt.Text, Count: n}
		a.Notify("info", "Generating layout...")
		go a.generate(req)
	}, a.win)
}

// generate asks the assistant for shapes and adds them as one batch.
func (a *App) generate(req assist.Request) {
	ctx, cancel := context.WithTimeout(a.ctx, assistTimeout)
	defer cancel()
	res, err := a.Assist.Generate(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, assist.ErrNoCredentials):
			a.Notify("error", "Set OPENAI_API_KEY to use the AI assistant")
		default:
			a.Notify("error", "AI layout failed: "+err.Error())
		}
		return
	}
	fyne.Do(func() {
		ids := a.Project.ApplyLayout(res.Shapes)
		slog.Info("ai layout applied", "layout", res.ID, "model", res.Model, "surfaces", len(ids))
		a.Notify("info", fmt.Sprintf("Added %d surfaces", len(ids)))
	})
}
