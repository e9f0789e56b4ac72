//go:build js && wasm

package main

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"log/slog"
	"os"
	"strings"
	"syscall/js"
	"time"

	"github.com/inamate/projmap/internal/assist"
	"github.com/inamate/projmap/internal/editor"
	"github.com/inamate/projmap/internal/engine"
	"github.com/inamate/projmap/internal/geom"
	"github.com/inamate/projmap/internal/media"
	"github.com/inamate/projmap/internal/project"
	"github.com/inamate/projmap/internal/store"
	"github.com/inamate/projmap/internal/surface"
)

const versionsKey = "projmap.versions"

var (
	api    js.Value
	svc    *project.Service
	ctrl   *editor.Controller
	render *engine.Renderer
	loop   *engine.Loop
	target = &frameTarget{w: 1280, h: 720}
)

// frameTarget keeps the last rendered frame for tick to copy out.
type frameTarget struct {
	w, h int
	img  *image.RGBA
}

func (t *frameTarget) Size() (int, int)        { return t.w, t.h }
func (t *frameTarget) Present(img *image.RGBA) { t.img = img }

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	versions := newLocalStore(versionsKey)
	svc = project.NewService(versions)
	cache := media.NewCache(openBrowserMedia)

	ctrl = editor.New(svc, target.w, target.h)
	render = &engine.Renderer{Scene: svc, Assets: cache, Overlay: ctrl, Authoring: true}
	loop = engine.NewLoop(render, target)

	ctrl.OnModeChange = func(m editor.Mode) {
		render.Authoring = m != editor.ModeProjecting
		emit("onModeChange", m.String())
	}
	svc.OnChange(func() {
		cache.Sync(svc.Surfaces())
		ctrl.Sync()
		emit("onChange")
	})
	if ok, err := svc.LoadAutosave(context.Background()); err != nil {
		slog.Warn("load autosave", "error", err)
	} else if !ok {
		svc.Replace(surface.NewSampleLayout())
	}

	api = js.Global().Get("Object").New()

	// --- Input ---
	api.Set("resize", js.FuncOf(resize))
	api.Set("pointerDown", js.FuncOf(pointer(ctrl.PointerDown)))
	api.Set("pointerMove", js.FuncOf(pointer(ctrl.PointerMove)))
	api.Set("pointerUp", js.FuncOf(pointer(ctrl.PointerUp)))
	api.Set("pointerLeave", js.FuncOf(pointerLeave))
	api.Set("setMode", js.FuncOf(setMode))
	api.Set("undoPoint", js.FuncOf(undoPoint))
	api.Set("finishDrawing", js.FuncOf(finishDrawing))
	api.Set("nudge", js.FuncOf(nudge))

	// --- Rendering ---
	api.Set("tick", js.FuncOf(tick))

	// --- Surfaces ---
	api.Set("getSurfaces", js.FuncOf(getSurfaces))
	api.Set("getState", js.FuncOf(getState))
	api.Set("select", js.FuncOf(selectSurface))
	api.Set("deleteSurface", js.FuncOf(withID(svc.Delete)))
	api.Set("toggleVisible", js.FuncOf(withID(svc.ToggleVisible)))
	api.Set("duplicateSurface", js.FuncOf(duplicateSurface))
	api.Set("renameSurface", js.FuncOf(renameSurface))
	api.Set("reorderSurface", js.FuncOf(reorderSurface))
	api.Set("updateStyle", js.FuncOf(updateStyle))
	api.Set("loadSample", js.FuncOf(loadSample))
	api.Set("clear", js.FuncOf(clearAll))
	api.Set("applyLayout", js.FuncOf(applyLayout))

	// --- Files and versions ---
	api.Set("exportFile", js.FuncOf(exportFile))
	api.Set("importFile", js.FuncOf(importFile))
	api.Set("saveVersion", js.FuncOf(saveVersion))
	api.Set("listVersions", js.FuncOf(listVersions))
	api.Set("restoreVersion", js.FuncOf(restoreVersion))
	api.Set("deleteVersion", js.FuncOf(deleteVersion))
	api.Set("autosave", js.FuncOf(autosave))

	js.Global().Set("projmap", api)
	js.Global().Set("projmapWasmReady", js.ValueOf(true))

	// Keep Go runtime alive
	select {}
}

// openBrowserMedia decodes image fills (data URLs) in process. Video needs
// ffmpeg and is left to the placeholder.
func openBrowserMedia(s surface.Surface) (media.Source, error) {
	if s.Style.FillType != surface.FillImage {
		return nil, errors.New("video fills are not supported in the browser build")
	}
	return media.OpenImage(s.Style.ImageSrc), nil
}

// emit calls api[name] when the page has set it to a function.
func emit(name string, args ...any) {
	if api.IsUndefined() {
		return
	}
	if fn := api.Get(name); fn.Type() == js.TypeFunction {
		fn.Invoke(args...)
	}
}

func notify(level, msg string) {
	js.Global().Get("console").Call(consoleMethod(level), msg)
	emit("onNotify", level, msg)
}

func consoleMethod(level string) string {
	switch level {
	case "error":
		return "error"
	case "warn":
		return "warn"
	}
	return "log"
}

func okResult() any {
	return js.ValueOf(map[string]interface{}{"ok": true})
}

func errResult(err error) any {
	return js.ValueOf(map[string]interface{}{"error": err.Error()})
}

// --- Input handlers ---

func resize(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return nil
	}
	w, h := args[0].Int(), args[1].Int()
	if w <= 0 || h <= 0 {
		return nil
	}
	target.w, target.h = w, h
	ctrl.Resize(w, h)
	return nil
}

func pointer(fn func(geom.Point)) func(js.Value, []js.Value) interface{} {
	return func(this js.Value, args []js.Value) interface{} {
		if len(args) < 2 {
			return nil
		}
		fn(geom.Pt(args[0].Float(), args[1].Float()))
		return nil
	}
}

func pointerLeave(this js.Value, args []js.Value) interface{} {
	ctrl.PointerLeave()
	return nil
}

// setMode switches to "drawing", "projecting" or back to editing/idle.
func setMode(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	switch args[0].String() {
	case "drawing":
		ctrl.StartDrawing()
	case "projecting":
		ctrl.EnterProjecting()
	default:
		ctrl.ExitProjecting()
		ctrl.CancelDrawing()
	}
	return js.ValueOf(ctrl.Mode().String())
}

func undoPoint(this js.Value, args []js.Value) interface{} {
	ctrl.UndoPoint()
	return nil
}

func finishDrawing(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(ctrl.FinishDrawing())
}

func nudge(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return nil
	}
	ctrl.Nudge(args[0].Float(), args[1].Float())
	return nil
}

// --- Rendering ---

// tick renders the frame for a requestAnimationFrame timestamp (ms) and,
// when given a Uint8ClampedArray of the right size, copies the RGBA pixels
// into it.
func tick(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	ms := args[0].Float()
	loop.Step(time.UnixMilli(0).Add(time.Duration(ms * float64(time.Millisecond))))

	res := map[string]interface{}{"width": target.w, "height": target.h}
	if len(args) > 1 && target.img != nil {
		dst := args[1]
		if dst.Get("length").Int() != len(target.img.Pix) {
			res["error"] = "pixel buffer size mismatch"
			return js.ValueOf(res)
		}
		js.CopyBytesToJS(dst, target.img.Pix)
	}
	return js.ValueOf(res)
}

// --- Surfaces ---

func getSurfaces(this js.Value, args []js.Value) interface{} {
	data, err := json.Marshal(svc.Surfaces())
	if err != nil {
		return js.ValueOf("[]")
	}
	return js.ValueOf(string(data))
}

func getState(this js.Value, args []js.Value) interface{} {
	stats := loop.Stats()
	return js.ValueOf(map[string]interface{}{
		"mode":        ctrl.Mode().String(),
		"selected":    svc.Selected(),
		"points":      len(ctrl.Buffer()),
		"frames":      int(stats.Frames),
		"frameMillis": float64(stats.LastFrame) / float64(time.Millisecond),
	})
}

func selectSurface(this js.Value, args []js.Value) interface{} {
	id := ""
	if len(args) > 0 && args[0].Type() == js.TypeString {
		id = args[0].String()
	}
	svc.Select(id)
	return nil
}

func withID(fn func(id string) error) func(js.Value, []js.Value) interface{} {
	return func(this js.Value, args []js.Value) interface{} {
		if len(args) < 1 {
			return errResult(errors.New("missing surface id"))
		}
		if err := fn(args[0].String()); err != nil {
			return errResult(err)
		}
		return okResult()
	}
}

func duplicateSurface(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errResult(errors.New("missing surface id"))
	}
	id, err := svc.Duplicate(args[0].String())
	if err != nil {
		return errResult(err)
	}
	svc.Select(id)
	return js.ValueOf(map[string]interface{}{"id": id})
}

func renameSurface(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return errResult(errors.New("missing surface id or name"))
	}
	if err := svc.Rename(args[0].String(), strings.TrimSpace(args[1].String())); err != nil {
		return errResult(err)
	}
	return okResult()
}

func reorderSurface(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return errResult(errors.New("missing surface id or delta"))
	}
	if err := svc.Reorder(args[0].String(), args[1].Int()); err != nil {
		return errResult(err)
	}
	return okResult()
}

// updateStyle merges a partial style JSON object onto a surface's style.
func updateStyle(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return errResult(errors.New("missing surface id or style"))
	}
	var decodeErr error
	err := svc.Update(args[0].String(), func(sf *surface.Surface) {
		next := sf.Style
		if decodeErr = json.Unmarshal([]byte(args[1].String()), &next); decodeErr == nil {
			sf.Style = next
		}
	})
	if err = errors.Join(err, decodeErr); err != nil {
		return errResult(err)
	}
	return okResult()
}

func loadSample(this js.Value, args []js.Value) interface{} {
	ctrl.CancelDrawing()
	svc.Replace(surface.NewSampleLayout())
	return nil
}

func clearAll(this js.Value, args []js.Value) interface{} {
	ctrl.CancelDrawing()
	svc.Clear()
	return nil
}

// applyLayout adds the shapes from an assistant reply (the model's raw
// JSON content) as one batch.
func applyLayout(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errResult(errors.New("missing layout JSON"))
	}
	shapes, err := assist.ParseLayout(args[0].String())
	if err != nil {
		notify("error", "AI layout failed: "+err.Error())
		return errResult(err)
	}
	ids := svc.ApplyLayout(shapes)
	out := make([]interface{}, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return js.ValueOf(map[string]interface{}{"ids": out})
}

// --- Files and versions ---

func exportFile(this js.Value, args []js.Value) interface{} {
	var b strings.Builder
	if err := svc.Export(&b); err != nil {
		return errResult(err)
	}
	return js.ValueOf(b.String())
}

func importFile(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errResult(errors.New("missing project JSON"))
	}
	if err := svc.Import(strings.NewReader(args[0].String())); err != nil {
		notify("error", "Import failed: "+err.Error())
		return errResult(err)
	}
	return okResult()
}

func saveVersion(this js.Value, args []js.Value) interface{} {
	name := ""
	if len(args) > 0 && args[0].Type() == js.TypeString {
		name = args[0].String()
	}
	v, err := svc.SaveVersion(context.Background(), name)
	if err != nil {
		return errResult(err)
	}
	return js.ValueOf(map[string]interface{}{"id": v.ID, "name": v.Name})
}

func listVersions(this js.Value, args []js.Value) interface{} {
	list, err := svc.Versions(context.Background())
	if err != nil {
		return js.ValueOf("[]")
	}
	data, err := json.Marshal(list)
	if err != nil {
		return js.ValueOf("[]")
	}
	return js.ValueOf(string(data))
}

func restoreVersion(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errResult(errors.New("missing version id"))
	}
	if err := svc.RestoreVersion(context.Background(), args[0].String()); err != nil {
		notify("error", "Restore failed: "+err.Error())
		return errResult(err)
	}
	return okResult()
}

func deleteVersion(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errResult(errors.New("missing version id"))
	}
	if err := svc.DeleteVersion(context.Background(), args[0].String()); err != nil {
		return errResult(err)
	}
	return okResult()
}

func autosave(this js.Value, args []js.Value) interface{} {
	if err := svc.Autosave(context.Background()); err != nil {
		return errResult(err)
	}
	return okResult()
}

// --- localStorage versions ---

// localStore keeps versions in memory and mirrors them to localStorage.
type localStore struct {
	*store.Memory
	key string
}

func newLocalStore(key string) *localStore {
	l := &localStore{Memory: store.NewMemory(), key: key}
	item := js.Global().Get("localStorage").Call("getItem", key)
	if item.Type() != js.TypeString {
		return l
	}
	var list []store.Version
	if err := json.Unmarshal([]byte(item.String()), &list); err != nil {
		slog.Warn("discarding stored versions", "error", err)
		return l
	}
	for _, v := range list {
		l.Memory.Save(context.Background(), v)
	}
	return l
}

func (l *localStore) Save(ctx context.Context, v store.Version) error {
	if err := l.Memory.Save(ctx, v); err != nil {
		return err
	}
	return l.persist(ctx)
}

func (l *localStore) Delete(ctx context.Context, id string) error {
	if err := l.Memory.Delete(ctx, id); err != nil {
		return err
	}
	return l.persist(ctx)
}

func (l *localStore) persist(ctx context.Context) error {
	list, err := l.Memory.List(ctx)
	if err != nil {
		return err
	}
	data, err := json.Marshal(list)
	if err != nil {
		return err
	}
	js.Global().Get("localStorage").Call("setItem", l.key, string(data))
	return nil
}
