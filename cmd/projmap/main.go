package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"

	"github.com/inamate/projmap/internal/assist"
	"github.com/inamate/projmap/internal/config"
	"github.com/inamate/projmap/internal/engine"
	"github.com/inamate/projmap/internal/export"
	"github.com/inamate/projmap/internal/media"
	"github.com/inamate/projmap/internal/mirror"
	"github.com/inamate/projmap/internal/project"
	"github.com/inamate/projmap/internal/store"
	"github.com/inamate/projmap/internal/ui"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	versions, err := store.Open(ctx, store.Options{
		Kind:        cfg.Store,
		SQLitePath:  cfg.SQLitePath,
		DatabaseURL: cfg.DatabaseURL,
	})
	if err != nil {
		slog.Error("open store", "error", err, "store", cfg.Store)
		os.Exit(1)
	}
	defer versions.Close()

	svc := project.NewService(versions)
	if ok, err := svc.LoadAutosave(ctx); err != nil {
		slog.Warn("load autosave", "error", err)
	} else if ok {
		slog.Info("autosave restored", "surfaces", len(svc.Surfaces()))
	}

	library := media.NewLibrary(cfg.MediaDir)
	cache := media.NewCache(media.NewOpener(ctx, cfg.FfmpegPath, media.FrameSize, library.Resolve))
	defer cache.Close()

	camera := &media.Camera{
		FFmpegPath: cfg.FfmpegPath,
		Format:     cfg.CameraFormat,
		Device:     cfg.CameraDevice,
		Size:       media.FrameSize,
	}
	defer camera.Stop()

	if cfg.MirrorAddr != "" {
		stop := serveMirror(ctx, cfg, svc, cache, library)
		defer stop()
	}

	app := &ui.App{
		Project: svc,
		Media:   cache,
		Library: library,
		Camera:  camera,
		Assist: &assist.Client{
			BaseURL: cfg.OpenAIBaseURL,
			APIKey:  cfg.OpenAIKey,
			Model:   cfg.OpenAIModel,
		},
		Recorder:     &export.Recorder{FFmpegPath: cfg.FfmpegPath, Assets: cache},
		Width:        cfg.Width,
		Height:       cfg.Height,
		OutputWidth:  cfg.ProjectorWidth,
		OutputHeight: cfg.ProjectorHeight,
	}
	app.Run(ctx)

	saveCtx, saveCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer saveCancel()
	if err := svc.Autosave(saveCtx); err != nil {
		slog.Error("autosave", "error", err)
	} else {
		slog.Info("autosaved", "surfaces", len(svc.Surfaces()))
	}
}

// serveMirror renders the projector output into a websocket stream so
// browsers on the network can act as extra projectors. The returned func
// stops it.
func serveMirror(ctx context.Context, cfg *config.Config, svc *project.Service, assets engine.Assets, library *media.Library) func() {
	stream := mirror.NewStream(cfg.ProjectorWidth, cfg.ProjectorHeight, cfg.Origins())
	go stream.Run(ctx)

	loop := engine.NewLoop(&engine.Renderer{Scene: svc, Assets: assets}, stream)
	loopCtx, stopLoop := context.WithCancel(ctx)
	go loop.Run(loopCtx, engine.NewTicker(cfg.FPS))

	r := mux.NewRouter()
	stream.Routes(r)
	library.Routes(r)
	srv := &http.Server{
		Addr:        cfg.MirrorAddr,
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
	go func() {
		slog.Info("mirror stream starting", "addr", cfg.MirrorAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("mirror server error", "error", err)
		}
	}()

	return func() {
		stopLoop()
		stream.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}
}
