package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/inamate/projmap/internal/assist"
	"github.com/inamate/projmap/internal/config"
	"github.com/inamate/projmap/internal/engine"
	"github.com/inamate/projmap/internal/export"
	"github.com/inamate/projmap/internal/media"
	mw "github.com/inamate/projmap/internal/middleware"
	"github.com/inamate/projmap/internal/mirror"
	"github.com/inamate/projmap/internal/project"
	"github.com/inamate/projmap/internal/store"
	"github.com/inamate/projmap/internal/surface"
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
	if ok, err := svc.LoadAutosave(ctx); err != nil || !ok {
		if err != nil {
			slog.Warn("load autosave", "error", err)
		}
		svc.Replace(surface.NewSampleLayout())
	}
	slog.Info("project loaded", "project", svc.ID(), "surfaces", len(svc.Surfaces()))

	library := media.NewLibrary(cfg.MediaDir)
	cache := media.NewCache(media.NewOpener(ctx, cfg.FfmpegPath, media.FrameSize, library.Resolve))
	defer cache.Close()
	svc.OnChange(func() { cache.Sync(svc.Surfaces()) })

	// Projector output, rendered continuously into the websocket stream
	stream := mirror.NewStream(cfg.ProjectorWidth, cfg.ProjectorHeight, cfg.Origins())
	go stream.Run(ctx)
	loop := engine.NewLoop(&engine.Renderer{Scene: svc, Assets: cache}, stream)
	go loop.Run(ctx, engine.NewTicker(cfg.FPS))

	assistant := &assist.Client{BaseURL: cfg.OpenAIBaseURL, APIKey: cfg.OpenAIKey, Model: cfg.OpenAIModel}
	recorder := &export.Recorder{FFmpegPath: cfg.FfmpegPath, Assets: cache}

	r := mux.NewRouter()

	// Global middleware
	r.Use(mw.Recovery)
	r.Use(mw.Logger)

	api := r.PathPrefix("/api").Subrouter()
	project.NewHandler(svc).Routes(api)
	assist.NewHandler(assistant, svc.ApplyLayout).Routes(api)

	export.NewHandler(recorder, svc, cfg.ProjectorWidth, cfg.ProjectorHeight).Routes(r)
	library.Routes(r)
	stream.Routes(r)

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      mw.CORS(cfg.Origins())(r),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down server")
		cancel()
		stream.Close()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("server starting", "addr", cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	saveCtx, saveCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer saveCancel()
	if err := svc.Autosave(saveCtx); err != nil {
		slog.Error("autosave", "error", err)
	}
}
