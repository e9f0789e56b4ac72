package config

import (
	"log/slog"
	"reflect"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Width != 1280 || cfg.Height != 720 || cfg.FPS != 60 {
		t.Errorf("canvas defaults = %dx%d@%d", cfg.Width, cfg.Height, cfg.FPS)
	}
	if cfg.Store != "sqlite" || cfg.OpenAIModel != "gpt-4o-mini" {
		t.Errorf("store/model defaults = %q/%q", cfg.Store, cfg.OpenAIModel)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PROJMAP_PROJECTOR_WIDTH", "3840")
	t.Setenv("PROJMAP_STORE", "memory")
	t.Setenv("LOG_LEVEL", "DEBUG")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.ProjectorWidth != 3840 || cfg.Store != "memory" {
		t.Errorf("env not applied: %+v", cfg)
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Errorf("SlogLevel() = %v, want debug", cfg.SlogLevel())
	}
}

func TestLoadRejectsBadInt(t *testing.T) {
	t.Setenv("PROJMAP_FPS", "fast")
	if _, err := Load(); err == nil {
		t.Error("Load() accepted a non-numeric fps")
	}
}

func TestOrigins(t *testing.T) {
	cfg := &Config{AllowedOrigins: " localhost:5173, ,example.com "}
	want := []string{"localhost:5173", "example.com"}
	if got := cfg.Origins(); !reflect.DeepEqual(got, want) {
		t.Errorf("Origins() = %v, want %v", got, want)
	}
}
