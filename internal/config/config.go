package config

import (
	"log/slog"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Width           int    `envconfig:"PROJMAP_WIDTH" default:"1280"`
	Height          int    `envconfig:"PROJMAP_HEIGHT" default:"720"`
	ProjectorWidth  int    `envconfig:"PROJMAP_PROJECTOR_WIDTH" default:"1920"`
	ProjectorHeight int    `envconfig:"PROJMAP_PROJECTOR_HEIGHT" default:"1080"`
	FPS             int    `envconfig:"PROJMAP_FPS" default:"60"`
	Store           string `envconfig:"PROJMAP_STORE" default:"sqlite"`
	SQLitePath      string `envconfig:"PROJMAP_SQLITE_PATH" default:"./data/projmap.db"`
	DatabaseURL     string `envconfig:"DATABASE_URL"`
	MediaDir        string `envconfig:"PROJMAP_MEDIA_DIR" default:"./data/media"`
	FfmpegPath      string `envconfig:"FFMPEG_PATH" default:"ffmpeg"`
	CameraDevice    string `envconfig:"PROJMAP_CAMERA_DEVICE" default:"/dev/video0"`
	CameraFormat    string `envconfig:"PROJMAP_CAMERA_FORMAT" default:"v4l2"`
	MirrorAddr      string `envconfig:"PROJMAP_MIRROR_ADDR"`
	Addr            string `envconfig:"PROJMAP_ADDR" default:":8080"`
	AllowedOrigins  string `envconfig:"ALLOWED_ORIGINS" default:"localhost:*,127.0.0.1:*"`
	OpenAIKey       string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL   string `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com"`
	OpenAIModel     string `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
	LogLevel        string `envconfig:"LOG_LEVEL" default:"info"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Origins splits AllowedOrigins into websocket origin patterns.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// SlogLevel maps LogLevel onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
