package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// TempSubdir is the directory under the OS temp dir that holds scratch
// workspaces when TEMP_DIR is unset.
const TempSubdir = "audio2text"

type Config struct {
	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":8000"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"5m"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"60m"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`

	AuthToken   string   `env:"AUTH_TOKEN"`
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:","`
	MaxUploadMB int64    `env:"MAX_UPLOAD_MB" envDefault:"1024"`
	LogLevel    string   `env:"LOG_LEVEL" envDefault:"info"`

	MetricsEnabled bool `env:"METRICS_ENABLED" envDefault:"true"`

	Whisper WhisperConfig
	OpenAI  OpenAIConfig
	Media   MediaConfig
	Archive ArchiveConfig

	TempDir         string        `env:"TEMP_DIR"`
	WorkspaceMaxAge time.Duration `env:"WORKSPACE_MAX_AGE" envDefault:"6h"`
}

// WhisperConfig selects and tunes the speech-recognition backend.
type WhisperConfig struct {
	Model       string        `env:"WHISPER_MODEL" envDefault:"base"`
	ComputeType string        `env:"COMPUTE_TYPE" envDefault:"int8"`
	Threads     int           `env:"WHISPER_THREADS" envDefault:"4"`
	Backend     string        `env:"WHISPER_BACKEND" envDefault:"server"`
	URL         string        `env:"WHISPER_URL" envDefault:"http://localhost:8080/v1/audio/transcriptions"`
	CLI         string        `env:"WHISPER_CLI" envDefault:"whisper-ctranslate2"`
	Language    string        `env:"WHISPER_LANGUAGE"`
	Timeout     time.Duration `env:"WHISPER_TIMEOUT" envDefault:"60m"`
}

// OpenAIConfig holds the summarization defaults. The API key is never part
// of the server configuration; callers supply it per request.
type OpenAIConfig struct {
	Model   string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	BaseURL string `env:"OPENAI_BASE_URL"`
}

type MediaConfig struct {
	FFmpeg  string `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
	FFprobe string `env:"FFPROBE_PATH" envDefault:"ffprobe"`
}

// ArchiveConfig configures optional retention of produced artifacts.
// Local and S3 archiving are mutually exclusive; S3 wins when both are set.
type ArchiveConfig struct {
	Dir string `env:"ARCHIVE_DIR"`

	S3Bucket    string `env:"ARCHIVE_S3_BUCKET"`
	S3Endpoint  string `env:"ARCHIVE_S3_ENDPOINT"`
	S3Region    string `env:"ARCHIVE_S3_REGION" envDefault:"us-east-1"`
	S3AccessKey string `env:"ARCHIVE_S3_ACCESS_KEY"`
	S3SecretKey string `env:"ARCHIVE_S3_SECRET_KEY"`
	S3Prefix    string `env:"ARCHIVE_S3_PREFIX"`
}

// S3Enabled reports whether an S3 archive bucket is configured.
func (a ArchiveConfig) S3Enabled() bool { return a.S3Bucket != "" }

// MaxUploadBytes returns the upload limit in bytes.
func (c *Config) MaxUploadBytes() int64 { return c.MaxUploadMB << 20 }

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile      string
	HTTPAddr     string
	LogLevel     string
	WhisperModel string
}

// Load reads configuration from .env file, environment variables, and CLI overrides.
// Priority: CLI flags > environment variables > .env file > struct defaults.
func Load(overrides Overrides) (*Config, error) {
	// Load .env file (silent if missing)
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.WhisperModel != "" {
		cfg.Whisper.Model = overrides.WhisperModel
	}
	if cfg.TempDir == "" {
		cfg.TempDir = filepath.Join(os.TempDir(), TempSubdir)
	}

	switch cfg.Whisper.Backend {
	case "server", "cli":
	default:
		return nil, fmt.Errorf("invalid WHISPER_BACKEND %q: must be server or cli", cfg.Whisper.Backend)
	}
	if cfg.MaxUploadMB <= 0 {
		return nil, fmt.Errorf("invalid MAX_UPLOAD_MB %d: must be > 0", cfg.MaxUploadMB)
	}

	return cfg, nil
}
