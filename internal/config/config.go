// Package config loads envman's settings from a YAML file, the process
// environment and a local .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const appName = "envman"

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Scan      ScanConfig      `yaml:"scan"`
	Upload    UploadConfig    `yaml:"upload"`
	Assistant AssistantConfig `yaml:"assistant"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type ScanConfig struct {
	Root             string `yaml:"root"`
	RespectGitignore bool   `yaml:"respect_gitignore"`
}

type UploadConfig struct {
	Dir      string `yaml:"dir"`
	MaxBytes int64  `yaml:"max_bytes"`
	MaxFiles int    `yaml:"max_files"`
}

type AssistantConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	Retries      int           `yaml:"retries"`
	RetryDelay   time.Duration `yaml:"retry_delay"`
	MaxTokens    int           `yaml:"max_tokens"`
	Temperature  float64       `yaml:"temperature"`
	History      int           `yaml:"history"`
	DefaultModel string        `yaml:"default_model"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the built-in settings. The scan root is the parent of the
// working directory.
func Default() Config {
	root := ".."
	if wd, err := os.Getwd(); err == nil {
		root = filepath.Dir(wd)
	}

	return Config{
		Server: ServerConfig{Port: 3001},
		Scan:   ScanConfig{Root: root},
		Upload: UploadConfig{
			MaxBytes: 10 << 20,
			MaxFiles: 5,
		},
		Assistant: AssistantConfig{
			Timeout:      30 * time.Second,
			Retries:      2,
			RetryDelay:   time.Second,
			MaxTokens:    1000,
			Temperature:  0.7,
			History:      10,
			DefaultModel: "openai/gpt-4o-mini",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads the YAML file at path over the defaults. An empty path means
// the default location; a missing file is not an error. PORT in the
// environment overrides server.port.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return cfg, fmt.Errorf("invalid PORT %q: %w", port, err)
		}
		cfg.Server.Port = p
	}

	return cfg, cfg.Validate()
}

// Validate rejects settings that cannot work.
func (c Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Upload.MaxBytes <= 0 {
		return errors.New("upload.max_bytes must be positive")
	}
	if c.Upload.MaxFiles <= 0 {
		return errors.New("upload.max_files must be positive")
	}
	if c.Assistant.Retries < 0 {
		return errors.New("assistant.retries must not be negative")
	}
	if c.Assistant.History < 0 {
		return errors.New("assistant.history must not be negative")
	}
	return nil
}

// UploadDir is where uploads without an explicit destination are stored.
func (c Config) UploadDir() string {
	if c.Upload.Dir != "" {
		return c.Upload.Dir
	}
	return filepath.Join(DataDir(), "uploads")
}

// ConfigDir honours XDG_CONFIG_HOME and falls back to ~/.config.
func ConfigDir() string {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", appName)
}

// DataDir honours XDG_DATA_HOME and falls back to ~/.local/share.
func DataDir() string {
	if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
		return filepath.Join(dataHome, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "data"
	}
	return filepath.Join(home, ".local", "share", appName)
}

// DefaultPath is the config file used when --config is not given.
func DefaultPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// LoadProcessEnv loads ./.env, then <config dir>/env, into the process
// environment. Variables already set are never overridden.
func LoadProcessEnv() error {
	for _, p := range []string{".env", filepath.Join(ConfigDir(), "env")} {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// NewLogger builds the text logger on stderr at the given level name.
func NewLogger(level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: ParseLevel(level),
	}))
}

// ParseLevel maps debug/info/warn/error onto slog levels, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
