package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	DataModeFull    = "full"
	DataModePreview = "preview"
)

type Config struct {
	API           APIConfig       `toml:"api"`
	Import        ImportConfig    `toml:"import"`
	Notifications NotifyConfig    `toml:"notifications"`
	Log           LogConfig       `toml:"log"`
	DevServer     DevServerConfig `toml:"devserver"`

	// Token comes from RDIMPORT_TOKEN only and is never written to disk.
	Token string `toml:"-"`
}

type APIConfig struct {
	BaseURL        string `toml:"base_url"`
	StudyID        string `toml:"study_id"`
	TimeoutSeconds int    `toml:"timeout_seconds"` // 0 means no timeout
}

type ImportConfig struct {
	AcceptanceThreshold float64 `toml:"acceptance_threshold"`
	DataMode            string  `toml:"data_mode"` // "full" | "preview"
}

type NotifyConfig struct {
	Enabled bool `toml:"enabled"`
}

type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

type DevServerConfig struct {
	Addr     string `toml:"addr"`
	Analyzer string `toml:"analyzer"` // "heuristic" | "openai" | "gemini" | "claude-cli"
	Model    string `toml:"model"`
	Token    string `toml:"token"`

	OpenAIKey string `toml:"-"`
	GeminiKey string `toml:"-"`
}

func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			BaseURL: "http://localhost:8000/api",
		},
		Import: ImportConfig{
			AcceptanceThreshold: 0.5,
			DataMode:            DataModeFull,
		},
		Notifications: NotifyConfig{
			Enabled: true,
		},
		Log: LogConfig{
			Level: "info",
		},
		DevServer: DevServerConfig{
			Addr:     "127.0.0.1:8000",
			Analyzer: "heuristic",
			Token:    "dev-token",
		},
	}
}

// ConfigDir honours RDIMPORT_CONFIG_DIR so tests and multiple profiles can
// point elsewhere.
func ConfigDir() (string, error) {
	if dir := os.Getenv("RDIMPORT_CONFIG_DIR"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home directory: %w", err)
	}
	return filepath.Join(home, ".config", "rdimport"), nil
}

func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

func SessionPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "session.json"), nil
}

func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile reads path over the defaults. A missing file is not an error.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if len(data) > 0 {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RDIMPORT_API_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("RDIMPORT_STUDY_ID"); v != "" {
		cfg.API.StudyID = v
	}
	if v := os.Getenv("RDIMPORT_TOKEN"); v != "" {
		cfg.Token = v
	}
	if v := os.Getenv("RDIMPORT_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("RDIMPORT_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Import.AcceptanceThreshold = f
		}
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.DevServer.OpenAIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.DevServer.GeminiKey = v
	}
}

func (c *Config) Validate() error {
	if t := c.Import.AcceptanceThreshold; t <= 0 || t >= 1 {
		return fmt.Errorf("import.acceptance_threshold must be between 0 and 1, got %v", t)
	}
	switch c.Import.DataMode {
	case DataModeFull, DataModePreview:
	default:
		return fmt.Errorf("import.data_mode must be %q or %q, got %q", DataModeFull, DataModePreview, c.Import.DataMode)
	}
	if c.API.TimeoutSeconds < 0 {
		return fmt.Errorf("api.timeout_seconds must not be negative")
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	return nil
}

func (c *Config) Timeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.Log.Level))); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// LogFile is where interactive commands write their log.
func (c *Config) LogFile() (string, error) {
	if c.Log.File != "" {
		return c.Log.File, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "rdimport.log"), nil
}

func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// SaveStudyID persists the study ID to the config file using a
// read-modify-write approach to preserve other settings.
func SaveStudyID(studyID string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}

	cfg := make(map[string]any)

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading config: %w", err)
	}
	if len(data) > 0 {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("parsing config: %w", err)
		}
	}

	api, ok := cfg["api"].(map[string]any)
	if !ok {
		api = make(map[string]any)
	}
	api["study_id"] = studyID
	cfg["api"] = api

	if err := EnsureConfigDir(); err != nil {
		return err
	}

	out, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, out, 0644)
}

// DefaultFile is the commented config written by `rdimport config`.
func DefaultFile() string {
	cfg := DefaultConfig()
	return fmt.Sprintf(`[api]
base_url = %q
study_id = ""
# timeout_seconds = 30

[import]
acceptance_threshold = %v
data_mode = %q

[notifications]
enabled = %t

[log]
level = %q
# file = "~/.config/rdimport/rdimport.log"

[devserver]
addr = %q
analyzer = %q
model = ""
token = %q
`,
		cfg.API.BaseURL,
		cfg.Import.AcceptanceThreshold,
		cfg.Import.DataMode,
		cfg.Notifications.Enabled,
		cfg.Log.Level,
		cfg.DevServer.Addr,
		cfg.DevServer.Analyzer,
		cfg.DevServer.Token,
	)
}
