// Package config resolves application configuration from built-in
// defaults, an optional YAML file and the environment, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	appName        = "pomodoro-panda"
	configFileName = "config.yaml"

	EnvDBPath  = "POMODORO_DB_PATH"
	EnvLogFile = "POMODORO_LOG_FILE"
	EnvDebug   = "POMODORO_DEBUG"
)

type Config struct {
	DBPath       string
	LogFile      string
	Debug        bool
	TickInterval time.Duration
	Bell         bool
}

type yamlConfig struct {
	DBPath       string `yaml:"db_path,omitempty"`
	LogFile      string `yaml:"log_file,omitempty"`
	Debug        *bool  `yaml:"debug,omitempty"`
	TickInterval string `yaml:"tick_interval,omitempty"`
	Bell         *bool  `yaml:"bell,omitempty"`
}

// Dir returns the per-user directory holding the config file, database and
// log.
func Dir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(configDir, appName), nil
}

// Path returns the default location of config.yaml.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// Default returns the configuration used when nothing is overridden.
func Default() (Config, error) {
	dir, err := Dir()
	if err != nil {
		return Config{}, err
	}
	return Config{
		DBPath:       filepath.Join(dir, "pomodoro.db"),
		LogFile:      filepath.Join(dir, "pomodoro.log"),
		TickInterval: time.Second,
		Bell:         true,
	}, nil
}

// LoadDotEnv loads .env files into the environment without overriding
// variables that are already set. Missing files are not an error.
func LoadDotEnv(files ...string) bool {
	if len(files) == 0 {
		files = []string{".env"}
	}
	loaded := false
	for _, f := range files {
		if err := godotenv.Load(f); err == nil {
			loaded = true
		}
	}
	return loaded
}

// Load builds the configuration: defaults, then the YAML file at path (if
// it exists; an empty path means Path()), then environment variables.
func Load(path string) (Config, error) {
	cfg, err := Default()
	if err != nil {
		return cfg, err
	}
	if path == "" {
		if path, err = Path(); err != nil {
			return cfg, err
		}
	}

	if err := applyFile(&cfg, path); err != nil {
		return cfg, err
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	rawData, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}

	var fileData yamlConfig
	if err := yaml.Unmarshal(rawData, &fileData); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}

	if fileData.DBPath != "" {
		cfg.DBPath = expandHome(fileData.DBPath)
	}
	if fileData.LogFile != "" {
		cfg.LogFile = expandHome(fileData.LogFile)
	}
	if fileData.Debug != nil {
		cfg.Debug = *fileData.Debug
	}
	if fileData.Bell != nil {
		cfg.Bell = *fileData.Bell
	}
	if fileData.TickInterval != "" {
		d, err := time.ParseDuration(fileData.TickInterval)
		if err != nil || d <= 0 {
			return fmt.Errorf("config tick_interval %q: must be a positive duration", fileData.TickInterval)
		}
		cfg.TickInterval = d
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvDBPath); v != "" {
		cfg.DBPath = expandHome(v)
	}
	if v := os.Getenv(EnvLogFile); v != "" {
		cfg.LogFile = expandHome(v)
	}
	if v := os.Getenv(EnvDebug); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Debug = b
		}
	}
}

// Save writes cfg to path as YAML, creating the directory if needed.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	serialized, err := Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, serialized, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Marshal renders cfg in the config file format.
func Marshal(cfg Config) ([]byte, error) {
	fileData := yamlConfig{
		DBPath:       cfg.DBPath,
		LogFile:      cfg.LogFile,
		Debug:        &cfg.Debug,
		TickInterval: cfg.TickInterval.String(),
		Bell:         &cfg.Bell,
	}
	serialized, err := yaml.Marshal(fileData)
	if err != nil {
		return nil, fmt.Errorf("marshal config yaml: %w", err)
	}
	return serialized, nil
}

func expandHome(p string) string {
	if len(p) < 2 || p[:2] != "~/" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[2:])
}
