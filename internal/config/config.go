package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"ocrtools/internal/logger"
)

// DefaultPath is where the configuration file is looked up and created.
const DefaultPath = "config.ini"

// section is the INI section holding every option.
const section = "general"

// Engines understood by the engine factory.
const (
	EngineTesseract = "tesseract"
	EngineVision    = "vision"
)

// ErrInvalidConfig is returned when a loaded option fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	// Pipeline
	InputRoot  string
	OutputRoot string
	Categories []string
	MaxImageMP float64
	Lang       string
	Engine     string
	Workers    int

	// ResizeThreshold is read for compatibility with existing config files.
	// Nothing consumes it.
	ResizeThreshold int

	// HTTP shell
	ListenAddr string

	// Logging Configuration
	LogLevel  string
	LogFile   string
	LogFormat string
}

// defaults mirrors the [General] section written to a fresh config.ini.
var defaults = map[string]interface{}{
	"input_root":       "Orden",
	"output_root":      "Orden/resultados",
	"max_image_mp":     5,
	"lang":             "spa",
	"log_level":        "INFO",
	"log_file":         "log.txt",
	"resize_threshold": 2000,
	"categories":       "Gastos,Ganancias",
	"engine":           EngineTesseract,
	"workers":          1,
	"listen_addr":      ":5000",
	"log_format":       "console",
}

// Load reads the INI file at path, creating it with defaults when it does not
// exist. OCRTOOLS_<KEY> environment variables override file values.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	v := newViper()
	v.SetEnvPrefix("OCRTOOLS")
	v.SetEnvKeyReplacer(strings.NewReplacer("GENERAL.", "", ".", "_"))
	v.AutomaticEnv()
	v.SetConfigFile(path)

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := v.SafeWriteConfigAs(path); err != nil {
			return nil, fmt.Errorf("failed to create default config %s: %w", path, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	return fromViper(v)
}

// Default returns the built-in configuration without touching the filesystem
// or the environment.
func Default() *Config {
	cfg, err := fromViper(newViper())
	if err != nil {
		// defaults are static and always valid
		panic(err)
	}
	return cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("ini")
	for key, value := range defaults {
		v.SetDefault(section+"."+key, value)
	}
	return v
}

func fromViper(v *viper.Viper) (*Config, error) {
	get := func(key string) string { return section + "." + key }

	config := &Config{
		InputRoot:       strings.TrimSpace(v.GetString(get("input_root"))),
		OutputRoot:      strings.TrimSpace(v.GetString(get("output_root"))),
		Categories:      splitList(v.GetString(get("categories"))),
		MaxImageMP:      v.GetFloat64(get("max_image_mp")),
		Lang:            strings.TrimSpace(v.GetString(get("lang"))),
		Engine:          strings.ToLower(strings.TrimSpace(v.GetString(get("engine")))),
		Workers:         v.GetInt(get("workers")),
		ResizeThreshold: v.GetInt(get("resize_threshold")),
		ListenAddr:      v.GetString(get("listen_addr")),
		LogLevel:        v.GetString(get("log_level")),
		LogFile:         strings.TrimSpace(v.GetString(get("log_file"))),
		LogFormat:       v.GetString(get("log_format")),
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate checks the options the pipeline depends on.
func (c *Config) Validate() error {
	if c.InputRoot == "" {
		return fmt.Errorf("%w: input_root is required", ErrInvalidConfig)
	}
	if c.OutputRoot == "" {
		return fmt.Errorf("%w: output_root is required", ErrInvalidConfig)
	}
	if c.MaxImageMP <= 0 {
		return fmt.Errorf("%w: max_image_mp must be positive, got %v", ErrInvalidConfig, c.MaxImageMP)
	}
	if c.Lang == "" {
		return fmt.Errorf("%w: lang is required", ErrInvalidConfig)
	}
	if len(c.Categories) == 0 {
		return fmt.Errorf("%w: at least one category is required", ErrInvalidConfig)
	}
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be at least 1, got %d", ErrInvalidConfig, c.Workers)
	}
	switch c.Engine {
	case EngineTesseract, EngineVision:
	default:
		return fmt.Errorf("%w: unknown engine %q", ErrInvalidConfig, c.Engine)
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: log_level: %v", ErrInvalidConfig, err)
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: time.RFC3339,
		Output:     "stdout",
		File:       c.LogFile,
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
