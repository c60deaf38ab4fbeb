package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeINI(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.ini")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.ini")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.FileExists(t, path)

	assert.Equal(t, "Orden", cfg.InputRoot)
	assert.Equal(t, "Orden/resultados", cfg.OutputRoot)
	assert.Equal(t, []string{"Gastos", "Ganancias"}, cfg.Categories)
	assert.Equal(t, 5.0, cfg.MaxImageMP)
	assert.Equal(t, "spa", cfg.Lang)
	assert.Equal(t, EngineTesseract, cfg.Engine)
	assert.Equal(t, 1, cfg.Workers)
	assert.Equal(t, 2000, cfg.ResizeThreshold)
	assert.Equal(t, "log.txt", cfg.LogFile)

	// A second load reads the file that was just written.
	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoadReadsGeneralSection(t *testing.T) {
	path := writeINI(t, `[General]
input_root = /data/Orden
output_root = /data/out
max_image_mp = 2.5
lang = spa+eng
log_level = WARNING
log_file =
categories = Gastos, Ganancias , Nomina
engine = Vision
workers = 4
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/Orden", cfg.InputRoot)
	assert.Equal(t, "/data/out", cfg.OutputRoot)
	assert.Equal(t, 2.5, cfg.MaxImageMP)
	assert.Equal(t, "spa+eng", cfg.Lang)
	assert.Equal(t, "WARNING", cfg.LogLevel)
	assert.Empty(t, cfg.LogFile)
	assert.Equal(t, []string{"Gastos", "Ganancias", "Nomina"}, cfg.Categories)
	assert.Equal(t, EngineVision, cfg.Engine)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, ":5000", cfg.ListenAddr)
}

func TestLoadEnvironmentOverride(t *testing.T) {
	path := writeINI(t, "[General]\nlang = spa\n")
	t.Setenv("OCRTOOLS_LANG", "eng")
	t.Setenv("OCRTOOLS_WORKERS", "3")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "eng", cfg.Lang)
	assert.Equal(t, 3, cfg.Workers)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"zero megapixels", "[General]\nmax_image_mp = 0\n"},
		{"empty lang", "[General]\nlang =\n"},
		{"no categories", "[General]\ncategories = ,\n"},
		{"zero workers", "[General]\nworkers = 0\n"},
		{"unknown engine", "[General]\nengine = abbyy\n"},
		{"bad log level", "[General]\nlog_level = loud\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeINI(t, tt.content))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestDefault(t *testing.T) {
	t.Setenv("OCRTOOLS_LANG", "eng")

	cfg := Default()
	assert.Equal(t, "spa", cfg.Lang)
	assert.NoError(t, cfg.Validate())
}

func TestGetLoggerConfig(t *testing.T) {
	cfg := Default()
	lc := cfg.GetLoggerConfig()

	assert.Equal(t, "INFO", lc.Level)
	assert.Equal(t, "console", lc.Format)
	assert.Equal(t, "log.txt", lc.File)
}
