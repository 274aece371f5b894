// Copyright 2026 The Geocoder Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jairoivo/geocoder/spatial"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdir(t *testing.T, dir string) {
	t.Helper()

	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no geocoder.yaml is found
	chdir(t, t.TempDir())

	cfg, err := Load(New(""))
	require.NoError(t, err)

	assert.Equal(t, []string{"Rua / Avenida", "Número", "Bairro", "CEP"}, cfg.Sheet.Columns)
	assert.Equal(t, "Latitude", cfg.Sheet.LatitudeColumn)
	assert.Equal(t, "Longitude", cfg.Sheet.LongitudeColumn)
	assert.Equal(t, "Processed", cfg.Sheet.ProcessedColumn)
	assert.Equal(t, 1, cfg.Sheet.SaveEvery)
	assert.Equal(t, "geocoding_cache.json", cfg.Cache.Path)
	assert.Equal(t, "browser", cfg.Geocoder.Provider)
	assert.Equal(t, 3, cfg.Geocoder.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Geocoder.Backoff)
	assert.Equal(t, 10*time.Second, cfg.Geocoder.WaitTimeout)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 30*time.Second, cfg.Browser.NavigationTimeout)
	assert.Equal(t, "localhost:8080", cfg.Server.Addr())
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "geocoding.log", cfg.Log.File)
	assert.True(t, cfg.Geocoder.Bounds.IsZero())

	require.NoError(t, cfg.Validate())
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	yaml := `
sheet:
  name: Planilha1
  columns: [Endereço, Cidade]
  h3_resolution: 9
geocoder:
  provider: static
  wait_timeout: 5s
  bounds:
    min_lat: -34
    max_lat: 6
    min_lng: -74
    max_lng: -34
log:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "geocoder.yaml"), []byte(yaml), 0o644))

	cfg, err := Load(New(""))
	require.NoError(t, err)

	assert.Equal(t, "Planilha1", cfg.Sheet.Name)
	assert.Equal(t, []string{"Endereço", "Cidade"}, cfg.Sheet.Columns)
	assert.Equal(t, 9, cfg.Sheet.H3Resolution)
	assert.Equal(t, "static", cfg.Geocoder.Provider)
	assert.Equal(t, 5*time.Second, cfg.Geocoder.WaitTimeout)
	assert.Equal(t, spatial.Bounds{MinLat: -34, MaxLat: 6, MinLng: -74, MaxLng: -34}, cfg.Geocoder.Bounds)
	assert.Equal(t, "json", cfg.Log.Format)
	// Defaults still apply for unset values
	assert.Equal(t, 3, cfg.Geocoder.MaxAttempts)
}

func TestLoadExplicitFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, t.TempDir())

	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache:\n  path: cache.duckdb\n"), 0o644))

	cfg, err := Load(New(path))
	require.NoError(t, err)
	assert.Equal(t, "cache.duckdb", cfg.Cache.Path)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "geocoder.yaml"), []byte("log:\n  level: debug\n"), 0o644))

	t.Setenv("GEOCODER_LOG_LEVEL", "warn")
	t.Setenv("GEOCODER_GEOCODER_MAX_ATTEMPTS", "5")
	t.Setenv("GOOGLE_MAPS_API_KEY", "from-env")

	cfg, err := Load(New(""))
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 5, cfg.Geocoder.MaxAttempts)
	assert.Equal(t, "from-env", cfg.Google.APIKey)
}

func TestBindFlagsOverrideEverything(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("GEOCODER_GEOCODER_PROVIDER", "static")

	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	fs.String("provider", "browser", "")
	fs.StringSlice("columns", nil, "")
	fs.Duration("wait-timeout", 0, "")
	fs.Bool("unrelated", false, "")

	require.NoError(t, fs.Parse([]string{"--provider=google-api", "--columns=Rua,CEP", "--wait-timeout=3s"}))

	v := New("")
	require.NoError(t, BindFlags(v, fs))

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "google-api", cfg.Geocoder.Provider)
	assert.Equal(t, []string{"Rua", "CEP"}, cfg.Sheet.Columns)
	assert.Equal(t, 3*time.Second, cfg.Geocoder.WaitTimeout)
}

func TestValidate(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load(New(""))
	require.NoError(t, err)

	cfg.Geocoder.Provider = "bing"
	cfg.Geocoder.MaxAttempts = 0
	cfg.Sheet.Columns = nil
	cfg.Sheet.H3Resolution = 16
	cfg.Geocoder.Bounds = spatial.Bounds{MinLat: 10, MaxLat: -10}

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `geocoder.provider "bing"`)
	assert.Contains(t, err.Error(), "geocoder.max_attempts")
	assert.Contains(t, err.Error(), "sheet.columns is required")
	assert.Contains(t, err.Error(), "sheet.h3_resolution")
	assert.Contains(t, err.Error(), "geocoder.bounds")
}

func TestDerivedOptions(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load(New(""))
	require.NoError(t, err)

	cfg.Geocoder.RatePerSecond = 2

	opts := cfg.BatchOptions()
	assert.Equal(t, cfg.Sheet.Columns, opts.AddressColumns)
	assert.Equal(t, 1, opts.SaveEvery)

	pc := cfg.ProviderConfig()
	assert.Equal(t, "browser", pc.Name)
	assert.True(t, pc.Chrome.Headless)
	assert.Equal(t, 10*time.Second, pc.WaitTimeout)

	l := cfg.Lookup(nil, nil, nil)
	assert.Equal(t, 3, l.MaxAttempts)
	require.NotNil(t, l.Limiter)
	assert.InDelta(t, 2.0, float64(l.Limiter.Limit()), 1e-9)

	cfg.Geocoder.RatePerSecond = 0
	assert.Nil(t, cfg.Lookup(nil, nil, nil).Limiter)
}

func TestInitLoggerConsole(t *testing.T) {
	logger, err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.Same(t, logger, zap.L())
}

func TestInitLoggerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "geocoding.log")

	logger, err := InitLogger(LogConfig{Level: "info", Format: "json", File: path})
	require.NoError(t, err)

	logger.Info("hello", zap.String("address", "Rua Augusta"))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"address":"Rua Augusta"`)
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	_, err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
