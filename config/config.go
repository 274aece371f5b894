// Copyright 2026 The Geocoder Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the geocoder configuration from geocoder.yaml,
// GEOCODER_* environment variables and command line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jairoivo/geocoder/batch"
	"github.com/jairoivo/geocoder/geocode"
	"github.com/jairoivo/geocoder/spatial"
	"github.com/jairoivo/geocoder/utils/httputils"
	"github.com/rotisserie/eris"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"
)

// EnvPrefix of the environment variables, e.g. GEOCODER_CACHE_PATH.
const EnvPrefix = "GEOCODER"

// Config holds the full application configuration.
type Config struct {
	Sheet    SheetConfig    `yaml:"sheet" mapstructure:"sheet"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Geocoder GeocoderConfig `yaml:"geocoder" mapstructure:"geocoder"`
	Browser  BrowserConfig  `yaml:"browser" mapstructure:"browser"`
	Google   GoogleConfig   `yaml:"google" mapstructure:"google"`
	HTTP     HTTPConfig     `yaml:"http" mapstructure:"http"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// SheetConfig describes the workbook layout.
type SheetConfig struct {
	Name            string   `yaml:"name" mapstructure:"name"`
	Output          string   `yaml:"output" mapstructure:"output"`
	Columns         []string `yaml:"columns" mapstructure:"columns"`
	LatitudeColumn  string   `yaml:"latitude_column" mapstructure:"latitude_column"`
	LongitudeColumn string   `yaml:"longitude_column" mapstructure:"longitude_column"`
	ProcessedColumn string   `yaml:"processed_column" mapstructure:"processed_column"`
	H3Column        string   `yaml:"h3_column" mapstructure:"h3_column"`
	H3Resolution    int      `yaml:"h3_resolution" mapstructure:"h3_resolution"`
	SaveEvery       int      `yaml:"save_every" mapstructure:"save_every"`
	RetryFailed     bool     `yaml:"retry_failed" mapstructure:"retry_failed"`
}

// CacheConfig locates the address cache.
type CacheConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// GeocoderConfig configures the lookup.
type GeocoderConfig struct {
	Provider      string         `yaml:"provider" mapstructure:"provider"`
	BaseURL       string         `yaml:"base_url" mapstructure:"base_url"`
	MaxAttempts   int            `yaml:"max_attempts" mapstructure:"max_attempts"`
	Backoff       time.Duration  `yaml:"backoff" mapstructure:"backoff"`
	MaxBackoff    time.Duration  `yaml:"max_backoff" mapstructure:"max_backoff"`
	WaitTimeout   time.Duration  `yaml:"wait_timeout" mapstructure:"wait_timeout"`
	RatePerSecond float64        `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	Bounds        spatial.Bounds `yaml:"bounds" mapstructure:"bounds"`
}

// BrowserConfig configures the browser provider.
type BrowserConfig struct {
	Path              string        `yaml:"path" mapstructure:"path"`
	Headless          bool          `yaml:"headless" mapstructure:"headless"`
	UserAgent         string        `yaml:"user_agent" mapstructure:"user_agent"`
	Language          string        `yaml:"language" mapstructure:"language"`
	WindowWidth       int           `yaml:"window_width" mapstructure:"window_width"`
	WindowHeight      int           `yaml:"window_height" mapstructure:"window_height"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout" mapstructure:"navigation_timeout"`
}

// GoogleConfig configures the google-api provider.
type GoogleConfig struct {
	APIKey    string `yaml:"api_key" mapstructure:"api_key"`
	KeyName   string `yaml:"key_name" mapstructure:"key_name"`
	ProjectID string `yaml:"project_id" mapstructure:"project_id"`
	Region    string `yaml:"region" mapstructure:"region"`
	Language  string `yaml:"language" mapstructure:"language"`
}

// HTTPConfig configures the HTTP client of the static and google-api
// providers.
type HTTPConfig struct {
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent string        `yaml:"user_agent" mapstructure:"user_agent"`
	Trace     bool          `yaml:"trace" mapstructure:"trace"`
	TraceBody bool          `yaml:"trace_body" mapstructure:"trace_body"`
}

// ServerConfig configures the control panel.
type ServerConfig struct {
	Host    string `yaml:"host" mapstructure:"host"`
	Port    int    `yaml:"port" mapstructure:"port"`
	WorkDir string `yaml:"work_dir" mapstructure:"work_dir"`
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
	File   string `yaml:"file" mapstructure:"file"`
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// New returns a viper instance with the defaults, the environment and the
// optional config file set up. file overrides the geocoder.yaml lookup.
func New(file string) *viper.Viper {
	v := viper.New()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("geocoder")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("sheet.columns", batch.DefaultAddressColumns)
	v.SetDefault("sheet.latitude_column", batch.DefaultLatitudeColumn)
	v.SetDefault("sheet.longitude_column", batch.DefaultLongitudeColumn)
	v.SetDefault("sheet.processed_column", batch.DefaultProcessedColumn)
	v.SetDefault("sheet.h3_column", batch.DefaultH3Column)
	v.SetDefault("sheet.h3_resolution", 0)
	v.SetDefault("sheet.save_every", 1)
	v.SetDefault("sheet.retry_failed", false)
	v.SetDefault("cache.path", "geocoding_cache.json")
	v.SetDefault("geocoder.provider", geocode.ProviderBrowser)
	v.SetDefault("geocoder.max_attempts", geocode.DefaultMaxAttempts)
	v.SetDefault("geocoder.backoff", "1s")
	v.SetDefault("geocoder.max_backoff", "30s")
	v.SetDefault("geocoder.wait_timeout", "10s")
	v.SetDefault("geocoder.rate_per_second", 0)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.user_agent", defaultUserAgent)
	v.SetDefault("browser.language", "pt-BR")
	v.SetDefault("browser.window_width", 1280)
	v.SetDefault("browser.window_height", 900)
	v.SetDefault("browser.navigation_timeout", "30s")
	v.SetDefault("google.key_name", "geocoder")
	v.SetDefault("google.region", "br")
	v.SetDefault("google.language", "pt-BR")
	v.SetDefault("http.timeout", "30s")
	v.SetDefault("http.user_agent", defaultUserAgent)
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.work_dir", ".")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "geocoding.log")

	// Without a default AutomaticEnv would not see it.
	_ = v.BindEnv("google.api_key", EnvPrefix+"_GOOGLE_API_KEY", "GOOGLE_MAPS_API_KEY")

	return v
}

// Load reads the config file, if any, and decodes v.
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// FlagKeys maps command line flags to configuration keys.
var FlagKeys = map[string]string{
	"sheet":         "sheet.name",
	"output":        "sheet.output",
	"columns":       "sheet.columns",
	"save-every":    "sheet.save_every",
	"retry-failed":  "sheet.retry_failed",
	"h3-resolution": "sheet.h3_resolution",
	"cache":         "cache.path",
	"provider":      "geocoder.provider",
	"max-attempts":  "geocoder.max_attempts",
	"wait-timeout":  "geocoder.wait_timeout",
	"rate":          "geocoder.rate_per_second",
	"headless":      "browser.headless",
	"browser-path":  "browser.path",
	"trace-http":    "http.trace",
	"host":          "server.host",
	"port":          "server.port",
	"work-dir":      "server.work_dir",
	"log-level":     "log.level",
	"log-file":      "log.file",
	"log-format":    "log.format",
}

// BindFlags binds the flags of fs found in FlagKeys.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range FlagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}

		if err := v.BindPFlag(key, f); err != nil {
			return eris.Wrapf(err, "config: bind flag --%s", name)
		}
	}

	return nil
}

// Validate checks the values a run depends on.
func (c *Config) Validate() error {
	var errs []error

	switch c.Geocoder.Provider {
	case geocode.ProviderBrowser, geocode.ProviderStatic, geocode.ProviderGoogleAPI:
	default:
		errs = append(errs, eris.Errorf("geocoder.provider %q is not one of %s, %s, %s",
			c.Geocoder.Provider, geocode.ProviderBrowser, geocode.ProviderStatic, geocode.ProviderGoogleAPI))
	}

	if c.Geocoder.MaxAttempts < 1 {
		errs = append(errs, eris.New("geocoder.max_attempts must be at least 1"))
	}

	if c.Geocoder.RatePerSecond < 0 {
		errs = append(errs, eris.New("geocoder.rate_per_second must not be negative"))
	}

	if b := c.Geocoder.Bounds; !b.IsZero() && (b.MinLat > b.MaxLat || b.MinLng > b.MaxLng) {
		errs = append(errs, eris.New("geocoder.bounds min must not exceed max"))
	}

	if len(c.Sheet.Columns) == 0 {
		errs = append(errs, eris.New("sheet.columns is required"))
	}

	if c.Sheet.SaveEvery < 0 {
		errs = append(errs, eris.New("sheet.save_every must not be negative"))
	}

	if c.Sheet.H3Resolution < 0 || c.Sheet.H3Resolution > 15 {
		errs = append(errs, eris.New("sheet.h3_resolution must be between 0 and 15"))
	}

	if c.Cache.Path == "" {
		errs = append(errs, eris.New("cache.path is required"))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, eris.Errorf("server.port %d is out of range", c.Server.Port))
	}

	return errors.Join(errs...)
}

// BatchOptions returns the batch driver options.
func (c *Config) BatchOptions() batch.Options {
	return batch.Options{
		AddressColumns:  c.Sheet.Columns,
		LatitudeColumn:  c.Sheet.LatitudeColumn,
		LongitudeColumn: c.Sheet.LongitudeColumn,
		ProcessedColumn: c.Sheet.ProcessedColumn,
		H3Column:        c.Sheet.H3Column,
		H3Resolution:    c.Sheet.H3Resolution,
		SaveEvery:       c.Sheet.SaveEvery,
		RetryFailed:     c.Sheet.RetryFailed,
	}
}

// ProviderConfig returns the configuration of the selected geocoder.
func (c *Config) ProviderConfig() geocode.ProviderConfig {
	return geocode.ProviderConfig{
		Name:        c.Geocoder.Provider,
		BaseURL:     c.Geocoder.BaseURL,
		WaitTimeout: c.Geocoder.WaitTimeout,
		Chrome: geocode.ChromeOptions{
			ExecPath:          c.Browser.Path,
			Headless:          c.Browser.Headless,
			UserAgent:         c.Browser.UserAgent,
			Language:          c.Browser.Language,
			WindowWidth:       c.Browser.WindowWidth,
			WindowHeight:      c.Browser.WindowHeight,
			NavigationTimeout: c.Browser.NavigationTimeout,
		},
		HTTP: httputils.ClientOptions{
			Timeout:   c.HTTP.Timeout,
			UserAgent: c.HTTP.UserAgent,
			Language:  c.Browser.Language,
			Trace:     c.HTTP.Trace,
			TraceBody: c.HTTP.TraceBody,
		},
		APIKey:   c.Google.APIKey,
		KeyName:  c.Google.KeyName,
		Project:  c.Google.ProjectID,
		Region:   c.Google.Region,
		Language: c.Google.Language,
	}
}

// Lookup returns a lookup over cache and geocoder with the configured retry
// policy.
func (c *Config) Lookup(cache geocode.Cache, geocoder geocode.Geocoder, logger *zap.Logger) *geocode.Lookup {
	var limiter *rate.Limiter
	if c.Geocoder.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(c.Geocoder.RatePerSecond), 1)
	}

	return &geocode.Lookup{
		Cache:       cache,
		Geocoder:    geocoder,
		MaxAttempts: c.Geocoder.MaxAttempts,
		Backoff:     c.Geocoder.Backoff,
		MaxBackoff:  c.Geocoder.MaxBackoff,
		Limiter:     limiter,
		Bounds:      c.Geocoder.Bounds,
		Logger:      logger,
	}
}

// InitLogger builds the logger described by cfg and installs it as the global
// zap logger.
func InitLogger(cfg LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.DisableStacktrace = true
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	if cfg.File != "" {
		zapCfg.OutputPaths = []string{cfg.File}
		zapCfg.ErrorOutputPaths = []string{cfg.File}
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return logger, nil
}
