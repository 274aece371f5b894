// Copyright 2026 The Geocoder Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/jairoivo/geocoder/cache"
	"github.com/jairoivo/geocoder/config"
	"github.com/jairoivo/geocoder/geocode"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

var (
	configFile string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "geocoder",
	Short: "geocodes the addresses of a spreadsheet with Google Maps",
	Long: `
geocoder reads street addresses from a spreadsheet, looks each one up on Google
Maps and writes latitude and longitude back to the spreadsheet. Results are
cached on disk and progress is saved as it goes, so an interrupted run resumes
where it stopped.
`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		v := config.New(configFile)
		if err := config.BindFlags(v, cmd.Flags()); err != nil {
			return err
		}

		c, err := config.Load(v)
		if err != nil {
			return err
		}

		if err := c.Validate(); err != nil {
			return err
		}

		if _, err := config.InitLogger(c.Log); err != nil {
			return err
		}

		cfg = c

		return nil
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		_ = zap.L().Sync()
	},
}

var Version = "dev"

func Execute(version string) {
	Version = version
	rootCmd.Version = version

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default ./geocoder.yaml)")
	rootCmd.PersistentFlags().String("cache", "geocoding_cache.json", "Address cache; .duckdb or .db selects DuckDB")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-file", "geocoding.log", "Log file; empty logs to stderr")
	rootCmd.PersistentFlags().String("log-format", "console", "Log format (console or json)")
}

// addGeocoderFlags registers the flags of the commands that geocode.
func addGeocoderFlags(fs *pflag.FlagSet) {
	fs.String("provider", geocode.ProviderBrowser, "Geocoder: browser, static or google-api")
	fs.Int("max-attempts", geocode.DefaultMaxAttempts, "Provider calls per address before giving up")
	fs.Duration("wait-timeout", geocode.DefaultWaitTimeout, "How long to wait for the coordinates to show up")
	fs.Float64("rate", 0, "Maximum provider calls per second (0 = unlimited)")
	fs.Bool("headless", true, "Run the browser without a window")
	fs.String("browser-path", "", "Chrome, Chromium or Edge executable (default auto-detect)")
	fs.Bool("trace-http", false, "Log the HTTP requests of the static and google-api providers")
}

// signalContext is cancelled on Ctrl-C or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}

	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// newLookup opens the cache and the configured provider. The close function
// releases both.
func newLookup(ctx context.Context) (*geocode.Lookup, func() error, error) {
	logger := zap.L()

	store, err := cache.Open(cfg.Cache.Path, logger)
	if err != nil {
		return nil, nil, err
	}

	geo, closeGeo, err := geocode.NewGeocoder(ctx, cfg.ProviderConfig(), logger)
	if err != nil {
		return nil, nil, errors.Join(err, store.Close())
	}

	logger.Info("geocoder ready",
		zap.String("provider", cfg.Geocoder.Provider),
		zap.String("cache", cfg.Cache.Path))

	closer := func() error {
		return errors.Join(closeGeo(), store.Close())
	}

	return cfg.Lookup(store, geo, logger), closer, nil
}
