// Copyright 2026 The Geocoder Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/jairoivo/geocoder/cache"
	"github.com/jairoivo/geocoder/geocode"
	"github.com/jairoivo/geocoder/utils/textutils"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspects and converts the address cache",
}

func openCache() (cache.Store, error) {
	return cache.Open(cfg.Cache.Path, zap.L())
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Shows the size of the cache",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) (err error) {
		store, err := openCache()
		if err != nil {
			return err
		}
		defer func() { err = errors.Join(err, store.Close()) }()

		n, err := store.Len()
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "path:    %s\n", cfg.Cache.Path)
		fmt.Fprintf(w, "backend: %s\n", cache.Backend(cfg.Cache.Path))
		fmt.Fprintf(w, "entries: %s\n", textutils.FormatInt(int64(n)))

		return nil
	},
}

var cacheGetCmd = &cobra.Command{
	Use:   "get <address...>",
	Short: "Prints the cached coordinates of an address",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		store, err := openCache()
		if err != nil {
			return err
		}
		defer func() { err = errors.Join(err, store.Close()) }()

		address := geocode.NormalizeAddress(args...)

		p, ok, err := store.Get(address)
		if err != nil {
			return err
		}

		if !ok {
			return eris.Errorf("%q is not cached", address)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%v,%v\n", p.Lat, p.Lng)

		return nil
	},
}

var cacheMigrateCmd = &cobra.Command{
	Use:   "migrate <destination>",
	Short: "Copies the cache into another one, e.g. from JSON to DuckDB",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		if filepath.Clean(args[0]) == filepath.Clean(cfg.Cache.Path) {
			return eris.New("source and destination are the same cache")
		}

		src, err := openCache()
		if err != nil {
			return err
		}
		defer func() { err = errors.Join(err, src.Close()) }()

		dst, err := cache.Open(args[0], zap.L())
		if err != nil {
			return err
		}
		defer func() { err = errors.Join(err, dst.Close()) }()

		n, err := cache.Migrate(dst, src)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Copied %s entries from %s to %s\n",
			textutils.FormatInt(int64(n)), cfg.Cache.Path, args[0])

		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheGetCmd)
	cacheCmd.AddCommand(cacheMigrateCmd)
}
