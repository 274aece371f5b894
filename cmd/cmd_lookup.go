// Copyright 2026 The Geocoder Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/jairoivo/geocoder/geocode"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var lookupH3Resolution int

var lookupCmd = &cobra.Command{
	Use:   "lookup <address...>",
	Short: "Geocodes a single address through the cache",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext(cmd.Context())
		defer stop()

		address := geocode.NormalizeAddress(args...)

		lookup, closeLookup, err := newLookup(ctx)
		if err != nil {
			return err
		}

		defer func() {
			if err := closeLookup(); err != nil {
				zap.L().Warn("closing geocoder", zap.Error(err))
			}
		}()

		out, err := lookup.Resolve(ctx, address)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%s\n", address)
		fmt.Fprintf(w, "  latitude:  %v\n", out.Point.Lat)
		fmt.Fprintf(w, "  longitude: %v\n", out.Point.Lng)

		if out.Cached {
			fmt.Fprintln(w, "  source:    cache")
		} else {
			fmt.Fprintf(w, "  source:    %s (%s confidence, %d attempts)\n",
				out.Result.Provider, out.Result.Confidence, out.Attempts)

			if out.Result.DisplayName != "" {
				fmt.Fprintf(w, "  name:      %s\n", out.Result.DisplayName)
			}
		}

		if lookupH3Resolution > 0 {
			cell, err := out.Point.H3Cell(lookupH3Resolution)
			if err != nil {
				return err
			}

			fmt.Fprintf(w, "  h3:        %s\n", cell)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(lookupCmd)
	addGeocoderFlags(lookupCmd.Flags())
	lookupCmd.Flags().IntVar(&lookupH3Resolution, "h3", 0, "Also print the H3 cell at this resolution")
}
