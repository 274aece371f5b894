// Copyright 2026 The Geocoder Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/jairoivo/geocoder/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the control panel in the browser",
	Long: `
Starts a local control panel to pick a spreadsheet from the work directory (or
upload one), choose the address columns and start or stop the geocoding while
following its progress.
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signalContext(cmd.Context())
		defer stop()

		lookup, closeLookup, err := newLookup(ctx)
		if err != nil {
			return err
		}

		defer func() {
			if err := closeLookup(); err != nil {
				zap.L().Warn("closing geocoder", zap.Error(err))
			}
		}()

		s := server.NewServer(cfg.Server.WorkDir, lookup, cfg.BatchOptions(), zap.L())

		fmt.Fprintf(cmd.OutOrStdout(), "Control panel on http://%s (Ctrl-C to quit)\n", cfg.Server.Addr())

		return s.Run(ctx, cfg.Server.Addr())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	fs := serveCmd.Flags()
	fs.String("host", "localhost", "Listen address")
	fs.Int("port", 8080, "Listen port")
	fs.String("work-dir", ".", "Directory holding the spreadsheets")
	fs.Int("save-every", 1, "Save after that many updated rows (0 = only at the end)")
	fs.Bool("retry-failed", false, "Retry processed rows that have no coordinates")
	fs.Int("h3-resolution", 0, "Also write the H3 cell at this resolution (0 = off)")
	addGeocoderFlags(fs)
}
