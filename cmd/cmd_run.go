// Copyright 2026 The Geocoder Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jairoivo/geocoder/batch"
	"github.com/jairoivo/geocoder/sheet"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run <input.xlsx>",
	Short: "Geocodes the pending rows of a spreadsheet",
	Long: `
Geocodes every row of the spreadsheet not yet flagged as processed and writes
Latitude, Longitude and Processed columns to the output workbook (by default
<input>_geocoded.xlsx). When the output already exists it is resumed.

Ctrl-C stops after the current address and saves the progress.
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext(cmd.Context())
		defer stop()

		input := args[0]

		output := cfg.Sheet.Output
		if output == "" {
			output = sheet.DefaultOutputPath(input)
		}

		wb, resumed, err := sheet.PrepareOutput(input, output, cfg.Sheet.Name)
		if err != nil {
			return err
		}
		defer wb.Close()

		if resumed {
			zap.L().Info("resuming from existing output", zap.String("output", output))
		}

		lookup, closeLookup, err := newLookup(ctx)
		if err != nil {
			return err
		}

		defer func() {
			if err := closeLookup(); err != nil {
				zap.L().Warn("closing geocoder", zap.Error(err))
			}
		}()

		d := &batch.Driver{Resolver: lookup, Options: cfg.BatchOptions(), Logger: zap.L()}

		var bar *progressbar.ProgressBar

		m, err := d.Run(ctx, wb, output, func(done, total int) {
			if !isatty.IsTerminal(os.Stderr.Fd()) {
				if done == total || done%100 == 0 {
					zap.L().Info("progress", zap.Int("done", done), zap.Int("total", total))
				}

				return
			}

			if bar == nil {
				bar = progressbar.NewOptions(total,
					progressbar.OptionSetDescription("Geocoding addresses"),
					progressbar.OptionSetWriter(os.Stderr),
					progressbar.OptionShowCount(),
					progressbar.OptionClearOnFinish(),
				)
			}

			_ = bar.Set(done)
		})

		if bar != nil {
			_ = bar.Finish()
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%d rows: %d geocoded (%d from cache), %d failed, %d already processed, %d without address\n",
			m.Rows, m.CacheHits+m.Fetched, m.CacheHits, m.Failed, m.Skipped, m.Empty)

		if errors.Is(err, context.Canceled) {
			fmt.Fprintf(out, "Stopped. Progress saved to %s\n", output)

			return nil
		}

		if err != nil {
			return err
		}

		fmt.Fprintf(out, "Saved to %s\n", output)
		fmt.Fprintln(out, batch.DoneMessage)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	fs := runCmd.Flags()
	fs.StringP("output", "o", "", "Output workbook (default <input>_geocoded.xlsx)")
	fs.String("sheet", "", "Sheet to process (default the active sheet)")
	fs.StringSlice("columns", batch.DefaultAddressColumns, "Address columns, in query order")
	fs.Int("save-every", 1, "Save after that many updated rows (0 = only at the end)")
	fs.Bool("retry-failed", false, "Retry processed rows that have no coordinates")
	fs.Int("h3-resolution", 0, "Also write the H3 cell at this resolution (0 = off)")
	addGeocoderFlags(fs)
}
