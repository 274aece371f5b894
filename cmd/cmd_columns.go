// Copyright 2026 The Geocoder Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/jairoivo/geocoder/geocode"
	"github.com/jairoivo/geocoder/sheet"
	"github.com/spf13/cobra"
)

var columnsCmd = &cobra.Command{
	Use:   "columns <file.xlsx>",
	Short: "Lists the header columns of a spreadsheet",
	Long: `
Lists the header columns of a spreadsheet. Columns marked with * are the
configured address columns, numbered in query order.
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		header, err := sheet.Columns(args[0], cfg.Sheet.Name)
		if err != nil {
			return err
		}

		order := map[int]int{}

		if cols, err := geocode.ResolveColumns(header, cfg.Sheet.Columns); err == nil {
			for i, c := range cols {
				order[c] = i + 1
			}
		}

		out := cmd.OutOrStdout()

		for i, h := range header {
			if n, ok := order[i]; ok {
				fmt.Fprintf(out, "%3d  * %d  %s\n", i+1, n, h)
			} else {
				fmt.Fprintf(out, "%3d       %s\n", i+1, h)
			}
		}

		if len(order) == 0 {
			fmt.Fprintf(out, "\nThe configured address columns %q are not all present.\n", cfg.Sheet.Columns)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(columnsCmd)
	columnsCmd.Flags().String("sheet", "", "Sheet to read (default the active sheet)")
	columnsCmd.Flags().StringSlice("columns", nil, "Address columns to highlight")
}
