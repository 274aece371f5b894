// Copyright 2026 The Geocoder Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/jairoivo/geocoder/geocode"
	"github.com/jairoivo/geocoder/utils/htmlutils"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Dev tools",
}

var debugURLCmd = &cobra.Command{
	Use:   "url",
	Short: "Extracts coordinates from Google Maps URLs",
	Long: `Reads one Google Maps URL per line and prints the URL followed by the
coordinates the geocoder would take from it.

$ echo 'https://www.google.com/maps/place/X/@-23.5505,-46.6333,17z' | geocoder debug url
https://www.google.com/maps/place/X/@-23.5505,-46.6333,17z	-23.550500,-46.633300
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if isatty.IsTerminal(os.Stdin.Fd()) {
			fmt.Fprintln(os.Stderr, "Enter Google Maps URLs, one per line…")
		}

		out := cmd.OutOrStdout()
		scanner := bufio.NewScanner(cmd.InOrStdin())

		for scanner.Scan() {
			raw := scanner.Text()
			if raw == "" {
				continue
			}

			p, err := geocode.ParseMapsURL(raw)
			if err != nil {
				fmt.Fprintf(out, "%s\t%q\n", raw, err)
			} else {
				fmt.Fprintf(out, "%s\t%s\n", raw, p)
			}
		}

		return scanner.Err()
	},
}

var debugPageCmd = &cobra.Command{
	Use:   "page [file]",
	Short: "Reads a saved map search page the way the static provider does",
	Long: `Reads an HTML map search page from a file or from stdin and prints the
point of its map preview.

Examples:
  curl -s 'https://www.google.com/maps/search/?api=1&query=Av+Paulista' | geocoder debug page
  geocoder debug page ./search.html`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var r io.Reader = cmd.InOrStdin()

		if len(args) > 0 {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			r = f
		} else if isatty.IsTerminal(os.Stdin.Fd()) {
			fmt.Fprintln(os.Stderr, "Reading from stdin. Paste HTML and press Ctrl+D to finish.")
		}

		node, err := htmlutils.AsNode(r)
		if err != nil {
			return err
		}

		res, err := geocode.PreviewResult(node)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "name:  %s\n", res.DisplayName)
		fmt.Fprintf(out, "point: %s\n", res.Point)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(debugCmd)
	debugCmd.AddCommand(debugURLCmd)
	debugCmd.AddCommand(debugPageCmd)
}
