// Copyright 2026 The Geocoder Authors
// SPDX-License-Identifier: Apache-2.0

// Package batch geocodes every pending row of a workbook. Progress is written
// to the output workbook as it goes, so a stopped or crashed run resumes where
// it left off.
package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jairoivo/geocoder/geocode"
	"github.com/jairoivo/geocoder/sheet"
	"github.com/jairoivo/geocoder/spatial"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Default output columns.
const (
	DefaultLatitudeColumn  = "Latitude"
	DefaultLongitudeColumn = "Longitude"
	DefaultProcessedColumn = "Processed"
	DefaultH3Column        = "H3"
)

// DoneMessage is reported when a run went through every row.
const DoneMessage = "The spreadsheet has been updated with latitude and longitude coordinates."

// DefaultAddressColumns are the address columns of the Brazilian address lists the tool was built for.
var DefaultAddressColumns = []string{"Rua / Avenida", "Número", "Bairro", "CEP"}

// Resolver resolves a normalized address.
type Resolver interface {
	Resolve(ctx context.Context, address string) (geocode.Outcome, error)
}

// Options configures a run.
type Options struct {
	AddressColumns  []string
	LatitudeColumn  string
	LongitudeColumn string
	ProcessedColumn string
	H3Column        string
	// H3Resolution of the cell written to H3Column. 0 disables the column.
	H3Resolution int
	// SaveEvery saves the workbook after that many updated rows. 0 saves
	// only when the pass ends.
	SaveEvery int
	// RetryFailed revisits processed rows that have no latitude.
	RetryFailed bool
}

func (o Options) withDefaults() Options {
	if len(o.AddressColumns) == 0 {
		o.AddressColumns = DefaultAddressColumns
	}

	if o.LatitudeColumn == "" {
		o.LatitudeColumn = DefaultLatitudeColumn
	}

	if o.LongitudeColumn == "" {
		o.LongitudeColumn = DefaultLongitudeColumn
	}

	if o.ProcessedColumn == "" {
		o.ProcessedColumn = DefaultProcessedColumn
	}

	if o.H3Column == "" {
		o.H3Column = DefaultH3Column
	}

	return o
}

// Metrics counts what a run did.
type Metrics struct {
	Rows      int `json:"rows"`
	Skipped   int `json:"skipped"`
	Empty     int `json:"empty"`
	CacheHits int `json:"cache_hits"`
	Fetched   int `json:"fetched"`
	Failed    int `json:"failed"`
	Saves     int `json:"saves"`
}

// Merge adds other to m.
func (m *Metrics) Merge(other Metrics) {
	m.Rows += other.Rows
	m.Skipped += other.Skipped
	m.Empty += other.Empty
	m.CacheHits += other.CacheHits
	m.Fetched += other.Fetched
	m.Failed += other.Failed
	m.Saves += other.Saves
}

// Updated is the number of rows written by the run.
func (m Metrics) Updated() int {
	return m.CacheHits + m.Fetched + m.Failed
}

func (m Metrics) String() string {
	return fmt.Sprintf("rows=%d skipped=%d empty=%d cache_hits=%d fetched=%d failed=%d saves=%d",
		m.Rows, m.Skipped, m.Empty, m.CacheHits, m.Fetched, m.Failed, m.Saves)
}

// ProgressFunc is called after every row with the number of rows handled so
// far and the total number of data rows.
type ProgressFunc func(done, total int)

// Driver runs the batch loop.
type Driver struct {
	Resolver Resolver
	Options  Options
	Logger   *zap.Logger
}

type columns struct {
	lat, lng, processed, h3 int
}

// Run geocodes the pending rows of wb and saves it to output. When ctx is
// cancelled the rows done so far are saved and ctx.Err() is returned.
func (d *Driver) Run(ctx context.Context, wb *sheet.Workbook, output string, progress ProgressFunc) (Metrics, error) {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := d.Options.withDefaults()

	var m Metrics

	normalizer, err := geocode.NewNormalizer(wb.Header(), opts.AddressColumns)
	if err != nil {
		return m, err
	}

	cols, err := ensureColumns(wb, opts)
	if err != nil {
		return m, err
	}

	save := func() error {
		if err := wb.Save(output); err != nil {
			return err
		}

		m.Saves++

		return nil
	}

	total := wb.Len()
	pending := 0

	logger.Info("starting batch",
		zap.String("input", wb.Path()),
		zap.String("output", output),
		zap.Int("rows", total))

	for i := range total {
		if ctx.Err() != nil {
			break
		}

		m.Rows++

		if d.isDone(wb, i, cols, opts) {
			m.Skipped++
			report(progress, i+1, total)

			continue
		}

		address := normalizer.Address(wb.Row(i))
		if address == "" {
			m.Empty++
			report(progress, i+1, total)

			continue
		}

		out, err := d.Resolver.Resolve(ctx, address)
		if err != nil && errors.Is(err, ctx.Err()) {
			// Stopped mid-lookup; the row stays pending.
			m.Rows--

			break
		}

		if err := d.write(wb, i, cols, opts, out, err, logger); err != nil {
			return m, err
		}

		switch {
		case err != nil:
			m.Failed++
		case out.Cached:
			m.CacheHits++
		default:
			m.Fetched++
		}

		pending++
		if opts.SaveEvery > 0 && pending >= opts.SaveEvery {
			if err := save(); err != nil {
				return m, err
			}

			pending = 0
		}

		report(progress, i+1, total)
	}

	if err := save(); err != nil {
		return m, err
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		logger.Info("batch stopped", zap.Stringer("metrics", m))

		return m, ctxErr
	}

	logger.Info("batch finished", zap.Stringer("metrics", m))

	return m, nil
}

func report(progress ProgressFunc, done, total int) {
	if progress != nil {
		progress(done, total)
	}
}

func ensureColumns(wb *sheet.Workbook, opts Options) (columns, error) {
	cols := columns{h3: -1}

	var err error

	if cols.lat, err = wb.EnsureColumn(opts.LatitudeColumn); err != nil {
		return cols, err
	}

	if cols.lng, err = wb.EnsureColumn(opts.LongitudeColumn); err != nil {
		return cols, err
	}

	if cols.processed, err = wb.EnsureColumn(opts.ProcessedColumn); err != nil {
		return cols, err
	}

	if opts.H3Resolution > 0 {
		if cols.h3, err = wb.EnsureColumn(opts.H3Column); err != nil {
			return cols, err
		}
	}

	return cols, nil
}

func (d *Driver) isDone(wb *sheet.Workbook, i int, cols columns, opts Options) bool {
	if !sheet.IsTruthy(wb.Cell(i, cols.processed)) {
		return false
	}

	if opts.RetryFailed && strings.TrimSpace(wb.Cell(i, cols.lat)) == "" {
		return false
	}

	return true
}

// write stores the outcome of row i. Failed rows get empty coordinates and
// are flagged as processed all the same.
func (d *Driver) write(wb *sheet.Workbook, i int, cols columns, opts Options,
	out geocode.Outcome, lookupErr error, logger *zap.Logger,
) error {
	var errs []error

	if lookupErr != nil {
		logger.Warn("row failed",
			zap.Int("row", i+2),
			zap.Int("attempts", out.Attempts),
			zap.Error(lookupErr))

		errs = append(errs, wb.Clear(i, cols.lat), wb.Clear(i, cols.lng))
		if cols.h3 >= 0 {
			errs = append(errs, wb.Clear(i, cols.h3))
		}
	} else {
		logger.Debug("row geocoded",
			zap.Int("row", i+2),
			zap.Stringer("point", out.Point),
			zap.Bool("cached", out.Cached))

		errs = append(errs, wb.SetFloat(i, cols.lat, out.Point.Lat), wb.SetFloat(i, cols.lng, out.Point.Lng))
		if cols.h3 >= 0 {
			errs = append(errs, writeH3(wb, i, cols.h3, out.Point, opts.H3Resolution))
		}
	}

	errs = append(errs, wb.SetBool(i, cols.processed, true))

	if err := errors.Join(errs...); err != nil {
		return eris.Wrapf(err, "updating row %d", i+2)
	}

	return nil
}

func writeH3(wb *sheet.Workbook, i, col int, p spatial.Point, res int) error {
	cell, err := p.H3Cell(res)
	if err != nil {
		return err
	}

	return wb.SetString(i, col, cell)
}
