// Copyright 2026 The Geocoder Authors
// SPDX-License-Identifier: Apache-2.0

// Package sheet reads and writes the geocoded workbook. Row 1 is the header;
// data rows are addressed with 0-based indexes.
package sheet

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jairoivo/geocoder/utils/textutils"
	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedFormat is returned for workbooks excelize cannot read.
var ErrUnsupportedFormat = errors.New("unsupported workbook format")

var writableExt = map[string]bool{
	".xlsx": true,
	".xlsm": true,
}

// Workbook is one sheet of an excelize workbook, mirrored in memory.
type Workbook struct {
	f      *excelize.File
	path   string
	sheet  string
	header []string
	rows   [][]string
}

// Open opens sheetName of the workbook at path, or the first sheet when
// sheetName is empty.
func Open(path, sheetName string) (*Workbook, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !writableExt[ext] {
		return nil, eris.Wrapf(ErrUnsupportedFormat, "%s: want .xlsx or .xlsm, got %q", path, ext)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "opening %s", path)
	}

	wb, err := load(f, path, sheetName)
	if err != nil {
		_ = f.Close()

		return nil, err
	}

	return wb, nil
}

func load(f *excelize.File, path, sheetName string) (*Workbook, error) {
	if sheetName == "" {
		sheetName = f.GetSheetName(f.GetActiveSheetIndex())
		if sheetName == "" {
			sheetName = f.GetSheetName(0)
		}
	}

	idx, err := f.GetSheetIndex(sheetName)
	if err != nil || idx < 0 {
		return nil, eris.Errorf("sheet %q not found in %s (have %q)", sheetName, path, f.GetSheetList())
	}

	all, err := f.GetRows(sheetName)
	if err != nil {
		return nil, eris.Wrapf(err, "reading rows of %s", sheetName)
	}

	if len(all) == 0 {
		return nil, eris.Errorf("sheet %q of %s has no header row", sheetName, path)
	}

	// GetRows trims trailing empty cells, so data can reach past the header.
	// Unnamed columns keep their place and new columns go after them.
	header := all[0]
	for _, row := range all[1:] {
		if len(row) > len(header) {
			header = append(header, make([]string, len(row)-len(header))...)
		}
	}

	wb := &Workbook{
		f:      f,
		path:   path,
		sheet:  sheetName,
		header: header,
		rows:   all[1:],
	}
	wb.pad()

	return wb, nil
}

// pad makes every row as wide as the header.
func (w *Workbook) pad() {
	for i, row := range w.rows {
		if len(row) < len(w.header) {
			padded := make([]string, len(w.header))
			copy(padded, row)
			w.rows[i] = padded
		}
	}
}

// Path the workbook was opened from.
func (w *Workbook) Path() string { return w.path }

// SheetName is the sheet being processed.
func (w *Workbook) SheetName() string { return w.sheet }

// Header returns a copy of the header row.
func (w *Workbook) Header() []string {
	return append([]string(nil), w.header...)
}

// Len is the number of data rows.
func (w *Workbook) Len() int { return len(w.rows) }

// Row returns data row i. The returned slice must not be modified.
func (w *Workbook) Row(i int) []string { return w.rows[i] }

// Rows returns the data rows, each padded to the header width.
func (w *Workbook) Rows() [][]string { return w.rows }

// Cell returns the value at data row i, column col.
func (w *Workbook) Cell(i, col int) string {
	if i < 0 || i >= len(w.rows) || col < 0 || col >= len(w.rows[i]) {
		return ""
	}

	return w.rows[i][col]
}

// Column returns the index of the header column named name. Names are
// compared exactly first, then ignoring accents, case and spacing.
func (w *Workbook) Column(name string) (int, bool) {
	if strings.TrimSpace(name) == "" {
		return -1, false
	}

	for i, h := range w.header {
		if h == name {
			return i, true
		}
	}

	folded := textutils.LowerASCIIFolding(name)
	if folded == "" {
		return -1, false
	}

	for i, h := range w.header {
		if textutils.LowerASCIIFolding(h) == folded {
			return i, true
		}
	}

	return -1, false
}

// EnsureColumn returns the index of column name, appending it to the header
// when missing.
func (w *Workbook) EnsureColumn(name string) (int, error) {
	if i, ok := w.Column(name); ok {
		return i, nil
	}

	col := len(w.header)

	cell, err := excelize.CoordinatesToCellName(col+1, 1)
	if err != nil {
		return -1, eris.Wrap(err, "adding column")
	}

	if err := w.f.SetCellStr(w.sheet, cell, name); err != nil {
		return -1, eris.Wrapf(err, "adding column %q", name)
	}

	w.header = append(w.header, name)
	w.pad()

	return col, nil
}

func (w *Workbook) cellName(i, col int) (string, error) {
	if i < 0 || i >= len(w.rows) {
		return "", eris.Errorf("row %d out of range [0, %d)", i, len(w.rows))
	}

	if col < 0 || col >= len(w.header) {
		return "", eris.Errorf("column %d out of range [0, %d)", col, len(w.header))
	}

	// Data row 0 is sheet row 2.
	return excelize.CoordinatesToCellName(col+1, i+2)
}

// SetFloat writes a number.
func (w *Workbook) SetFloat(i, col int, v float64) error {
	cell, err := w.cellName(i, col)
	if err != nil {
		return err
	}

	if err := w.f.SetCellFloat(w.sheet, cell, v, -1, 64); err != nil {
		return eris.Wrapf(err, "writing %s", cell)
	}

	w.rows[i][col] = strconv.FormatFloat(v, 'f', -1, 64)

	return nil
}

// SetString writes text.
func (w *Workbook) SetString(i, col int, v string) error {
	cell, err := w.cellName(i, col)
	if err != nil {
		return err
	}

	if err := w.f.SetCellStr(w.sheet, cell, v); err != nil {
		return eris.Wrapf(err, "writing %s", cell)
	}

	w.rows[i][col] = v

	return nil
}

// SetBool writes a boolean.
func (w *Workbook) SetBool(i, col int, v bool) error {
	cell, err := w.cellName(i, col)
	if err != nil {
		return err
	}

	if err := w.f.SetCellBool(w.sheet, cell, v); err != nil {
		return eris.Wrapf(err, "writing %s", cell)
	}

	w.rows[i][col] = strings.ToUpper(strconv.FormatBool(v))

	return nil
}

// Clear empties a cell.
func (w *Workbook) Clear(i, col int) error {
	return w.SetString(i, col, "")
}

// Save writes the workbook to path through a temporary file in the same
// directory, so an interrupted save leaves the previous file intact.
func (w *Workbook) Save(path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	if !writableExt[ext] {
		return eris.Wrapf(ErrUnsupportedFormat, "saving %s", path)
	}

	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return eris.Wrap(err, "creating temporary workbook")
	}

	defer os.Remove(tmp.Name())

	// WriteTo derives the content type from the workbook path.
	w.f.Path = path

	if _, err := w.f.WriteTo(tmp); err != nil {
		_ = tmp.Close()

		return eris.Wrapf(err, "writing %s", path)
	}

	if err := tmp.Close(); err != nil {
		return eris.Wrapf(err, "writing %s", path)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return eris.Wrapf(err, "replacing %s", path)
	}

	w.path = path

	return nil
}

// Close releases the workbook.
func (w *Workbook) Close() error {
	return w.f.Close()
}

// DefaultOutputPath is <input without extension>_geocoded.xlsx.
func DefaultOutputPath(input string) string {
	return strings.TrimSuffix(input, filepath.Ext(input)) + "_geocoded.xlsx"
}

// PrepareOutput returns the workbook to process. When output already exists
// it is opened, so an interrupted run resumes where it stopped; otherwise
// input is opened and will be saved as output. resumed reports which one.
func PrepareOutput(input, output, sheetName string) (wb *Workbook, resumed bool, err error) {
	if output == "" {
		output = DefaultOutputPath(input)
	}

	if _, err := os.Stat(output); err == nil && filepath.Clean(output) != filepath.Clean(input) {
		wb, err := Open(output, sheetName)

		return wb, true, err
	} else if err != nil && !os.IsNotExist(err) {
		return nil, false, eris.Wrapf(err, "checking %s", output)
	}

	wb, err = Open(input, sheetName)

	return wb, false, err
}

// Columns lists the named header columns of sheetName in the workbook at
// path. Unnamed columns are left out.
func Columns(path, sheetName string) ([]string, error) {
	wb, err := Open(path, sheetName)
	if err != nil {
		return nil, err
	}
	defer wb.Close()

	columns := make([]string, 0, len(wb.header))

	for _, h := range wb.header {
		if strings.TrimSpace(h) != "" {
			columns = append(columns, h)
		}
	}

	return columns, nil
}

// IsTruthy interprets a processed flag cell.
func IsTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes", "y", "sim", "s", "x", "verdadeiro":
		return true
	default:
		return false
	}
}
