// Copyright 2026 The Geocoder Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"strings"

	"github.com/jairoivo/geocoder/utils/textutils"
	"github.com/rotisserie/eris"
	"golang.org/x/text/unicode/norm"
)

// placeholders are cell renderings of missing values left behind by other
// spreadsheet tools.
var placeholders = map[string]bool{
	"nan":  true,
	"NaN":  true,
	"None": true,
}

// NormalizeAddress joins address parts into the query string used both for
// the map search and as cache key. Blank parts and placeholder words are
// dropped and whitespace runs collapse into a single space. Normalizing an
// already joined address gives back the same key.
func NormalizeAddress(parts ...string) string {
	fields := make([]string, 0, len(parts))

	for _, part := range parts {
		for _, field := range strings.Fields(norm.NFC.String(part)) {
			if !placeholders[field] {
				fields = append(fields, field)
			}
		}
	}

	return strings.Join(fields, " ")
}

// Normalizer builds addresses from spreadsheet rows.
type Normalizer struct {
	// Columns are the 0-based cell indexes, in query order.
	Columns []int
}

// Address returns the normalized address of row. Missing trailing cells are
// treated as blank.
func (n Normalizer) Address(row []string) string {
	parts := make([]string, 0, len(n.Columns))

	for _, col := range n.Columns {
		if col >= 0 && col < len(row) {
			parts = append(parts, row[col])
		}
	}

	return NormalizeAddress(parts...)
}

// ResolveColumns maps column names to header indexes. Exact matches win;
// otherwise names are compared ignoring accents, case and spacing, so that
// "Rua / Avenida" finds a "Rua / Avenida " header.
func ResolveColumns(header, names []string) ([]int, error) {
	if len(names) == 0 {
		return nil, eris.New("no address columns configured")
	}

	folded := make(map[string]int, len(header))

	for i := len(header) - 1; i >= 0; i-- {
		folded[textutils.LowerASCIIFolding(header[i])] = i
	}

	cols := make([]int, 0, len(names))

	for _, name := range names {
		idx := -1

		for i, h := range header {
			if h == name {
				idx = i

				break
			}
		}

		if idx < 0 {
			if i, ok := folded[textutils.LowerASCIIFolding(name)]; ok && strings.TrimSpace(name) != "" {
				idx = i
			}
		}

		if idx < 0 {
			return nil, eris.Errorf("column %q not found in header %q", name, header)
		}

		cols = append(cols, idx)
	}

	return cols, nil
}

// NewNormalizer resolves names against header and returns the Normalizer for
// those columns.
func NewNormalizer(header, names []string) (Normalizer, error) {
	cols, err := ResolveColumns(header, names)
	if err != nil {
		return Normalizer{}, err
	}

	return Normalizer{Columns: cols}, nil
}
