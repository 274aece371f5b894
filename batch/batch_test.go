// Copyright 2026 The Geocoder Authors
// SPDX-License-Identifier: Apache-2.0

package batch

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jairoivo/geocoder/geocode"
	"github.com/jairoivo/geocoder/sheet"
	"github.com/jairoivo/geocoder/spatial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeWorkbook(t *testing.T, dir string, rows [][]any) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}

	path := filepath.Join(dir, "enderecos.xlsx")
	require.NoError(t, f.SaveAs(path))

	return path
}

// fakeResolver answers from a table; unknown addresses fail.
type fakeResolver struct {
	points  map[string]spatial.Point
	cached  map[string]bool
	calls   []string
	onCall  func(n int)
	nextErr error
}

func (r *fakeResolver) Resolve(ctx context.Context, address string) (geocode.Outcome, error) {
	r.calls = append(r.calls, address)
	if r.onCall != nil {
		r.onCall(len(r.calls))
	}

	if err := ctx.Err(); err != nil {
		return geocode.Outcome{}, err
	}

	p, ok := r.points[address]
	if !ok {
		return geocode.Outcome{Attempts: 3}, fmt.Errorf("%w: nothing for %q", geocode.ErrLookupFailed, address)
	}

	return geocode.Outcome{Point: p, Cached: r.cached[address], Attempts: 1}, nil
}

var header = []any{"Rua / Avenida ", "Número ", "Bairro ", "CEP"}

func sampleRows() [][]any {
	return [][]any{
		header,
		{"Rua Augusta", 1500, "Consolação", "01304-001"},
		{"", "", "", ""},
		{"Rua Inexistente", 1, "Nenhum", "00000-000"},
		{"Rua Oscar Freire", 900, "Jardins", "01426-001"},
	}
}

func newResolver() *fakeResolver {
	return &fakeResolver{
		points: map[string]spatial.Point{
			"Rua Augusta 1500 Consolação 01304-001":  {Lat: -23.5577, Lng: -46.6617},
			"Rua Oscar Freire 900 Jardins 01426-001": {Lat: -23.5665, Lng: -46.6690},
		},
		cached: map[string]bool{"Rua Oscar Freire 900 Jardins 01426-001": true},
	}
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	input := writeWorkbook(t, dir, sampleRows())
	output := sheet.DefaultOutputPath(input)

	wb, err := sheet.Open(input, "")
	require.NoError(t, err)

	defer wb.Close()

	var ticks [][2]int

	d := &Driver{Resolver: newResolver(), Options: Options{SaveEvery: 1}}

	m, err := d.Run(context.Background(), wb, output, func(done, total int) {
		ticks = append(ticks, [2]int{done, total})
	})
	require.NoError(t, err)

	want := Metrics{Rows: 4, Empty: 1, CacheHits: 1, Fetched: 1, Failed: 1, Saves: 4}
	if diff := cmp.Diff(want, m); diff != "" {
		t.Errorf("metrics mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, [][2]int{{1, 4}, {2, 4}, {3, 4}, {4, 4}}, ticks)

	out, err := sheet.Open(output, "")
	require.NoError(t, err)

	defer out.Close()

	assert.Equal(t, []string{"Rua / Avenida ", "Número ", "Bairro ", "CEP", "Latitude", "Longitude", "Processed"}, out.Header())

	got := [][]string{}
	for _, row := range out.Rows() {
		got = append(got, row[4:])
	}

	wantRows := [][]string{
		{"-23.5577", "-46.6617", "TRUE"},
		{"", "", ""},
		{"", "", "TRUE"},
		{"-23.5665", "-46.669", "TRUE"},
	}
	if diff := cmp.Diff(wantRows, got); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestRunSaveCadence(t *testing.T) {
	// sampleRows has three rows to update and one without address.
	tests := []struct {
		saveEvery int
		saves     int
	}{
		{saveEvery: 0, saves: 1},
		{saveEvery: 1, saves: 4},
		{saveEvery: 2, saves: 2},
		{saveEvery: 3, saves: 2},
		{saveEvery: 5, saves: 1},
	}

	for _, tc := range tests {
		t.Run(fmt.Sprintf("every %d", tc.saveEvery), func(t *testing.T) {
			dir := t.TempDir()
			input := writeWorkbook(t, dir, sampleRows())

			wb, err := sheet.Open(input, "")
			require.NoError(t, err)

			defer wb.Close()

			d := &Driver{Resolver: newResolver(), Options: Options{SaveEvery: tc.saveEvery}}

			m, err := d.Run(context.Background(), wb, sheet.DefaultOutputPath(input), nil)
			require.NoError(t, err)

			assert.Equal(t, 3, m.Updated())
			assert.Equal(t, tc.saves, m.Saves)
		})
	}
}

func TestRunResumeSkipsProcessed(t *testing.T) {
	dir := t.TempDir()
	input := writeWorkbook(t, dir, sampleRows())
	output := sheet.DefaultOutputPath(input)

	wb, err := sheet.Open(input, "")
	require.NoError(t, err)

	first := newResolver()
	_, err = (&Driver{Resolver: first}).Run(context.Background(), wb, output, nil)
	require.NoError(t, err)
	require.NoError(t, wb.Close())
	assert.Len(t, first.calls, 3)

	wb, resumed, err := sheet.PrepareOutput(input, output, "")
	require.NoError(t, err)
	require.True(t, resumed)

	defer wb.Close()

	second := newResolver()
	m, err := (&Driver{Resolver: second}).Run(context.Background(), wb, output, nil)
	require.NoError(t, err)

	assert.Empty(t, second.calls)
	assert.Equal(t, 3, m.Skipped)
	assert.Equal(t, 1, m.Empty)
	assert.Equal(t, 1, m.Saves, "pass end save only")

	// Retrying failed rows revisits only the row without coordinates.
	third := newResolver()
	third.points["Rua Inexistente 1 Nenhum 00000-000"] = spatial.Point{Lat: -23.6, Lng: -46.7}

	m, err = (&Driver{Resolver: third, Options: Options{RetryFailed: true}}).Run(context.Background(), wb, output, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"Rua Inexistente 1 Nenhum 00000-000"}, third.calls)
	assert.Equal(t, 1, m.Fetched)
	assert.Equal(t, "-23.6", wb.Cell(2, 4))
}

func TestRunStopSavesProgress(t *testing.T) {
	dir := t.TempDir()
	input := writeWorkbook(t, dir, sampleRows())
	output := sheet.DefaultOutputPath(input)

	wb, err := sheet.Open(input, "")
	require.NoError(t, err)

	defer wb.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := newResolver()
	// The second lookup sees the stop request.
	r.onCall = func(n int) {
		if n == 2 {
			cancel()
		}
	}

	m, err := (&Driver{Resolver: r}).Run(ctx, wb, output, nil)
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, 1, m.Fetched)
	assert.Equal(t, 0, m.Failed)
	assert.Equal(t, 1, m.Saves)

	out, err := sheet.Open(output, "")
	require.NoError(t, err)

	defer out.Close()

	assert.True(t, sheet.IsTruthy(out.Cell(0, 6)))
	assert.False(t, sheet.IsTruthy(out.Cell(2, 6)), "interrupted row stays pending")
}

func TestRunH3Column(t *testing.T) {
	dir := t.TempDir()
	input := writeWorkbook(t, dir, sampleRows())

	wb, err := sheet.Open(input, "")
	require.NoError(t, err)

	defer wb.Close()

	d := &Driver{Resolver: newResolver(), Options: Options{H3Resolution: 9}}
	_, err = d.Run(context.Background(), wb, sheet.DefaultOutputPath(input), nil)
	require.NoError(t, err)

	col, ok := wb.Column(DefaultH3Column)
	require.True(t, ok)

	want, err := spatial.Point{Lat: -23.5577, Lng: -46.6617}.H3Cell(9)
	require.NoError(t, err)
	assert.Equal(t, want, wb.Cell(0, col))
	assert.Equal(t, "", wb.Cell(2, col))
}

func TestRunUnknownColumn(t *testing.T) {
	dir := t.TempDir()
	input := writeWorkbook(t, dir, sampleRows())

	wb, err := sheet.Open(input, "")
	require.NoError(t, err)

	defer wb.Close()

	d := &Driver{Resolver: newResolver(), Options: Options{AddressColumns: []string{"Cidade"}}}
	_, err = d.Run(context.Background(), wb, sheet.DefaultOutputPath(input), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Cidade")
}

func TestMetricsMerge(t *testing.T) {
	m := Metrics{Rows: 1, Fetched: 1, Saves: 1}
	m.Merge(Metrics{Rows: 2, Failed: 1, CacheHits: 1, Saves: 2})

	assert.Equal(t, Metrics{Rows: 3, Fetched: 1, Failed: 1, CacheHits: 1, Saves: 3}, m)
	assert.Equal(t, 3, m.Updated())
	assert.Equal(t, "rows=3 skipped=0 empty=0 cache_hits=1 fetched=1 failed=1 saves=3", m.String())
}
