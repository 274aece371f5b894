// Copyright 2026 The Geocoder Authors
// SPDX-License-Identifier: Apache-2.0

// Package cache persists resolved addresses so that a run never geocodes the
// same address twice, across rows and across runs.
package cache

import (
	"path/filepath"
	"strings"

	"github.com/jairoivo/geocoder/spatial"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Backend names.
const (
	BackendJSON   = "json"
	BackendDuckDB = "duckdb"
)

// Store maps normalized addresses to points. Every Put is persisted before it
// returns.
type Store interface {
	Get(address string) (spatial.Point, bool, error)
	Put(address string, p spatial.Point) error
	Len() (int, error)
	// Each calls fn for every entry, ordered by address.
	Each(fn func(address string, p spatial.Point) error) error
	Close() error
}

// Backend returns the backend used for path: DuckDB for .duckdb and .db files,
// the JSON file otherwise.
func Backend(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".duckdb", ".db":
		return BackendDuckDB
	default:
		return BackendJSON
	}
}

// Open opens or creates the cache at path.
func Open(path string, logger *zap.Logger) (Store, error) {
	if path == "" {
		return nil, eris.New("cache path is empty")
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	switch Backend(path) {
	case BackendDuckDB:
		return OpenDuckDB(path)
	default:
		return OpenFile(path, logger)
	}
}

// Migrate copies every entry of src into dst and returns how many were copied.
func Migrate(dst, src Store) (int, error) {
	var n int

	err := src.Each(func(address string, p spatial.Point) error {
		if err := dst.Put(address, p); err != nil {
			return eris.Wrapf(err, "copying %q", address)
		}

		n++

		return nil
	})

	return n, err
}
