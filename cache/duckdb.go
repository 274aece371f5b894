// Copyright 2026 The Geocoder Authors
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"database/sql"
	"errors"
	"time"

	_ "github.com/duckdb/duckdb-go/v2" // register duckdb driver
	"github.com/jairoivo/geocoder/spatial"
	"github.com/rotisserie/eris"
)

// DuckDBStore keeps the cache in a DuckDB table.
type DuckDBStore struct {
	db     *sql.DB
	closer func() error
}

// OpenDuckDB opens or creates the DuckDB database at path. An empty path opens
// an in-memory database.
func OpenDuckDB(path string) (*DuckDBStore, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, eris.Wrapf(err, "opening duckdb %s", path)
	}

	s, err := NewDuckDBStore(db)
	if err != nil {
		return nil, errors.Join(err, db.Close())
	}

	s.closer = db.Close

	return s, nil
}

// NewDuckDBStore uses an already opened database. Closing the store leaves db
// open.
func NewDuckDBStore(db *sql.DB) (*DuckDBStore, error) {
	s := &DuckDBStore{db: db, closer: func() error { return nil }}
	if err := s.CreateSchema(); err != nil {
		return nil, err
	}

	return s, nil
}

// CreateSchema creates the cache table.
func (s *DuckDBStore) CreateSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS geocoding_cache (
			address VARCHAR PRIMARY KEY,
			latitude DOUBLE NOT NULL,
			longitude DOUBLE NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return eris.Wrap(err, "creating geocoding_cache table")
	}

	return nil
}

// DB returns the underlying database connection.
func (s *DuckDBStore) DB() *sql.DB {
	return s.db
}

// Get implements Store.
func (s *DuckDBStore) Get(address string) (spatial.Point, bool, error) {
	var p spatial.Point

	err := s.db.QueryRow(
		`SELECT latitude, longitude FROM geocoding_cache WHERE address = ?`,
		address,
	).Scan(&p.Lat, &p.Lng)
	if errors.Is(err, sql.ErrNoRows) {
		return spatial.Point{}, false, nil
	}

	if err != nil {
		return spatial.Point{}, false, eris.Wrapf(err, "reading cache entry %q", address)
	}

	return p, true, nil
}

// Put implements Store.
func (s *DuckDBStore) Put(address string, p spatial.Point) error {
	_, err := s.db.Exec(`
		INSERT INTO geocoding_cache (address, latitude, longitude, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (address) DO UPDATE SET
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			updated_at = excluded.updated_at
	`, address, p.Lat, p.Lng, time.Now())
	if err != nil {
		return eris.Wrapf(err, "writing cache entry %q", address)
	}

	return nil
}

// Len implements Store.
func (s *DuckDBStore) Len() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM geocoding_cache`).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "counting cache entries")
	}

	return n, nil
}

// Each implements Store.
func (s *DuckDBStore) Each(fn func(address string, p spatial.Point) error) error {
	rows, err := s.db.Query(`SELECT address, latitude, longitude FROM geocoding_cache ORDER BY address`)
	if err != nil {
		return eris.Wrap(err, "listing cache entries")
	}
	defer rows.Close()

	type row struct {
		address string
		point   spatial.Point
	}

	// Rows are buffered so fn may write to the same database.
	var all []row

	for rows.Next() {
		var r row
		if err := rows.Scan(&r.address, &r.point.Lat, &r.point.Lng); err != nil {
			return eris.Wrap(err, "scanning cache entry")
		}

		all = append(all, r)
	}

	if err := rows.Err(); err != nil {
		return eris.Wrap(err, "listing cache entries")
	}

	for _, r := range all {
		if err := fn(r.address, r.point); err != nil {
			return err
		}
	}

	return nil
}

// Close implements Store.
func (s *DuckDBStore) Close() error {
	return s.closer()
}
