// Copyright 2026 The Geocoder Authors
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/jairoivo/geocoder/geocode"
	"github.com/jairoivo/geocoder/spatial"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// entry is the on-disk shape of a cached point.
type entry struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// rawEntry accepts numbers as well as numeric strings.
type rawEntry struct {
	Latitude  json.RawMessage `json:"latitude"`
	Longitude json.RawMessage `json:"longitude"`
}

func parseCoord(raw json.RawMessage) (float64, error) {
	s := strings.TrimSpace(string(raw))
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unquoted)
	}

	return strconv.ParseFloat(s, 64)
}

// FileStore keeps the whole cache in memory and rewrites the JSON file after
// every Put.
type FileStore struct {
	mu      sync.Mutex
	path    string
	entries map[string]spatial.Point
	logger  *zap.Logger
}

// OpenFile loads the JSON cache at path. A missing file yields an empty cache
// and is created. An unreadable file is moved aside to <path>.corrupt.
func OpenFile(path string, logger *zap.Logger) (*FileStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &FileStore{
		path:    filepath.Clean(path),
		entries: make(map[string]spatial.Point),
		logger:  logger,
	}

	data, err := os.ReadFile(s.path)

	switch {
	case os.IsNotExist(err):
		logger.Info("creating cache file", zap.String("path", s.path))

		return s, s.save()
	case err != nil:
		return nil, eris.Wrap(err, "reading cache file")
	}

	if err := s.decode(data); err != nil {
		aside := s.path + ".corrupt"
		logger.Warn("cache file is corrupted, starting empty",
			zap.String("path", s.path),
			zap.String("moved_to", aside),
			zap.Error(err))

		if err := os.Rename(s.path, aside); err != nil {
			return nil, eris.Wrap(err, "moving corrupted cache aside")
		}

		s.entries = make(map[string]spatial.Point)

		return s, s.save()
	}

	logger.Debug("cache loaded", zap.String("path", s.path), zap.Int("entries", len(s.entries)))

	return s, nil
}

func (s *FileStore) decode(data []byte) error {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}

	var raw map[string]rawEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return eris.Wrap(err, "decoding cache")
	}

	rekeyed := 0

	for address, r := range raw {
		lat, latErr := parseCoord(r.Latitude)
		lng, lngErr := parseCoord(r.Longitude)
		p := spatial.Point{Lat: lat, Lng: lng}

		if latErr != nil || lngErr != nil || p.Validate() != nil {
			s.logger.Warn("dropping invalid cache entry",
				zap.String("address", address),
				zap.ByteString("latitude", r.Latitude),
				zap.ByteString("longitude", r.Longitude))

			continue
		}

		// Older files were keyed on the raw joined cells.
		key := geocode.NormalizeAddress(address)
		if key == "" {
			continue
		}

		if _, dup := s.entries[key]; dup && key != address {
			continue
		}

		if key != address {
			rekeyed++
		}

		s.entries[key] = p
	}

	if rekeyed > 0 {
		s.logger.Info("normalized cache keys", zap.String("path", s.path), zap.Int("entries", rekeyed))
	}

	return nil
}

// save writes the cache to a temporary file and renames it over the target,
// so a crash never leaves a truncated cache behind.
func (s *FileStore) save() error {
	out := make(map[string]entry, len(s.entries))
	for address, p := range s.entries {
		out[address] = entry{Latitude: p.Lat, Longitude: p.Lng}
	}

	data, err := json.MarshalIndent(out, "", "    ")
	if err != nil {
		return eris.Wrap(err, "encoding cache")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return eris.Wrap(err, "creating cache directory")
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return eris.Wrap(err, "creating temporary cache file")
	}

	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()

		return eris.Wrap(err, "writing cache file")
	}

	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "closing cache file")
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return eris.Wrap(err, "replacing cache file")
	}

	return nil
}

// Path of the JSON file.
func (s *FileStore) Path() string {
	return s.path
}

// Get implements Store.
func (s *FileStore) Get(address string) (spatial.Point, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.entries[address]

	return p, ok, nil
}

// Put implements Store.
func (s *FileStore) Put(address string, p spatial.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[address] = p

	return s.save()
}

// Len implements Store.
func (s *FileStore) Len() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.entries), nil
}

// Each implements Store.
func (s *FileStore) Each(fn func(address string, p spatial.Point) error) error {
	s.mu.Lock()

	addresses := make([]string, 0, len(s.entries))
	for address := range s.entries {
		addresses = append(addresses, address)
	}

	snapshot := make(map[string]spatial.Point, len(s.entries))
	for k, v := range s.entries {
		snapshot[k] = v
	}
	s.mu.Unlock()

	sort.Strings(addresses)

	for _, address := range addresses {
		if err := fn(address, snapshot[address]); err != nil {
			return err
		}
	}

	return nil
}

// Close implements Store. Entries are already on disk.
func (s *FileStore) Close() error {
	return nil
}
