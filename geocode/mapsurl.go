// Copyright 2026 The Geocoder Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/jairoivo/geocoder/spatial"
	"github.com/rotisserie/eris"
)

// DefaultSearchBase is the Google Maps search endpoint.
const DefaultSearchBase = "https://www.google.com/maps/search/"

// SearchURL returns the map search URL for address: every word is escaped and
// words are joined with '+'.
func SearchURL(base, address string) string {
	if base == "" {
		base = DefaultSearchBase
	}

	words := strings.Fields(address)
	for i, w := range words {
		words[i] = url.QueryEscape(w)
	}

	return base + strings.Join(words, "+")
}

// ParseMapsURL extracts the coordinates embedded after the '@' of a Google Maps
// URL, e.g. https://www.google.com/maps/place/.../@-23.5613,-46.6565,17z/data=!3m1.
func ParseMapsURL(raw string) (spatial.Point, error) {
	_, after, ok := strings.Cut(raw, "@")
	if !ok {
		return spatial.Point{}, eris.Wrapf(ErrNoCoordinates, "no '@' in %q", raw)
	}

	fields := strings.Split(after, ",")
	if len(fields) < 2 {
		return spatial.Point{}, eris.Wrapf(ErrNoCoordinates, "expected lat,lng after '@' in %q", raw)
	}

	lng := fields[1]
	if i := strings.IndexAny(lng, "!/?"); i != -1 {
		lng = lng[:i]
	}

	return parsePoint(fields[0], lng)
}

// parseStaticMapCenter extracts the center parameter of a static map URL, as
// found in the og:image of a Google Maps page.
func parseStaticMapCenter(raw string) (spatial.Point, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return spatial.Point{}, eris.Wrapf(ErrNoCoordinates, "parsing %q: %v", raw, err)
	}

	lat, lng, ok := strings.Cut(u.Query().Get("center"), ",")
	if !ok {
		return spatial.Point{}, eris.Wrapf(ErrNoCoordinates, "no center in %q", raw)
	}

	return parsePoint(lat, lng)
}

func parsePoint(latStr, lngStr string) (spatial.Point, error) {
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return spatial.Point{}, eris.Wrapf(ErrNoCoordinates, "invalid latitude %q", latStr)
	}

	lng, err := strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
	if err != nil {
		return spatial.Point{}, eris.Wrapf(ErrNoCoordinates, "invalid longitude %q", lngStr)
	}

	p := spatial.Point{Lat: lat, Lng: lng}
	if err := p.Validate(); err != nil {
		return spatial.Point{}, eris.Wrapf(ErrNoCoordinates, "%v", err)
	}

	return p, nil
}
