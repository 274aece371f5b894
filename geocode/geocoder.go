// Copyright 2026 The Geocoder Authors
// SPDX-License-Identifier: Apache-2.0

// Package geocode turns normalized address strings into coordinates. It holds
// the address normalizer, the Google Maps URL codec, the providers and the
// cache-backed lookup with bounded retries.
package geocode

import (
	"context"

	"github.com/jairoivo/geocoder/spatial"
)

// Provider names accepted by NewGeocoder.
const (
	ProviderBrowser   = "browser"
	ProviderStatic    = "static"
	ProviderGoogleAPI = "google-api"
)

// Result represents a geocoding result from any provider.
type Result struct {
	Point       spatial.Point
	Confidence  string // high, medium, low
	Provider    string
	DisplayName string
	URL         string
}

// Geocoder interface for different geocoding providers.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*Result, error)
}

// GeocoderFunc adapts a function to the Geocoder interface.
type GeocoderFunc func(ctx context.Context, address string) (*Result, error)

// Geocode implements Geocoder.
func (f GeocoderFunc) Geocode(ctx context.Context, address string) (*Result, error) {
	return f(ctx, address)
}
