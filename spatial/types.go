// Copyright 2026 The Geocoder Authors
// SPDX-License-Identifier: Apache-2.0

// Package spatial holds coordinates and bounding boxes.
package spatial

import (
	"fmt"

	"github.com/uber/h3-go/v4"
)

// Point represents a geographical point with latitude and longitude.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// String returns a string representation of the Point.
func (p Point) String() string {
	return fmt.Sprintf("%f,%f", p.Lat, p.Lng)
}

// Validate checks the point is on the globe.
func (p Point) Validate() error {
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("latitude must be between -90 and 90 (got %f)", p.Lat)
	}

	if p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("longitude must be between -180 and 180 (got %f)", p.Lng)
	}

	return nil
}

// H3Cell returns the hexadecimal H3 index of the cell containing the point.
func (p Point) H3Cell(res int) (string, error) {
	if res < 0 || res > 15 {
		return "", fmt.Errorf("h3 resolution must be between 0 and 15 (got %d)", res)
	}

	cell, err := h3.LatLngToCell(h3.NewLatLng(p.Lat, p.Lng), res)
	if err != nil {
		return "", fmt.Errorf("converting %s to h3 cell at res %d: %w", p, res, err)
	}

	return cell.String(), nil
}

// Bounds is a latitude/longitude box. The zero value contains every point.
type Bounds struct {
	MinLat float64 `mapstructure:"min_lat"`
	MaxLat float64 `mapstructure:"max_lat"`
	MinLng float64 `mapstructure:"min_lng"`
	MaxLng float64 `mapstructure:"max_lng"`
}

// IsZero reports whether no limits are configured.
func (b Bounds) IsZero() bool {
	return b == Bounds{}
}

// Contains reports whether p lies inside the box, edges included.
func (b Bounds) Contains(p Point) bool {
	if b.IsZero() {
		return true
	}

	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat &&
		p.Lng >= b.MinLng && p.Lng <= b.MaxLng
}
