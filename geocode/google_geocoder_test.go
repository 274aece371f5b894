// Copyright 2026 The Geocoder Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGoogleAPIServer(t *testing.T, status int, body string) (*GoogleMapsGeocoder, *url.Values) {
	t.Helper()

	var last url.Values

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		last = r.URL.Query()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	g := NewGoogleMapsGeocoder("test-key", "br", "pt-BR", srv.Client())
	g.endpoint = srv.URL

	return g, &last
}

func TestGoogleMapsGeocoderOK(t *testing.T) {
	g, last := newGoogleAPIServer(t, http.StatusOK, `{
		"status": "OK",
		"results": [{
			"formatted_address": "R. Augusta, 1500 - Consolação, São Paulo - SP, 01304-001, Brazil",
			"geometry": {"location": {"lat": -23.5577, "lng": -46.6617}, "location_type": "ROOFTOP"}
		}]
	}`)

	res, err := g.Geocode(context.Background(), "Rua Augusta 1500")
	require.NoError(t, err)

	assert.InDelta(t, -23.5577, res.Point.Lat, 1e-9)
	assert.InDelta(t, -46.6617, res.Point.Lng, 1e-9)
	assert.Equal(t, "high", res.Confidence)
	assert.Equal(t, ProviderGoogleAPI, res.Provider)
	assert.Contains(t, res.DisplayName, "Consolação")

	q := *last
	assert.Equal(t, "Rua Augusta 1500", q.Get("address"))
	assert.Equal(t, "test-key", q.Get("key"))
	assert.Equal(t, "br", q.Get("region"))
	assert.Equal(t, "pt-BR", q.Get("language"))
}

func TestGoogleMapsGeocoderStatuses(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantType  ErrorType
		retryable bool
	}{
		{"zero results", http.StatusOK, `{"status":"ZERO_RESULTS","results":[]}`, ErrorTypeNotFound, false},
		{"over query limit", http.StatusOK, `{"status":"OVER_QUERY_LIMIT"}`, ErrorTypeRateLimit, true},
		{"request denied", http.StatusOK, `{"status":"REQUEST_DENIED","error_message":"bad key"}`, ErrorTypeQuotaExceeded, false},
		{"invalid request", http.StatusOK, `{"status":"INVALID_REQUEST"}`, ErrorTypeInvalidRequest, false},
		{"http 503", http.StatusServiceUnavailable, ``, ErrorTypeNetworkError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _ := newGoogleAPIServer(t, tt.status, tt.body)

			_, err := g.Geocode(context.Background(), "x")
			require.Error(t, err)

			var geoErr *GeocodingError
			require.ErrorAs(t, err, &geoErr)
			assert.Equal(t, tt.wantType, geoErr.Type)
			assert.Equal(t, tt.retryable, IsRetryable(err))
		})
	}
}
