// Copyright 2026 The Geocoder Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jairoivo/geocoder/spatial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStaticServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/maps/search/", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/maps/search/Rua+Augusta+1500", "/maps/search/Rua Augusta 1500":
			http.Redirect(w, r, "/maps/place/Rua+Augusta/@-23.5577133,-46.6617336,17z/data=!3m1", http.StatusFound)
		case "/maps/search/Consolação", "/maps/search/Consola%C3%A7%C3%A3o":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(`<html><head>
<meta content="Consolação - Google Maps" property="og:title">
<meta content="https://maps.google.com/maps/api/staticmap?center=-23.5535%2C-46.6600&amp;zoom=14" property="og:image">
</head><body></body></html>`))
		case "/maps/search/consent":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(`<html><head><title>Before you continue to Google Maps</title></head></html>`))
		case "/maps/search/busy":
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(`<html><head><title>Google Maps</title></head></html>`))
		}
	})
	mux.HandleFunc("/maps/place/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html></html>`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv
}

func TestStaticGeocoderFollowsRedirect(t *testing.T) {
	srv := newStaticServer(t)
	g := &StaticGeocoder{Client: srv.Client(), BaseURL: srv.URL + "/maps/search/"}

	res, err := g.Geocode(context.Background(), "Rua Augusta 1500")
	require.NoError(t, err)
	assert.Equal(t, spatial.Point{Lat: -23.5577133, Lng: -46.6617336}, res.Point)
	assert.Equal(t, ProviderStatic, res.Provider)
	assert.Equal(t, "medium", res.Confidence)
}

func TestStaticGeocoderReadsPreview(t *testing.T) {
	srv := newStaticServer(t)
	g := &StaticGeocoder{Client: srv.Client(), BaseURL: srv.URL + "/maps/search/"}

	res, err := g.Geocode(context.Background(), "Consolação")
	require.NoError(t, err)
	assert.Equal(t, spatial.Point{Lat: -23.5535, Lng: -46.66}, res.Point)
	assert.Equal(t, "Consolação - Google Maps", res.DisplayName)
	assert.Equal(t, "low", res.Confidence)
}

func TestStaticGeocoderFailures(t *testing.T) {
	srv := newStaticServer(t)
	g := &StaticGeocoder{Client: srv.Client(), BaseURL: srv.URL + "/maps/search/"}

	_, err := g.Geocode(context.Background(), "nowhere")
	assert.True(t, errors.Is(err, ErrNoCoordinates), "got %v", err)

	_, err = g.Geocode(context.Background(), "busy")
	assert.True(t, IsRateLimitError(err), "got %v", err)
	assert.True(t, IsRetryable(err))

	_, err = g.Geocode(context.Background(), "consent")
	assert.True(t, IsQuotaExceededError(err), "got %v", err)
	assert.False(t, IsRetryable(err))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = g.Geocode(ctx, "Rua Augusta 1500")
	assert.ErrorIs(t, err, context.Canceled)
}
