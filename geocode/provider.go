// Copyright 2026 The Geocoder Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"time"

	"github.com/jairoivo/geocoder/utils/httputils"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ProviderConfig selects and configures a Geocoder.
type ProviderConfig struct {
	Name        string
	BaseURL     string
	WaitTimeout time.Duration

	Chrome ChromeOptions
	HTTP   httputils.ClientOptions

	// Google Geocoding API. When APIKey is empty the key named KeyName is
	// looked up in Project with Application Default Credentials.
	APIKey   string
	KeyName  string
	Project  string
	Region   string
	Language string
}

// NewGeocoder builds the provider named by cfg.Name. The returned close
// function releases the provider resources and is never nil.
func NewGeocoder(ctx context.Context, cfg ProviderConfig, logger *zap.Logger) (Geocoder, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Name {
	case "", ProviderBrowser:
		nav, err := NewChromeNavigator(cfg.Chrome, logger)
		if err != nil {
			return nil, noop, err
		}

		return &MapsGeocoder{Navigator: nav, BaseURL: cfg.BaseURL, WaitTimeout: cfg.WaitTimeout}, nav.Close, nil

	case ProviderStatic:
		client, err := httputils.NewClient(cfg.HTTP, logger)
		if err != nil {
			return nil, noop, err
		}

		return &StaticGeocoder{Client: client, BaseURL: cfg.BaseURL}, noop, nil

	case ProviderGoogleAPI:
		key := cfg.APIKey
		if key == "" {
			if cfg.KeyName == "" {
				return nil, noop, eris.New("google-api provider needs google.api_key or google.key_name")
			}

			var err error

			key, err = APIKeyFromADC(ctx, cfg.Project, cfg.KeyName)
			if err != nil {
				return nil, noop, eris.Wrap(err, "retrieving API key")
			}
		}

		client, err := httputils.NewClient(cfg.HTTP, logger)
		if err != nil {
			return nil, noop, err
		}

		g := NewGoogleMapsGeocoder(key, cfg.Region, cfg.Language, client)
		if cfg.BaseURL != "" {
			g.endpoint = cfg.BaseURL
		}

		return g, noop, nil

	default:
		return nil, noop, eris.Errorf("unknown provider %q (want %s, %s or %s)",
			cfg.Name, ProviderBrowser, ProviderStatic, ProviderGoogleAPI)
	}
}
