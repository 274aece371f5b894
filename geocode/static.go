// Copyright 2026 The Geocoder Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"errors"
	"net/http"

	"github.com/jairoivo/geocoder/utils/htmlutils"
	"github.com/rotisserie/eris"
	"golang.org/x/net/html"
)

// StaticGeocoder fetches the map search page over plain HTTP, without a
// browser. Coordinates come from the redirect target when it carries them, or
// else from the static map preview advertised in the page metadata.
type StaticGeocoder struct {
	Client  *http.Client
	BaseURL string
}

// previewMetas are the <meta> tags pointing at the static map preview.
var previewMetas = [][2]string{
	{"property", "og:image"},
	{"itemprop", "image"},
}

// Geocode implements Geocoder.
func (g *StaticGeocoder) Geocode(ctx context.Context, address string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, SearchURL(g.BaseURL, address), nil)
	if err != nil {
		return nil, &GeocodingError{Type: ErrorTypeInvalidRequest, Message: "building request", Err: err}
	}

	resp, err := g.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		return nil, &GeocodingError{Type: ErrorTypeNetworkError, Message: "fetching map search", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ClassifyHTTPError(resp.StatusCode)
	}

	final := resp.Request.URL.String()
	if p, err := ParseMapsURL(final); err == nil {
		return &Result{Point: p, Confidence: "medium", Provider: ProviderStatic, URL: final}, nil
	}

	r, err := htmlutils.AsReader(resp)
	if err != nil {
		return nil, eris.Wrap(err, "reading map search")
	}

	n, err := htmlutils.AsNode(r)
	if err != nil {
		if errors.Is(err, htmlutils.ErrConsentRequired) {
			return nil, &GeocodingError{Type: ErrorTypeQuotaExceeded, Message: "access denied by consent page", Err: err}
		}

		return nil, err
	}

	res, err := PreviewResult(n)
	if err != nil {
		return nil, eris.Wrapf(err, "reading %s", final)
	}

	res.URL = final

	return res, nil
}

// PreviewResult reads the point of the static map preview advertised by a
// parsed map search page.
func PreviewResult(n *html.Node) (*Result, error) {
	title, _ := htmlutils.MetaContent(n, "property", "og:title")

	for _, meta := range previewMetas {
		content, ok := htmlutils.MetaContent(n, meta[0], meta[1])
		if !ok {
			continue
		}

		p, err := parseStaticMapCenter(content)
		if err != nil {
			continue
		}

		return &Result{
			Point:       p,
			Confidence:  "low",
			Provider:    ProviderStatic,
			DisplayName: title,
		}, nil
	}

	return nil, eris.Wrap(ErrNoCoordinates, "no map preview")
}
