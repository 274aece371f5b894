// Copyright 2026 The Geocoder Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	apikeys "cloud.google.com/go/apikeys/apiv2"
	"cloud.google.com/go/apikeys/apiv2/apikeyspb"
	"github.com/rotisserie/eris"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/iterator"
)

// DefaultGeocodingAPI is the Google Maps Geocoding API endpoint.
const DefaultGeocodingAPI = "https://maps.googleapis.com/maps/api/geocode/json"

// GoogleMapsGeocoder uses Google Maps Geocoding API.
type GoogleMapsGeocoder struct {
	apiKey     string
	region     string
	language   string
	endpoint   string
	httpClient *http.Client
}

// NewGoogleMapsGeocoder creates a new Google Maps geocoder.
func NewGoogleMapsGeocoder(apiKey, region, language string, client *http.Client) *GoogleMapsGeocoder {
	return &GoogleMapsGeocoder{
		apiKey:     apiKey,
		region:     region,
		language:   language,
		endpoint:   DefaultGeocodingAPI,
		httpClient: client,
	}
}

type googleMapsResponse struct {
	Results []struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
			LocationType string `json:"location_type"` // ROOFTOP, RANGE_INTERPOLATED, GEOMETRIC_CENTER, APPROXIMATE
		} `json:"geometry"`
		FormattedAddress string `json:"formatted_address"`
	} `json:"results"`
	Status       string `json:"status"` // OK, ZERO_RESULTS, etc.
	ErrorMessage string `json:"error_message"`
}

// Geocode implements Geocoder.
func (g *GoogleMapsGeocoder) Geocode(ctx context.Context, address string) (*Result, error) {
	params := url.Values{}
	params.Set("address", address)
	params.Set("key", g.apiKey)

	if g.region != "" {
		params.Set("region", g.region)
	}

	if g.language != "" {
		params.Set("language", g.language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, &GeocodingError{Type: ErrorTypeInvalidRequest, Message: "building request", Err: err}
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		return nil, &GeocodingError{Type: ErrorTypeNetworkError, Message: "geocoding request failed", Err: err}
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ClassifyHTTPError(resp.StatusCode)
	}

	var gmResp googleMapsResponse
	if err := json.NewDecoder(resp.Body).Decode(&gmResp); err != nil {
		return nil, eris.Wrap(err, "decoding response")
	}

	switch gmResp.Status {
	case "OK":
	case "ZERO_RESULTS":
		return nil, &GeocodingError{Type: ErrorTypeNotFound, Message: "no results found for address: " + address}
	case "OVER_QUERY_LIMIT":
		return nil, &GeocodingError{Type: ErrorTypeRateLimit, Message: "google maps status: OVER_QUERY_LIMIT"}
	case "OVER_DAILY_LIMIT", "REQUEST_DENIED":
		return nil, &GeocodingError{
			Type:    ErrorTypeQuotaExceeded,
			Message: fmt.Sprintf("google maps status: %s %s", gmResp.Status, gmResp.ErrorMessage),
		}
	case "INVALID_REQUEST":
		return nil, &GeocodingError{Type: ErrorTypeInvalidRequest, Message: "google maps status: INVALID_REQUEST"}
	default:
		return nil, &GeocodingError{Type: ErrorTypeUnknown, Message: "google maps status: " + gmResp.Status}
	}

	if len(gmResp.Results) == 0 {
		return nil, &GeocodingError{Type: ErrorTypeNotFound, Message: "no results found for address: " + address}
	}

	result := gmResp.Results[0]

	// Determine confidence based on location_type
	confidence := "low"

	switch result.Geometry.LocationType {
	case "ROOFTOP", "RANGE_INTERPOLATED":
		confidence = "high"
	case "GEOMETRIC_CENTER":
		confidence = "medium"
	}

	res := &Result{
		Confidence:  confidence,
		Provider:    ProviderGoogleAPI,
		DisplayName: result.FormattedAddress,
	}
	res.Point.Lat = result.Geometry.Location.Lat
	res.Point.Lng = result.Geometry.Location.Lng

	return res, nil
}

// APIKeyFromADC finds the API key with the given display name in the project
// of the Application Default Credentials and returns its secret.
func APIKeyFromADC(ctx context.Context, projectID, displayName string) (string, error) {
	if projectID == "" {
		creds, err := google.FindDefaultCredentials(ctx, "https://www.googleapis.com/auth/cloud-platform")
		if err != nil {
			return "", eris.Wrap(err, "finding default credentials")
		}

		projectID = creds.ProjectID
	}

	if projectID == "" {
		return "", eris.New("no project id in default credentials; set google.project_id")
	}

	client, err := apikeys.NewClient(ctx)
	if err != nil {
		return "", eris.Wrap(err, "creating apikeys client")
	}
	defer client.Close()

	it := client.ListKeys(ctx, &apikeyspb.ListKeysRequest{
		Parent: fmt.Sprintf("projects/%s/locations/global", projectID),
	})

	for {
		key, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}

		if err != nil {
			return "", eris.Wrap(err, "listing keys")
		}

		if key.DisplayName != displayName {
			continue
		}

		// ListKeys redacts the secret.
		resp, err := client.GetKeyString(ctx, &apikeyspb.GetKeyStringRequest{Name: key.Name})
		if err != nil {
			return "", eris.Wrap(err, "getting key string")
		}

		if resp.KeyString == "" {
			return "", eris.Errorf("key '%s' found but its key string is empty", displayName)
		}

		return resp.KeyString, nil
	}

	return "", eris.Errorf("key with display name '%s' not found in project %s", displayName, projectID)
}
