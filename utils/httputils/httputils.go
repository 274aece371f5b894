// Copyright 2026 The Geocoder Authors
// SPDX-License-Identifier: Apache-2.0

// Package httputils builds the HTTP client of the providers that do not need
// a browser.
package httputils

import (
	"bytes"
	"io"
	"net/http"
	"net/http/cookiejar"
	"regexp"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const (
	// maxTracedBody is how much of a response body a trace keeps.
	maxTracedBody  = 2048
	redactedMarker = "REDACTED"
)

var (
	keyParamRegex = regexp.MustCompile(`([?&]key=)[^&\s]+`)
	secretHeaders = []string{"Authorization", "Cookie", "Set-Cookie", "X-Goog-Api-Key"}
)

// Redact hides the API key of a URL.
func Redact(rawURL string) string {
	return keyParamRegex.ReplaceAllString(rawURL, "${1}"+redactedMarker)
}

func redactHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}

	for _, k := range secretHeaders {
		if _, ok := out[k]; ok {
			out[k] = redactedMarker
		}
	}

	return out
}

// TraceTransport logs every exchange through a zap logger. Credentials never
// reach the log.
type TraceTransport struct {
	Transport http.RoundTripper
	Logger    *zap.Logger

	// Body also logs the beginning of each response body.
	Body bool
}

// RoundTrip implements the http.RoundTripper interface.
func (t *TraceTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Logger == nil {
		return t.Transport.RoundTrip(req)
	}

	logger := t.Logger.With(
		zap.String("method", req.Method),
		zap.String("url", Redact(req.URL.String())))

	logger.Info("http request", zap.Any("headers", redactHeaders(req.Header)))

	start := time.Now()

	resp, err := t.Transport.RoundTrip(req)
	if err != nil {
		logger.Info("http request failed", zap.Duration("elapsed", time.Since(start)), zap.Error(err))

		return nil, err
	}

	fields := []zap.Field{
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
		zap.Any("headers", redactHeaders(resp.Header)),
	}

	if t.Body && resp.Body != nil {
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()

		if err != nil {
			return nil, eris.Wrap(err, "tracing HTTP response")
		}

		resp.Body = io.NopCloser(bytes.NewReader(body))
		fields = append(fields, zap.ByteString("body", body[:min(len(body), maxTracedBody)]))
	}

	logger.Info("http response", fields...)

	return resp, nil
}

// HeaderTransport sets default request headers. Headers already present on a
// request are kept.
type HeaderTransport struct {
	Transport http.RoundTripper
	Headers   map[string]string
}

// RoundTrip implements the http.RoundTripper interface.
func (t *HeaderTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if len(t.Headers) > 0 {
		req = req.Clone(req.Context())

		for k, v := range t.Headers {
			if req.Header.Get(k) == "" {
				req.Header.Set(k, v)
			}
		}
	}

	return t.Transport.RoundTrip(req)
}

// ClientOptions configures NewClient.
type ClientOptions struct {
	Timeout   time.Duration
	UserAgent string
	Language  string

	// Trace logs requests and responses.
	Trace bool

	// TraceBody also logs the response bodies.
	TraceBody bool
}

// NewClient builds an HTTP client with default headers and a cookie jar, so
// the consent cookies Google hands out are sent back on the next lookup.
// Traces go to logger.
func NewClient(opts ClientOptions, logger *zap.Logger) (*http.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, eris.Wrap(err, "creating cookie jar")
	}

	headers := map[string]string{}
	if opts.UserAgent != "" {
		headers["User-Agent"] = opts.UserAgent
	}

	if opts.Language != "" {
		headers["Accept-Language"] = opts.Language
	}

	trace := &TraceTransport{Transport: http.DefaultTransport, Body: opts.TraceBody}
	if opts.Trace || opts.TraceBody {
		trace.Logger = logger
		if trace.Logger == nil {
			trace.Logger = zap.L()
		}
	}

	return &http.Client{
		Timeout:   opts.Timeout,
		Jar:       jar,
		Transport: &HeaderTransport{Transport: trace, Headers: headers},
	}, nil
}
