// Copyright 2026 The Geocoder Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jairoivo/geocoder/spatial"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Lookup defaults.
const (
	DefaultMaxAttempts = 3
	DefaultBackoff     = time.Second
	DefaultMaxBackoff  = 30 * time.Second
)

// Cache memoizes resolved addresses.
type Cache interface {
	Get(address string) (spatial.Point, bool, error)
	Put(address string, p spatial.Point) error
}

// Outcome is the result of Lookup.Resolve.
type Outcome struct {
	Point    spatial.Point
	Cached   bool
	Attempts int
	Result   *Result // nil on cache hits
}

// Lookup resolves addresses through the cache first and the geocoder on a
// miss, with a bounded number of attempts.
type Lookup struct {
	Cache    Cache
	Geocoder Geocoder

	// MaxAttempts is the total number of provider calls per address.
	MaxAttempts int
	Backoff     time.Duration
	MaxBackoff  time.Duration

	// Limiter throttles provider calls. Nil means unlimited.
	Limiter *rate.Limiter
	Bounds  spatial.Bounds
	Logger  *zap.Logger
}

func (l *Lookup) logger() *zap.Logger {
	if l.Logger == nil {
		return zap.NewNop()
	}

	return l.Logger
}

func (l *Lookup) backoff() retry.Backoff {
	attempts := l.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}

	base := l.Backoff
	if base <= 0 {
		base = DefaultBackoff
	}

	ceiling := l.MaxBackoff
	if ceiling <= 0 {
		ceiling = DefaultMaxBackoff
	}

	b := retry.NewExponential(base)
	b = retry.WithCappedDuration(ceiling, b)

	return retry.WithMaxRetries(uint64(attempts-1), b)
}

// Resolve returns the coordinates of address. Failures after the last attempt
// are reported as ErrLookupFailed wrapping the provider error; cancellation is
// returned as the context error.
func (l *Lookup) Resolve(ctx context.Context, address string) (Outcome, error) {
	if address == "" {
		return Outcome{}, ErrEmptyAddress
	}

	logger := l.logger().With(zap.String("address", address))

	if l.Cache != nil {
		p, ok, err := l.Cache.Get(address)
		if err != nil {
			logger.Warn("cache read failed, querying provider", zap.Error(err))
		} else if ok {
			logger.Debug("cache hit", zap.Stringer("point", p))

			return Outcome{Point: p, Cached: true}, nil
		}
	}

	var (
		out     Outcome
		lastErr error
	)

	err := retry.Do(ctx, l.backoff(), func(ctx context.Context) error {
		out.Attempts++

		res, err := l.attempt(ctx, address)
		if err == nil {
			out.Point = res.Point
			out.Result = res

			return nil
		}

		lastErr = err

		if ctx.Err() != nil {
			return ctx.Err()
		}

		logger.Warn("geocoding attempt failed",
			zap.Int("attempt", out.Attempts),
			zap.Error(err))

		if IsRetryable(err) {
			return retry.RetryableError(err)
		}

		return err
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return out, ctxErr
		}

		if lastErr == nil {
			lastErr = err
		}

		return out, fmt.Errorf("%w for %q after %d attempts: %w", ErrLookupFailed, address, out.Attempts, lastErr)
	}

	logger.Debug("geocoded",
		zap.Stringer("point", out.Point),
		zap.Int("attempts", out.Attempts),
		zap.String("confidence", out.Result.Confidence))

	if l.Cache != nil {
		if err := l.Cache.Put(address, out.Point); err != nil {
			logger.Error("cache write failed", zap.Error(err))
		}
	}

	return out, nil
}

func (l *Lookup) attempt(ctx context.Context, address string) (*Result, error) {
	if l.Limiter != nil {
		if err := l.Limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			return nil, &GeocodingError{Type: ErrorTypeRateLimit, Message: "waiting for rate limiter", Err: err}
		}
	}

	res, err := l.Geocoder.Geocode(ctx, address)
	if err != nil {
		return nil, err
	}

	if res == nil {
		return nil, ErrNoCoordinates
	}

	if err := res.Point.Validate(); err != nil {
		return nil, &GeocodingError{Type: ErrorTypeInvalidRequest, Message: "provider returned invalid point", Err: err}
	}

	if !l.Bounds.Contains(res.Point) {
		return nil, &GeocodingError{
			Type:    ErrorTypeOutOfBounds,
			Message: fmt.Sprintf("%s is outside of the configured bounds", res.Point),
		}
	}

	return res, nil
}

// IsCanceled reports whether err stems from a stopped context.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}
