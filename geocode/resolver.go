// Copyright 2026 The GeoSort Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/geosort/geosort/spatial"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

// ResolverOptions configuration for a Resolver.
type ResolverOptions struct {
	// Provider performs the actual reverse-geocoding call. Defaults to a
	// Nominatim client with default options.
	Provider ReverseGeocoder

	// MinDelay is the minimum time between two outbound requests,
	// measured process-wide from the last request. Cache hits bypass it.
	MinDelay time.Duration

	// MaxRetries is the number of attempts on timeout. Other failures
	// abort immediately.
	MaxRetries int

	// BaseRetryDelay is the backoff unit: attempt n sleeps
	// BaseRetryDelay × 2^n before retrying.
	BaseRetryDelay time.Duration

	// Tolerance is the grouping distance in degrees for batch resolution.
	Tolerance float64
}

// CacheStats is a read-only snapshot of the resolver cache counters.
type CacheStats struct {
	Hits    int
	Misses  int
	Total   int
	HitRate float64
	Size    int
}

// Resolver turns coordinates into normalized locations through a rate-limited
// provider. It owns the cache and the throttle state exclusively; create one
// per run and pass it around rather than sharing globals.
type Resolver struct {
	provider       ReverseGeocoder
	minDelay       time.Duration
	maxRetries     int
	baseRetryDelay time.Duration
	tolerance      float64
	tables         *nameTables

	mu          sync.Mutex
	cache       map[string]*Location
	hits        int
	misses      int
	lastRequest time.Time
}

// NewResolver creates a Resolver with the provided options.
func NewResolver(options *ResolverOptions) (*Resolver, error) {
	if options == nil {
		options = &ResolverOptions{}
	}

	tables, err := loadNameTables()
	if err != nil {
		return nil, fmt.Errorf("loading name tables: %w", err)
	}

	r := &Resolver{
		provider:       options.Provider,
		minDelay:       options.MinDelay,
		maxRetries:     options.MaxRetries,
		baseRetryDelay: options.BaseRetryDelay,
		tolerance:      options.Tolerance,
		tables:         tables,
		cache:          make(map[string]*Location),
	}

	if r.provider == nil {
		r.provider = NewNominatimGeocoder(nil)
	}

	if r.minDelay == 0 {
		r.minDelay = time.Second
	}

	if r.maxRetries == 0 {
		r.maxRetries = 3
	}

	if r.baseRetryDelay == 0 {
		r.baseRetryDelay = time.Second
	}

	if r.tolerance == 0 {
		r.tolerance = DefaultTolerance
	}

	return r, nil
}

// Resolve reverse-geocodes a single coordinate. A (nil, nil) return means the
// provider answered but had no address for the point; that outcome is cached
// like any other. Transport failures are returned and not cached.
func (r *Resolver) Resolve(ctx context.Context, coord spatial.Coordinate) (*Location, error) {
	key := coord.Key()

	r.mu.Lock()
	if loc, ok := r.cache[key]; ok {
		r.hits++
		r.mu.Unlock()

		return loc, nil
	}
	r.misses++
	r.mu.Unlock()

	if err := r.throttle(ctx); err != nil {
		return nil, err
	}

	var lastErr error

	for attempt := 0; attempt < r.maxRetries; attempt++ {
		r.mu.Lock()
		r.lastRequest = time.Now()
		r.mu.Unlock()

		raw, err := r.provider.ReverseGeocode(ctx, coord)
		if err == nil {
			loc := r.mapAddress(raw)

			r.mu.Lock()
			r.cache[key] = loc
			r.mu.Unlock()

			return loc, nil
		}

		if IsNoResultError(err) {
			// Valid response with nothing usable in it. Cache the
			// negative result so the coordinate is not retried.
			r.mu.Lock()
			r.cache[key] = nil
			r.mu.Unlock()

			return nil, nil
		}

		if !IsTimeoutError(err) {
			// Unavailable or anything unexpected: abort, no retry.
			return nil, err
		}

		lastErr = err

		if attempt < r.maxRetries-1 {
			delay := r.baseRetryDelay * (1 << attempt)
			log.Printf(
				"Geocoding timed out for %s, attempt %d/%d, retrying in %v",
				coord, attempt+1, r.maxRetries, delay,
			)

			if err := sleepContext(ctx, delay); err != nil {
				return nil, err
			}
		}
	}

	return nil, fmt.Errorf("geocoding failed after %d attempts: %w", r.maxRetries, lastErr)
}

// ResolveBatch resolves every coordinate, amortizing provider calls across
// near-duplicate points: coordinates are grouped, one representative per
// group is resolved, and the result is broadcast to all members. Resolution
// stops when ctx is done; the partial result map is returned together with
// the context error so callers can fall back.
func (r *Resolver) ResolveBatch(ctx context.Context, coords []spatial.Coordinate) (map[spatial.Coordinate]*Location, error) {
	results := make(map[spatial.Coordinate]*Location, len(coords))

	groups := GroupCoordinates(coords, r.tolerance)
	log.Printf("Resolving %d coordinate groups from %d coordinates", len(groups), len(coords))

	var bar *progressbar.ProgressBar
	if isatty.IsTerminal(os.Stderr.Fd()) {
		bar = progressbar.NewOptions(len(groups),
			progressbar.OptionSetDescription("Geocoding"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	for _, group := range groups {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		loc, err := r.Resolve(ctx, group.Representative())
		if err != nil {
			if ctx.Err() != nil {
				return results, ctx.Err()
			}

			log.Printf("Geocoding failed for %s: %s", group.Representative(), err)
		}

		for _, coord := range group {
			results[coord] = loc
		}

		if bar != nil {
			if err := bar.Add(1); err != nil {
				log.Printf("Updating progress bar: %s", err)
			}
		}
	}

	return results, nil
}

// Stats returns a snapshot of the cache counters.
func (r *Resolver) Stats() CacheStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	total := r.hits + r.misses

	var hitRate float64
	if total > 0 {
		hitRate = float64(r.hits) / float64(total) * 100
	}

	return CacheStats{
		Hits:    r.hits,
		Misses:  r.misses,
		Total:   total,
		HitRate: hitRate,
		Size:    len(r.cache),
	}
}

// throttle blocks until the minimum inter-request delay has elapsed since
// the last outbound request. Not a token bucket: if the delay already passed
// there is no wait, otherwise it sleeps exactly the remainder.
func (r *Resolver) throttle(ctx context.Context) error {
	r.mu.Lock()
	last := r.lastRequest
	r.mu.Unlock()

	if last.IsZero() {
		return nil
	}

	if wait := r.minDelay - time.Since(last); wait > 0 {
		return sleepContext(ctx, wait)
	}

	return nil
}

// mapAddress applies the per-field fallback chains and normalization to a
// raw provider address.
func (r *Resolver) mapAddress(raw *RawAddress) *Location {
	if raw == nil {
		return nil
	}

	country := firstNonEmpty(raw.Country, raw.CountryCode, raw.State)
	state := firstNonEmpty(raw.State, raw.Province, raw.Region, raw.County)
	city := firstNonEmpty(raw.City, raw.Town, raw.Village, raw.Municipality, raw.Suburb, raw.District)

	loc := Location{
		Country: normalizeName(country, r.tables.countries),
		State:   normalizeName(state, r.tables.states),
		City:    normalizeName(city, r.tables.cities),
	}

	if loc.State == UnknownName && loc.City != UnknownName {
		if inferred, ok := r.tables.InferState(loc.Country, loc.City); ok {
			loc.State = inferred
		}
	}

	return &loc
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return UnknownName
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
