// Copyright 2026 The GeoSort Authors
// SPDX-License-Identifier: Apache-2.0

package organize

import (
	"context"
	"log"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/geosort/geosort/geocode"
	"github.com/geosort/geosort/spatial"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

// CoordinateSource is what the orchestrator needs from the extraction layer.
type CoordinateSource interface {
	// HasGPSHint is a cheap probe; it may be wrong in either direction.
	HasGPSHint(path string) bool

	// Coordinates returns the GPS position, or false when none was found.
	Coordinates(path string) (spatial.Coordinate, bool)
}

// LocationResolver is what the orchestrator needs from the geocoding layer.
type LocationResolver interface {
	ResolveBatch(ctx context.Context, coords []spatial.Coordinate) (map[spatial.Coordinate]*geocode.Location, error)
	Stats() geocode.CacheStats
}

// Placer is what the orchestrator needs from the placement layer.
type Placer interface {
	Place(path string, loc geocode.Location, op Operation) Outcome
}

// BatchOptions configuration for a batch run.
type BatchOptions struct {
	// Workers is the placement pool size. Defaults to 16, capped at 32.
	Workers int

	// LargeBatchThreshold is the coordinate-bearing file count above which
	// the degraded large-dataset policy kicks in.
	LargeBatchThreshold int

	// BatchTimeout is the wall-clock bound on full batch resolution for
	// large datasets.
	BatchTimeout time.Duration

	// SampleLimit bounds the systematic sample resolved after a timeout.
	SampleLimit int

	// FastMode skips geocoding entirely for large datasets: every
	// coordinate-bearing file over the threshold routes to Unknown with
	// zero network calls.
	FastMode bool
}

const (
	defaultWorkers             = 16
	maxWorkers                 = 32
	defaultLargeBatchThreshold = 1000
	defaultBatchTimeout        = 15 * time.Minute
	defaultSampleLimit         = 5000
)

// Batch drives the whole pipeline: pre-filter, extraction, resolution policy
// and concurrent placement. It owns all per-file intermediate state.
type Batch struct {
	source   CoordinateSource
	resolver LocationResolver
	placer   Placer
	options  BatchOptions
}

// NewBatch creates a batch orchestrator. The placer may be nil when only
// Plan is used.
func NewBatch(source CoordinateSource, resolver LocationResolver, placer Placer, options *BatchOptions) *Batch {
	b := &Batch{source: source, resolver: resolver, placer: placer}

	if options != nil {
		b.options = *options
	}

	if b.options.Workers <= 0 {
		b.options.Workers = defaultWorkers
	}

	if b.options.Workers > maxWorkers {
		b.options.Workers = maxWorkers
	}

	if b.options.LargeBatchThreshold <= 0 {
		b.options.LargeBatchThreshold = defaultLargeBatchThreshold
	}

	if b.options.BatchTimeout <= 0 {
		b.options.BatchTimeout = defaultBatchTimeout
	}

	if b.options.SampleLimit <= 0 {
		b.options.SampleLimit = defaultSampleLimit
	}

	return b
}

// gpsStatus tracks how a file's location was (or wasn't) derived.
type gpsStatus int

const (
	statusResolved gpsStatus = iota
	statusNoGPS
	statusGeocodeFailed
)

// assignment is a file with its final location decision.
type assignment struct {
	path   string
	loc    geocode.Location
	status gpsStatus
}

// PlanReport is the dry-run output: where every file would go, with no
// storage side effects.
type PlanReport struct {
	// Folders maps folder key to the file paths routed there.
	Folders map[string][]string

	TotalFiles    int
	WithGPS       int
	NoGPS         int
	GeocodeFailed int
	CacheStats    geocode.CacheStats
}

// FolderKeys returns the folder keys in sorted order.
func (r *PlanReport) FolderKeys() []string {
	keys := make([]string, 0, len(r.Folders))
	for k := range r.Folders {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

// ExecuteMetrics are the aggregate outcome counts of an Execute run.
type ExecuteMetrics struct {
	Successful       int
	Failed           int
	NoGPS            int
	GeocodeFailed    int
	Placed           int
	SkippedIdentical int
	SkippedDifferent int
}

// Merge combines the metrics from another ExecuteMetrics instance into this
// one.
func (m *ExecuteMetrics) Merge(other *ExecuteMetrics) *ExecuteMetrics {
	if other == nil {
		return m
	}

	m.Successful += other.Successful
	m.Failed += other.Failed
	m.NoGPS += other.NoGPS
	m.GeocodeFailed += other.GeocodeFailed
	m.Placed += other.Placed
	m.SkippedIdentical += other.SkippedIdentical
	m.SkippedDifferent += other.SkippedDifferent

	return m
}

// Plan resolves locations for every file and reports the resulting folder
// layout without touching storage.
func (b *Batch) Plan(ctx context.Context, files []string) (*PlanReport, error) {
	assignments, err := b.assign(ctx, files)
	if err != nil {
		return nil, err
	}

	report := &PlanReport{
		Folders:    make(map[string][]string),
		TotalFiles: len(files),
		CacheStats: b.resolver.Stats(),
	}

	for _, a := range assignments {
		key := a.loc.FolderKey()
		report.Folders[key] = append(report.Folders[key], a.path)

		switch a.status {
		case statusResolved:
			report.WithGPS++
		case statusNoGPS:
			report.NoGPS++
		case statusGeocodeFailed:
			report.GeocodeFailed++
		}
	}

	return report, nil
}

// Execute resolves locations and dispatches placement across the worker
// pool. Per-file failures are counted and never abort the batch.
func (b *Batch) Execute(ctx context.Context, files []string, op Operation) (*ExecuteMetrics, error) {
	assignments, err := b.assign(ctx, files)
	if err != nil {
		return nil, err
	}

	n := len(assignments)

	var bar *progressbar.ProgressBar
	if isatty.IsTerminal(os.Stderr.Fd()) {
		bar = progressbar.NewOptions(n,
			progressbar.OptionSetDescription("Placing files"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	type placement struct {
		status  gpsStatus
		outcome Outcome
	}

	var wg sync.WaitGroup

	semaphore := make(chan struct{}, b.options.Workers)
	outcomes := make(chan placement, n)

	for _, a := range assignments {
		wg.Add(1)

		go func(a assignment) {
			defer wg.Done()
			semaphore <- struct{}{}

			defer func() { <-semaphore }()

			outcome := b.placer.Place(a.path, a.loc, op)
			outcomes <- placement{status: a.status, outcome: outcome}

			if bar == nil {
				log.Printf("%s %s -> %s", op, a.path, a.loc.FolderKey())
			} else {
				if err := bar.Add(1); err != nil {
					log.Printf("Updating progress bar: %s", err)
				}
			}
		}(a)
	}

	wg.Wait()
	close(outcomes)

	metrics := &ExecuteMetrics{}

	for p := range outcomes {
		switch p.outcome {
		case OutcomePlaced:
			metrics.Placed++
			metrics.Successful++
		case OutcomeSkippedIdentical:
			metrics.SkippedIdentical++
			metrics.Successful++
		case OutcomeSkippedDifferent:
			metrics.SkippedDifferent++
			metrics.Successful++
		case OutcomeFailed:
			metrics.Failed++
		}

		switch p.status {
		case statusNoGPS:
			metrics.NoGPS++
		case statusGeocodeFailed:
			metrics.GeocodeFailed++
		}
	}

	log.Printf(
		"Placement complete - %d successful (%d placed, %d identical, %d different), %d failed, %d without GPS, %d geocoding failures",
		metrics.Successful, metrics.Placed, metrics.SkippedIdentical,
		metrics.SkippedDifferent, metrics.Failed, metrics.NoGPS, metrics.GeocodeFailed,
	)

	return metrics, nil
}

// assign runs pre-filter, extraction and the resolution policy, producing a
// final location for every file.
func (b *Batch) assign(ctx context.Context, files []string) ([]assignment, error) {
	type located struct {
		path  string
		coord spatial.Coordinate
	}

	var withCoords []located

	var noGPS []string

	for _, path := range files {
		if !b.source.HasGPSHint(path) {
			noGPS = append(noGPS, path)

			continue
		}

		coord, ok := b.source.Coordinates(path)
		if !ok {
			// The hint lied; reclassify.
			noGPS = append(noGPS, path)

			continue
		}

		withCoords = append(withCoords, located{path: path, coord: coord})
	}

	coords := make([]spatial.Coordinate, len(withCoords))
	for i, l := range withCoords {
		coords[i] = l.coord
	}

	results, err := b.resolveWithPolicy(ctx, coords)
	if err != nil {
		return nil, err
	}

	assignments := make([]assignment, 0, len(files))

	for _, l := range withCoords {
		if loc, ok := results[l.coord]; ok && loc != nil {
			assignments = append(assignments, assignment{path: l.path, loc: *loc, status: statusResolved})
		} else {
			assignments = append(assignments, assignment{path: l.path, loc: geocode.Unknown(), status: statusGeocodeFailed})
		}
	}

	for _, path := range noGPS {
		assignments = append(assignments, assignment{path: path, loc: geocode.Unknown(), status: statusNoGPS})
	}

	return assignments, nil
}

// resolveWithPolicy picks the resolution strategy for the dataset size.
// Below the threshold the whole batch resolves with no timeout guard. Above
// it the run either skips geocoding (fast mode) or races a wall-clock bound
// and falls back to a bounded systematic sample. Large datasets must not
// block indefinitely on an external rate-limited service; everything the
// fallback misses routes to Unknown.
func (b *Batch) resolveWithPolicy(ctx context.Context, coords []spatial.Coordinate) (map[spatial.Coordinate]*geocode.Location, error) {
	if len(coords) == 0 {
		return nil, nil
	}

	if len(coords) <= b.options.LargeBatchThreshold {
		return b.resolver.ResolveBatch(ctx, coords)
	}

	if b.options.FastMode {
		log.Printf("Fast mode: skipping geocoding for %d coordinates", len(coords))

		return nil, nil
	}

	log.Printf(
		"Large dataset (%d coordinates), attempting full resolution within %v",
		len(coords), b.options.BatchTimeout,
	)

	timeoutCtx, cancel := context.WithTimeout(ctx, b.options.BatchTimeout)
	defer cancel()

	results, err := b.resolver.ResolveBatch(timeoutCtx, coords)
	if err == nil {
		return results, nil
	}

	if ctx.Err() != nil {
		// The caller's own context died; don't fall back.
		return nil, ctx.Err()
	}

	log.Printf("Full resolution did not finish (%s), falling back to a sample", err)

	sample := systematicSample(coords, b.options.SampleLimit)

	sampled, err := b.resolver.ResolveBatch(ctx, sample)
	if err != nil {
		log.Printf("Sample resolution incomplete: %s", err)
	}

	// Coordinates absent from the sample's results route to Unknown when
	// the assignments are merged.
	return sampled, nil
}

// systematicSample draws up to limit coordinates by fixed-stride selection
// across the full list.
func systematicSample(coords []spatial.Coordinate, limit int) []spatial.Coordinate {
	if len(coords) <= limit {
		return coords
	}

	stride := len(coords) / limit

	sample := make([]spatial.Coordinate, 0, limit)
	for i := 0; i < limit; i++ {
		sample = append(sample, coords[i*stride])
	}

	return sample
}
