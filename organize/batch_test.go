// Copyright 2026 The GeoSort Authors
// SPDX-License-Identifier: Apache-2.0

package organize

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/geosort/geosort/geocode"
	"github.com/geosort/geosort/spatial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource maps paths to coordinates. Paths absent from the map have no
// GPS data; paths in hintOnly report a hint but then yield no coordinates.
type fakeSource struct {
	coords   map[string]spatial.Coordinate
	hintOnly map[string]bool
}

func (s *fakeSource) HasGPSHint(path string) bool {
	if s.hintOnly[path] {
		return true
	}

	_, ok := s.coords[path]

	return ok
}

func (s *fakeSource) Coordinates(path string) (spatial.Coordinate, bool) {
	coord, ok := s.coords[path]

	return coord, ok
}

// fakeResolver resolves every coordinate to a canned location, counting
// calls. An optional block channel stalls ResolveBatch until the context
// dies, returning the partial-results contract.
type fakeResolver struct {
	mu       sync.Mutex
	calls    int
	resolved int
	loc      *geocode.Location
	block    bool
}

func (r *fakeResolver) ResolveBatch(ctx context.Context, coords []spatial.Coordinate) (map[spatial.Coordinate]*geocode.Location, error) {
	r.mu.Lock()
	r.calls++
	r.resolved += len(coords)
	r.mu.Unlock()

	if r.block {
		<-ctx.Done()

		return nil, ctx.Err()
	}

	results := make(map[spatial.Coordinate]*geocode.Location, len(coords))
	for _, c := range coords {
		results[c] = r.loc
	}

	return results, nil
}

func (r *fakeResolver) Stats() geocode.CacheStats {
	return geocode.CacheStats{}
}

func (r *fakeResolver) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.calls
}

func (r *fakeResolver) resolvedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.resolved
}

// fakePlacer records every placement and returns a scripted outcome per
// path.
type fakePlacer struct {
	mu       sync.Mutex
	placed   map[string]geocode.Location
	outcomes map[string]Outcome
	inFlight int
	peak     int
}

func newFakePlacer() *fakePlacer {
	return &fakePlacer{
		placed:   make(map[string]geocode.Location),
		outcomes: make(map[string]Outcome),
	}
}

func (p *fakePlacer) Place(path string, loc geocode.Location, op Operation) Outcome {
	p.mu.Lock()
	p.placed[path] = loc
	p.inFlight++

	if p.inFlight > p.peak {
		p.peak = p.inFlight
	}

	outcome, ok := p.outcomes[path]
	p.mu.Unlock()

	time.Sleep(time.Millisecond)

	p.mu.Lock()
	p.inFlight--
	p.mu.Unlock()

	if !ok {
		return OutcomePlaced
	}

	return outcome
}

func lisbon() *geocode.Location {
	return &geocode.Location{Country: "Portugal", State: "Lisbon", City: "Lisbon"}
}

func TestPlanRoutesFiles(t *testing.T) {
	source := &fakeSource{
		coords: map[string]spatial.Coordinate{
			"/in/a.jpg": {Lat: 38.72, Lon: -9.14},
			"/in/b.jpg": {Lat: 38.72, Lon: -9.14},
		},
		hintOnly: map[string]bool{"/in/lying-hint.jpg": true},
	}
	resolver := &fakeResolver{loc: lisbon()}

	b := NewBatch(source, resolver, nil, nil)

	report, err := b.Plan(context.Background(), []string{"/in/a.jpg", "/in/b.jpg", "/in/no-gps.jpg", "/in/lying-hint.jpg"})
	require.NoError(t, err)

	assert.Equal(t, 4, report.TotalFiles)
	assert.Equal(t, 2, report.WithGPS)
	assert.Equal(t, 2, report.NoGPS, "a hint that yields no coordinates counts as no GPS")
	assert.Equal(t, 0, report.GeocodeFailed)

	assert.Equal(t, []string{"Portugal/Lisbon/Lisbon", "Unknown"}, report.FolderKeys())
	assert.ElementsMatch(t, []string{"/in/a.jpg", "/in/b.jpg"}, report.Folders["Portugal/Lisbon/Lisbon"])
	assert.ElementsMatch(t, []string{"/in/no-gps.jpg", "/in/lying-hint.jpg"}, report.Folders["Unknown"])
}

func TestPlanHintFilterSkipsExtraction(t *testing.T) {
	source := &fakeSource{coords: map[string]spatial.Coordinate{}}
	resolver := &fakeResolver{loc: lisbon()}

	b := NewBatch(source, resolver, nil, nil)

	report, err := b.Plan(context.Background(), []string{"/in/a.jpg", "/in/b.jpg"})
	require.NoError(t, err)

	assert.Equal(t, 2, report.NoGPS)
	assert.Equal(t, 0, resolver.callCount(), "no coordinates means no resolver call")
}

func TestPlanGeocodeFailureRoutesUnknown(t *testing.T) {
	source := &fakeSource{
		coords: map[string]spatial.Coordinate{
			"/in/a.jpg": {Lat: 0.1, Lon: 0.1},
		},
	}
	resolver := &fakeResolver{loc: nil} // resolves to no location

	b := NewBatch(source, resolver, nil, nil)

	report, err := b.Plan(context.Background(), []string{"/in/a.jpg"})
	require.NoError(t, err)

	assert.Equal(t, 1, report.GeocodeFailed)
	assert.Equal(t, []string{"Unknown"}, report.FolderKeys())
}

func TestExecuteMetrics(t *testing.T) {
	source := &fakeSource{
		coords: map[string]spatial.Coordinate{
			"/in/a.jpg": {Lat: 38.72, Lon: -9.14},
			"/in/b.jpg": {Lat: 38.72, Lon: -9.14},
			"/in/c.jpg": {Lat: 38.72, Lon: -9.14},
			"/in/d.jpg": {Lat: 38.72, Lon: -9.14},
		},
	}
	resolver := &fakeResolver{loc: lisbon()}

	placer := newFakePlacer()
	placer.outcomes["/in/b.jpg"] = OutcomeSkippedIdentical
	placer.outcomes["/in/c.jpg"] = OutcomeSkippedDifferent
	placer.outcomes["/in/d.jpg"] = OutcomeFailed

	b := NewBatch(source, resolver, placer, nil)

	metrics, err := b.Execute(context.Background(), []string{"/in/a.jpg", "/in/b.jpg", "/in/c.jpg", "/in/d.jpg", "/in/no-gps.jpg"}, OperationCopy)
	require.NoError(t, err)

	assert.Equal(t, 4, metrics.Successful)
	assert.Equal(t, 1, metrics.Failed)
	assert.Equal(t, 2, metrics.Placed)
	assert.Equal(t, 1, metrics.SkippedIdentical)
	assert.Equal(t, 1, metrics.SkippedDifferent)
	assert.Equal(t, 1, metrics.NoGPS)
	assert.Equal(t, 0, metrics.GeocodeFailed)
	assert.Len(t, placer.placed, 5, "every file gets a placement, Unknown included")
}

func TestExecuteHonorsWorkerLimit(t *testing.T) {
	coords := make(map[string]spatial.Coordinate, 40)
	files := make([]string, 0, 40)

	for i := 0; i < 40; i++ {
		path := fmt.Sprintf("/in/%03d.jpg", i)
		coords[path] = spatial.Coordinate{Lat: 38.72, Lon: -9.14}
		files = append(files, path)
	}

	source := &fakeSource{coords: coords}
	resolver := &fakeResolver{loc: lisbon()}
	placer := newFakePlacer()

	b := NewBatch(source, resolver, placer, &BatchOptions{Workers: 4})

	_, err := b.Execute(context.Background(), files, OperationCopy)
	require.NoError(t, err)

	assert.LessOrEqual(t, placer.peak, 4)
}

func TestWorkersCappedAtMax(t *testing.T) {
	b := NewBatch(&fakeSource{}, &fakeResolver{}, nil, &BatchOptions{Workers: 100})
	assert.Equal(t, maxWorkers, b.options.Workers)

	b = NewBatch(&fakeSource{}, &fakeResolver{}, nil, nil)
	assert.Equal(t, defaultWorkers, b.options.Workers)
}

func largeDataset(n int) (*fakeSource, []string) {
	coords := make(map[string]spatial.Coordinate, n)
	files := make([]string, 0, n)

	for i := 0; i < n; i++ {
		path := fmt.Sprintf("/in/%05d.jpg", i)
		// Spread far apart so every file is its own coordinate group.
		coords[path] = spatial.Coordinate{Lat: float64(i%170) - 85, Lon: float64(i/170) - 170}
		files = append(files, path)
	}

	return &fakeSource{coords: coords}, files
}

func TestFastModeSkipsGeocoding(t *testing.T) {
	source, files := largeDataset(1500)
	resolver := &fakeResolver{loc: lisbon()}

	b := NewBatch(source, resolver, nil, &BatchOptions{FastMode: true})

	report, err := b.Plan(context.Background(), files)
	require.NoError(t, err)

	assert.Equal(t, 0, resolver.callCount(), "fast mode makes zero geocoding calls")
	assert.Equal(t, []string{"Unknown"}, report.FolderKeys())
	assert.Equal(t, 1500, report.GeocodeFailed)
}

func TestFastModeIgnoredBelowThreshold(t *testing.T) {
	source, files := largeDataset(10)
	resolver := &fakeResolver{loc: lisbon()}

	b := NewBatch(source, resolver, nil, &BatchOptions{FastMode: true})

	report, err := b.Plan(context.Background(), files)
	require.NoError(t, err)

	assert.Equal(t, 1, resolver.callCount(), "small datasets resolve normally even in fast mode")
	assert.Equal(t, 10, report.WithGPS)
}

func TestTimeoutFallsBackToSample(t *testing.T) {
	source, files := largeDataset(1200)

	// First call blocks until the batch timeout fires; the sample retry
	// resolves normally.
	resolver := &sequencedResolver{
		first: &fakeResolver{block: true},
		rest:  &fakeResolver{loc: lisbon()},
	}

	b := NewBatch(source, resolver, nil, &BatchOptions{
		BatchTimeout: 50 * time.Millisecond,
		SampleLimit:  100,
	})

	report, err := b.Plan(context.Background(), files)
	require.NoError(t, err)

	assert.Equal(t, 1, resolver.rest.callCount())
	assert.Equal(t, 100, resolver.rest.resolvedCount(), "fallback resolves only the sample")
	assert.Equal(t, 100, report.WithGPS)
	assert.Equal(t, 1100, report.GeocodeFailed, "unsampled coordinates route to Unknown")
}

func TestCallerCancellationAbortsWithoutFallback(t *testing.T) {
	source, files := largeDataset(1200)
	resolver := &fakeResolver{block: true}

	b := NewBatch(source, resolver, nil, &BatchOptions{BatchTimeout: time.Minute})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := b.Plan(ctx, files)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, resolver.callCount(), "a dead caller context must not trigger the sample fallback")
}

// sequencedResolver routes the first ResolveBatch call to one resolver and
// every later call to another.
type sequencedResolver struct {
	mu    sync.Mutex
	calls int
	first *fakeResolver
	rest  *fakeResolver
}

func (r *sequencedResolver) ResolveBatch(ctx context.Context, coords []spatial.Coordinate) (map[spatial.Coordinate]*geocode.Location, error) {
	r.mu.Lock()
	r.calls++
	nth := r.calls
	r.mu.Unlock()

	if nth == 1 {
		return r.first.ResolveBatch(ctx, coords)
	}

	return r.rest.ResolveBatch(ctx, coords)
}

func (r *sequencedResolver) Stats() geocode.CacheStats {
	return geocode.CacheStats{}
}

func TestSystematicSample(t *testing.T) {
	coords := make([]spatial.Coordinate, 10)
	for i := range coords {
		coords[i] = spatial.Coordinate{Lat: float64(i)}
	}

	sample := systematicSample(coords, 3)
	require.Len(t, sample, 3)
	assert.Equal(t, 0.0, sample[0].Lat)
	assert.Equal(t, 3.0, sample[1].Lat)
	assert.Equal(t, 6.0, sample[2].Lat)

	// At or under the limit the input comes back untouched.
	assert.Len(t, systematicSample(coords, 10), 10)
	assert.Len(t, systematicSample(coords, 50), 10)
}

func TestExecuteMetricsMerge(t *testing.T) {
	a := &ExecuteMetrics{Successful: 2, Placed: 1, SkippedIdentical: 1, NoGPS: 1}
	b := &ExecuteMetrics{Successful: 1, Failed: 1, Placed: 1, GeocodeFailed: 2, SkippedDifferent: 1}

	a.Merge(b).Merge(nil)

	assert.Equal(t, 3, a.Successful)
	assert.Equal(t, 1, a.Failed)
	assert.Equal(t, 2, a.Placed)
	assert.Equal(t, 1, a.SkippedIdentical)
	assert.Equal(t, 1, a.SkippedDifferent)
	assert.Equal(t, 1, a.NoGPS)
	assert.Equal(t, 2, a.GeocodeFailed)
}

func TestScanDirectoryFiltersMedia(t *testing.T) {
	dir := t.TempDir()

	writeFile(t, dir+"/a.jpg", "x")
	writeFile(t, dir+"/nested/b.MOV", "x")
	writeFile(t, dir+"/notes.txt", "x")
	writeFile(t, dir+"/nested/deep/c.webp", "x")

	files, err := ScanDirectory(dir)
	require.NoError(t, err)

	require.Len(t, files, 3)

	for _, f := range files {
		assert.False(t, strings.HasSuffix(f, ".txt"))
	}
}
