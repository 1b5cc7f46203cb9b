// Copyright 2026 The GeoSort Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import "github.com/geosort/geosort/spatial"

// DefaultTolerance is the grouping distance in degrees. Roughly 500m at the
// equator, which matches a burst of photos taken at one spot.
const DefaultTolerance = 0.005

// CoordinateGroup is a set of near-duplicate coordinates resolved as one
// unit. The first coordinate is the representative sent to the geocoder.
type CoordinateGroup []spatial.Coordinate

// Representative returns the coordinate geocoded on behalf of the group.
func (g CoordinateGroup) Representative() spatial.Coordinate {
	return g[0]
}

// GroupCoordinates partitions coordinates into groups of mutually close
// points using a greedy single pass: each unassigned coordinate seeds a new
// group and absorbs every later unassigned coordinate within tolerance of
// that seed. First group found wins, so the result is order-dependent and
// not an optimal clustering. O(n²) worst case; callers bound n before
// invoking (see the batch sampling policy).
func GroupCoordinates(coords []spatial.Coordinate, tolerance float64) []CoordinateGroup {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}

	groups := make([]CoordinateGroup, 0, len(coords))
	visited := make([]bool, len(coords))

	for i, seed := range coords {
		if visited[i] {
			continue
		}

		group := CoordinateGroup{seed}
		visited[i] = true

		for j := i + 1; j < len(coords); j++ {
			if visited[j] {
				continue
			}

			// Distance to the seed, not to the nearest member.
			if coords[j].EuclideanDistance(seed) <= tolerance {
				group = append(group, coords[j])
				visited[j] = true
			}
		}

		groups = append(groups, group)
	}

	return groups
}
