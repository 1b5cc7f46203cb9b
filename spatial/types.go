// Copyright 2026 The GeoSort Authors
// SPDX-License-Identifier: Apache-2.0

package spatial

import (
	"fmt"
	"math"
)

// Coordinate represents a geographical point with latitude and longitude.
// It is a value type: two coordinates compare equal when their fields do.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// String returns a string representation of the Coordinate.
func (c Coordinate) String() string {
	return fmt.Sprintf("(%f, %f)", c.Lat, c.Lon)
}

// Key returns the coordinate rounded to 6 decimal places, the resolution
// used to key the geocoding cache.
func (c Coordinate) Key() string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lon)
}

// EuclideanDistance calculates the distance between two coordinates in raw
// degree space. Grouping works on near-duplicate points where degree distance
// is a good enough proxy, and the grouping tolerance is defined in degrees.
func (c Coordinate) EuclideanDistance(other Coordinate) float64 {
	dLat := c.Lat - other.Lat
	dLon := c.Lon - other.Lon

	return math.Sqrt(dLat*dLat + dLon*dLon)
}

// Valid reports whether the coordinate is within WGS84 bounds.
func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}
