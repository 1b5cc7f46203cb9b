// Copyright 2026 The GeoSort Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"

	"github.com/geosort/geosort/spatial"
)

// RawAddress carries the address components a provider returned, by field
// name. Fields may be empty; the Resolver applies the fallback chains.
type RawAddress struct {
	Country     string
	CountryCode string
	State       string
	Province    string
	Region      string
	County      string

	City         string
	Town         string
	Village      string
	Municipality string
	Suburb       string
	District     string
}

// ReverseGeocoder is the provider contract: coordinate in, raw address
// components out. A (nil, nil) return is a valid response that simply carried
// no address.
type ReverseGeocoder interface {
	ReverseGeocode(ctx context.Context, coord spatial.Coordinate) (*RawAddress, error)
}
