// Copyright 2026 The GeoSort Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

// The display-name tables are data assets, not logic: they grow independently
// of the resolution algorithm and are embedded at build time.
var (
	//go:embed data/countries.yaml
	rawCountries []byte

	//go:embed data/states.yaml
	rawStates []byte

	//go:embed data/cities.yaml
	rawCities []byte

	//go:embed data/city_states.yaml
	rawCityStates []byte
)

// nameTables holds the dictionary mappings applied during normalization.
type nameTables struct {
	countries map[string]string
	states    map[string]string
	cities    map[string]string

	// cityStates is country → city → state, used to backfill an Unknown
	// state from a known city.
	cityStates map[string]map[string]string
}

func loadNameTables() (*nameTables, error) {
	t := &nameTables{}

	if err := yaml.Unmarshal(rawCountries, &t.countries); err != nil {
		return nil, fmt.Errorf("parsing country table: %w", err)
	}

	if err := yaml.Unmarshal(rawStates, &t.states); err != nil {
		return nil, fmt.Errorf("parsing state table: %w", err)
	}

	if err := yaml.Unmarshal(rawCities, &t.cities); err != nil {
		return nil, fmt.Errorf("parsing city table: %w", err)
	}

	if err := yaml.Unmarshal(rawCityStates, &t.cityStates); err != nil {
		return nil, fmt.Errorf("parsing city-state table: %w", err)
	}

	return t, nil
}

// InferState returns the state for a country/city pair when the pair is one
// of the fixed set the table knows about. Best-effort only.
func (t *nameTables) InferState(country, city string) (string, bool) {
	cities, ok := t.cityStates[country]
	if !ok {
		return "", false
	}

	state, ok := cities[city]

	return state, ok
}
