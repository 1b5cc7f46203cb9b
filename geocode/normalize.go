// Copyright 2026 The GeoSort Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var titleCaser = cases.Title(language.Und)

// cleanName trims a raw address field, replaces underscores with spaces and
// title-cases it. Empty or null-ish values collapse to Unknown.
func cleanName(name string) string {
	if name == "" || name == UnknownName {
		return UnknownName
	}

	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "_", " ")
	name = titleCaser.String(name)

	switch strings.ToLower(name) {
	case "unknown", "none", "null", "":
		return UnknownName
	}

	return name
}

// foldAccents strips combining marks so Latin-script names come out in plain
// ASCII ("São Paulo" → "Sao Paulo"). Non-Latin scripts pass through mostly
// unchanged; those are handled by the dictionary tables instead.
func foldAccents(s string) string {
	out, _, err := transform.String(
		transform.Chain(
			norm.NFD,
			runes.Remove(runes.In(unicode.Mn)),
			norm.NFC,
		),
		s,
	)
	if err != nil {
		return s
	}

	return out
}

// normalizeName cleans a raw field and maps it to its English display form.
// Names absent from the table keep their cleaned spelling with accents
// folded.
func normalizeName(name string, table map[string]string) string {
	cleaned := cleanName(name)
	if cleaned == UnknownName {
		return UnknownName
	}

	if mapped, ok := table[cleaned]; ok {
		return mapped
	}

	// The tables key on the verbatim spelling the geocoder emits, which
	// title-casing may not have touched (non-Latin scripts in particular).
	if mapped, ok := table[strings.TrimSpace(name)]; ok {
		return mapped
	}

	return foldAccents(cleaned)
}
