// Copyright 2026 The GeoSort Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import "path"

// UnknownName is the sentinel used for any location field that could not be
// resolved. Each field may be Unknown independently.
const UnknownName = "Unknown"

// Location is a resolved place name hierarchy in normalized English display
// form.
type Location struct {
	Country string
	State   string
	City    string
}

// Unknown returns the all-unknown sentinel location.
func Unknown() Location {
	return Location{Country: UnknownName, State: UnknownName, City: UnknownName}
}

// IsUnknown reports whether every field of the location is unresolved.
func (l Location) IsUnknown() bool {
	return l.Country == UnknownName && l.State == UnknownName && l.City == UnknownName
}

// FolderKey returns the destination folder key for the location. A fully
// unknown location collapses to a single "Unknown" bucket instead of
// "Unknown/Unknown/Unknown" so the common no-GPS case does not grow two
// pointless nesting levels.
func (l Location) FolderKey() string {
	if l.IsUnknown() {
		return UnknownName
	}

	return path.Join(l.Country, l.State, l.City)
}
