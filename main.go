// Copyright 2026 The GeoSort Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/geosort/geosort/cmd"
)

var Version = "development"

func main() {
	cmd.Execute(Version)
}
