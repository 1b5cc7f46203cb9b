// Copyright 2026 The GeoSort Authors
// SPDX-License-Identifier: Apache-2.0

package organize

import (
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/geosort/geosort/extract"
)

// ScanDirectory walks src recursively and returns every media file path.
// Unreadable subtrees are skipped, not fatal.
func ScanDirectory(src string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}

			return nil
		}

		if !d.IsDir() && extract.IsMediaFile(path) {
			files = append(files, path)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", src, err)
	}

	return files, nil
}
