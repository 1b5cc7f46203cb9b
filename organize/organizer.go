// Copyright 2026 The GeoSort Authors
// SPDX-License-Identifier: Apache-2.0

// Package organize places media files under a destination hierarchy keyed by
// resolved location, and coordinates batch runs of the whole pipeline.
package organize

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/geosort/geosort/geocode"
)

// Operation selects how a file reaches its destination.
type Operation int

const (
	// OperationCopy copies the file, leaving the source in place.
	OperationCopy Operation = iota
	// OperationMove moves the file.
	OperationMove
)

func (o Operation) String() string {
	if o == OperationMove {
		return "move"
	}

	return "copy"
}

// Outcome is the result of placing a single file.
type Outcome int

const (
	// OutcomePlaced the file was copied or moved.
	OutcomePlaced Outcome = iota
	// OutcomeSkippedIdentical destination already held byte-identical
	// content; nothing was touched.
	OutcomeSkippedIdentical
	// OutcomeSkippedDifferent destination held a file with different
	// content; it was not overwritten.
	OutcomeSkippedDifferent
	// OutcomeFailed the placement failed.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomePlaced:
		return "placed"
	case OutcomeSkippedIdentical:
		return "skipped identical"
	case OutcomeSkippedDifferent:
		return "skipped different content"
	default:
		return "failed"
	}
}

// Organizer creates location directories and performs dedup-aware copy and
// move operations. Safe for concurrent use: the directory cache hands every
// caller of the same location key the path the first caller created.
type Organizer struct {
	destRoot string

	mu       sync.Mutex
	dirCache map[string]string
}

// NewOrganizer creates an Organizer rooted at destRoot, creating the root if
// needed.
func NewOrganizer(destRoot string) (*Organizer, error) {
	if err := os.MkdirAll(destRoot, 0o755); err != nil {
		return nil, fmt.Errorf("creating destination root: %w", err)
	}

	return &Organizer{
		destRoot: destRoot,
		dirCache: make(map[string]string),
	}, nil
}

// Place puts the file into the directory for its location. Re-placing an
// identical file is a no-op; an existing file with different content is never
// overwritten.
func (o *Organizer) Place(path string, loc geocode.Location, op Operation) Outcome {
	dir := o.locationDir(loc)

	dest := filepath.Join(dir, filepath.Base(path))

	if _, err := os.Stat(dest); err == nil {
		if filesIdentical(path, dest) {
			return OutcomeSkippedIdentical
		}

		return OutcomeSkippedDifferent
	}

	var err error
	if op == OperationMove {
		err = moveFile(path, dest)
	} else {
		err = copyFile(path, dest)
	}

	if err != nil {
		log.Printf("Placing %s failed: %s", path, err)

		return OutcomeFailed
	}

	return OutcomePlaced
}

// locationDir returns the directory for a location, creating it once. A
// failed mkdir falls back to the Unknown bucket rather than failing the file.
func (o *Organizer) locationDir(loc geocode.Location) string {
	safe := geocode.Location{
		Country: sanitizeName(loc.Country),
		State:   sanitizeName(loc.State),
		City:    sanitizeName(loc.City),
	}

	key := safe.FolderKey()

	o.mu.Lock()
	defer o.mu.Unlock()

	if dir, ok := o.dirCache[key]; ok {
		return dir
	}

	dir := filepath.Join(o.destRoot, filepath.FromSlash(key))

	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Printf("Creating %s failed, using Unknown bucket: %s", dir, err)

		dir = filepath.Join(o.destRoot, geocode.UnknownName)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			// Placement will fail per file and be counted there.
			log.Printf("Creating Unknown bucket failed: %s", err)
		}
	}

	o.dirCache[key] = dir

	return dir
}

// DirCacheSize returns the number of cached location directories.
func (o *Organizer) DirCacheSize() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	return len(o.dirCache)
}

// sanitizeName makes a location name safe to use as a directory name.
func sanitizeName(name string) string {
	const invalid = `<>:"/\|?*`

	for _, ch := range invalid {
		name = strings.ReplaceAll(name, string(ch), "_")
	}

	name = strings.Trim(name, ". ")

	if len(name) > 100 {
		name = name[:100]
	}

	if name == "" {
		return geocode.UnknownName
	}

	return name
}

// filesIdentical compares two files by size first, then content in 8KiB
// chunks.
func filesIdentical(a, b string) bool {
	fa, err := os.Open(a)
	if err != nil {
		return false
	}
	defer fa.Close()

	fb, err := os.Open(b)
	if err != nil {
		return false
	}
	defer fb.Close()

	ia, err := fa.Stat()
	if err != nil {
		return false
	}

	ib, err := fb.Stat()
	if err != nil {
		return false
	}

	if ia.Size() != ib.Size() {
		return false
	}

	const chunk = 8192

	bufA := make([]byte, chunk)
	bufB := make([]byte, chunk)

	for {
		na, errA := io.ReadFull(fa, bufA)
		nb, errB := io.ReadFull(fb, bufB)

		if na != nb || !bytes.Equal(bufA[:na], bufB[:nb]) {
			return false
		}

		if errA == io.EOF || errA == io.ErrUnexpectedEOF {
			return errB == io.EOF || errB == io.ErrUnexpectedEOF
		}

		if errA != nil || errB != nil {
			return false
		}
	}
}

// copyFile copies src to dest preserving the modification time.
func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("reading source info: %w", err)
	}

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("creating destination: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dest)

		return fmt.Errorf("copying content: %w", err)
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("closing destination: %w", err)
	}

	return os.Chtimes(dest, info.ModTime(), info.ModTime())
}

// moveFile renames src to dest, falling back to copy-and-remove across
// filesystems.
func moveFile(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}

	if err := copyFile(src, dest); err != nil {
		return err
	}

	return os.Remove(src)
}
