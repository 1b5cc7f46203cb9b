// Copyright 2026 The GeoSort Authors
// SPDX-License-Identifier: Apache-2.0

// Package extract pulls GPS coordinates out of media files. Every failure is
// silent by contract: callers only learn whether a coordinate was found.
package extract

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/geosort/geosort/spatial"
	"github.com/rwcarlsen/goexif/exif"
)

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".tiff": true, ".tif": true,
	".bmp": true, ".gif": true, ".webp": true,
}

var videoExts = map[string]bool{
	".mp4": true, ".avi": true, ".mov": true, ".mkv": true, ".wmv": true,
	".flv": true, ".webm": true, ".m4v": true, ".3gp": true,
}

// IsMediaFile reports whether the path has a supported media extension.
func IsMediaFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))

	return imageExts[ext] || videoExts[ext]
}

// Extractor reads GPS coordinates from media files.
type Extractor struct{}

// NewExtractor creates a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// hintWindow is how much of the file the probe is willing to read.
const hintWindow = 256 * 1024

// gpsIFDTag is the big-endian encoding of the EXIF GPS IFD pointer tag
// (0x8825). Its presence in the header window is a strong hint the image
// carries GPS data.
var gpsIFDTag = []byte{0x88, 0x25}

// xyzAtom is the QuickTime user-data atom holding an ISO 6709 location
// string ("©xyz" with the copyright sign encoded as 0xA9).
var xyzAtom = []byte{0xA9, 'x', 'y', 'z'}

// HasGPSHint is a cheap existence probe: it scans the head of the file for
// GPS markers without decoding anything. It may false-positive or
// false-negative and is only a pre-filter, never a correctness boundary.
func (e *Extractor) HasGPSHint(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))

	var marker []byte

	switch {
	case imageExts[ext]:
		marker = gpsIFDTag
	case videoExts[ext]:
		marker = xyzAtom
	default:
		return false
	}

	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	head := make([]byte, hintWindow)

	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF {
		return false
	}

	if bytes.Contains(head[:n], marker) {
		return true
	}

	if videoExts[ext] {
		// The user-data box often sits at the end of the container.
		return containsInTail(f, marker)
	}

	return false
}

// Coordinates extracts the GPS position from a media file. The second return
// value is false when no coordinate could be found for any reason.
func (e *Extractor) Coordinates(path string) (spatial.Coordinate, bool) {
	ext := strings.ToLower(filepath.Ext(path))

	switch {
	case imageExts[ext]:
		return e.imageCoordinates(path)
	case videoExts[ext]:
		return e.videoCoordinates(path)
	default:
		return spatial.Coordinate{}, false
	}
}

func (e *Extractor) imageCoordinates(path string) (spatial.Coordinate, bool) {
	f, err := os.Open(path)
	if err != nil {
		return spatial.Coordinate{}, false
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return spatial.Coordinate{}, false
	}

	lat, lon, err := x.LatLong()
	if err != nil {
		return spatial.Coordinate{}, false
	}

	coord := spatial.Coordinate{Lat: lat, Lon: lon}
	if !coord.Valid() {
		return spatial.Coordinate{}, false
	}

	return coord, true
}

func (e *Extractor) videoCoordinates(path string) (spatial.Coordinate, bool) {
	f, err := os.Open(path)
	if err != nil {
		return spatial.Coordinate{}, false
	}
	defer f.Close()

	// Look for the ©xyz user-data atom in the head, then the tail.
	head := make([]byte, hintWindow)

	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF {
		return spatial.Coordinate{}, false
	}

	if coord, ok := parseXYZAtom(head[:n]); ok {
		return coord, true
	}

	tail, ok := readTail(f)
	if !ok {
		return spatial.Coordinate{}, false
	}

	return parseXYZAtom(tail)
}

// parseXYZAtom locates a ©xyz atom in buf and parses its ISO 6709 payload.
// The atom layout is: marker, 2-byte big-endian payload size, 2-byte language
// code, payload.
func parseXYZAtom(buf []byte) (spatial.Coordinate, bool) {
	idx := bytes.Index(buf, xyzAtom)
	if idx < 0 || idx+8 > len(buf) {
		return spatial.Coordinate{}, false
	}

	body := buf[idx+len(xyzAtom):]
	size := int(body[0])<<8 | int(body[1])

	payload := body[4:]
	if size <= 0 || size > len(payload) {
		return spatial.Coordinate{}, false
	}

	return ParseISO6709(string(payload[:size]))
}

var iso6709Re = regexp.MustCompile(`^([+-]\d+(?:\.\d+)?)([+-]\d+(?:\.\d+)?)`)

// ParseISO6709 parses a location string of the form "+27.5916+086.5640/"
// as stored by QuickTime and MP4 recorders.
func ParseISO6709(s string) (spatial.Coordinate, bool) {
	m := iso6709Re.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return spatial.Coordinate{}, false
	}

	lat, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return spatial.Coordinate{}, false
	}

	lon, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return spatial.Coordinate{}, false
	}

	coord := spatial.Coordinate{Lat: lat, Lon: lon}
	if !coord.Valid() {
		return spatial.Coordinate{}, false
	}

	return coord, true
}

func readTail(f *os.File) ([]byte, bool) {
	info, err := f.Stat()
	if err != nil {
		return nil, false
	}

	offset := info.Size() - hintWindow
	if offset < 0 {
		offset = 0
	}

	tail := make([]byte, info.Size()-offset)
	if _, err := f.ReadAt(tail, offset); err != nil && err != io.EOF {
		return nil, false
	}

	return tail, true
}

func containsInTail(f *os.File, marker []byte) bool {
	tail, ok := readTail(f)
	if !ok {
		return false
	}

	return bytes.Contains(tail, marker)
}
