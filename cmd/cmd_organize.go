// Copyright 2026 The GeoSort Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/geosort/geosort/extract"
	"github.com/geosort/geosort/geocode"
	"github.com/geosort/geosort/organize"
	"github.com/spf13/cobra"
)

// pipelineOptions are the flags shared by plan and organize.
type pipelineOptions struct {
	Workers             int
	FastMode            bool
	Tolerance           float64
	MinDelay            time.Duration
	BatchTimeout        time.Duration
	UserAgent           string
	EnableHTTPTrace     bool
	EnableHTTPBodyTrace bool
}

var pipeOptions = &pipelineOptions{}

var moveFiles bool

// newResolver builds the geocoding resolver from the shared flags.
func newResolver() (*geocode.Resolver, error) {
	userAgent := pipeOptions.UserAgent
	if userAgent == "" {
		userAgent = fmt.Sprintf("geosort/%s (+https://github.com/geosort/geosort)", Version)
	}

	provider := geocode.NewNominatimGeocoder(&geocode.NominatimOptions{
		UserAgent:           userAgent,
		EnableHTTPTrace:     pipeOptions.EnableHTTPTrace,
		EnableHTTPBodyTrace: pipeOptions.EnableHTTPBodyTrace,
	})

	return geocode.NewResolver(&geocode.ResolverOptions{
		Provider:  provider,
		MinDelay:  pipeOptions.MinDelay,
		Tolerance: pipeOptions.Tolerance,
	})
}

func batchOptions() *organize.BatchOptions {
	return &organize.BatchOptions{
		Workers:      pipeOptions.Workers,
		FastMode:     pipeOptions.FastMode,
		BatchTimeout: pipeOptions.BatchTimeout,
	}
}

var organizeCmd = &cobra.Command{
	Use:   "organize <source> <destination>",
	Short: "Copy or move media files into location folders",
	Args:  cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		source, dest := args[0], args[1]

		files, err := organize.ScanDirectory(source)
		if err != nil {
			return err
		}

		if len(files) == 0 {
			log.Printf("No media files found in %s", source)

			return nil
		}

		log.Printf("Found %d media files in %s", len(files), source)

		resolver, err := newResolver()
		if err != nil {
			return err
		}

		organizer, err := organize.NewOrganizer(dest)
		if err != nil {
			return err
		}

		op := organize.OperationCopy
		if moveFiles {
			op = organize.OperationMove
		}

		batch := organize.NewBatch(extract.NewExtractor(), resolver, organizer, batchOptions())

		metrics, err := batch.Execute(context.Background(), files, op)
		if err != nil {
			return fmt.Errorf("executing batch: %w", err)
		}

		stats := resolver.Stats()

		fmt.Printf("Successful:         %d\n", metrics.Successful)
		fmt.Printf("  placed:           %d\n", metrics.Placed)
		fmt.Printf("  identical:        %d\n", metrics.SkippedIdentical)
		fmt.Printf("  different:        %d\n", metrics.SkippedDifferent)
		fmt.Printf("Failed:             %d\n", metrics.Failed)
		fmt.Printf("No GPS data:        %d\n", metrics.NoGPS)
		fmt.Printf("Geocoding failed:   %d\n", metrics.GeocodeFailed)
		fmt.Printf("Geocode cache:      %d hits, %d misses (%.1f%%), %d entries\n",
			stats.Hits, stats.Misses, stats.HitRate, stats.Size)

		if metrics.Failed > 0 {
			return fmt.Errorf("%d files failed", metrics.Failed)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(organizeCmd)

	organizeCmd.Flags().BoolVar(&moveFiles, "move", false,
		"Move files instead of copying them")

	for _, cmd := range []*cobra.Command{organizeCmd, planCmd} {
		cmd.Flags().IntVar(&pipeOptions.Workers, "workers", 0,
			"Placement worker pool size. Defaults to 16, capped at 32")
		cmd.Flags().BoolVar(&pipeOptions.FastMode, "fast", false,
			"Skip geocoding for large datasets; everything routes to Unknown")
		cmd.Flags().Float64Var(&pipeOptions.Tolerance, "tolerance", geocode.DefaultTolerance,
			"Coordinate grouping tolerance in degrees")
		cmd.Flags().DurationVar(&pipeOptions.MinDelay, "min-delay", time.Second,
			"Minimum delay between geocoding requests")
		cmd.Flags().DurationVar(&pipeOptions.BatchTimeout, "batch-timeout", 15*time.Minute,
			"Wall-clock bound on full resolution of large datasets")
		cmd.Flags().StringVar(&pipeOptions.UserAgent, "user-agent", "",
			"User-Agent for geocoding requests")
		cmd.Flags().BoolVar(&pipeOptions.EnableHTTPTrace, "trace-http", false,
			"Display HTTP requests-responses")
		cmd.Flags().BoolVar(&pipeOptions.EnableHTTPBodyTrace, "trace-http-body", false,
			"Display HTTP requests-responses bodies")
	}
}
