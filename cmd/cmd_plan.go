// Copyright 2026 The GeoSort Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/geosort/geosort/extract"
	"github.com/geosort/geosort/organize"
	"github.com/spf13/cobra"
)

var planVerbose bool

var planCmd = &cobra.Command{
	Use:   "plan <source>",
	Short: "Show where files would go without touching storage",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		files, err := organize.ScanDirectory(args[0])
		if err != nil {
			return err
		}

		if len(files) == 0 {
			log.Printf("No media files found in %s", args[0])

			return nil
		}

		resolver, err := newResolver()
		if err != nil {
			return err
		}

		batch := organize.NewBatch(extract.NewExtractor(), resolver, nil, batchOptions())

		report, err := batch.Plan(context.Background(), files)
		if err != nil {
			return fmt.Errorf("planning batch: %w", err)
		}

		for _, key := range report.FolderKeys() {
			paths := report.Folders[key]
			fmt.Printf("%-50s %d files\n", key, len(paths))

			if planVerbose {
				for _, p := range paths {
					fmt.Printf("    %s\n", p)
				}
			}
		}

		fmt.Printf("\nTotal:              %d\n", report.TotalFiles)
		fmt.Printf("With GPS:           %d\n", report.WithGPS)
		fmt.Printf("No GPS data:        %d\n", report.NoGPS)
		fmt.Printf("Geocoding failed:   %d\n", report.GeocodeFailed)
		fmt.Printf("Geocode cache:      %d hits, %d misses (%.1f%%), %d entries\n",
			report.CacheStats.Hits, report.CacheStats.Misses,
			report.CacheStats.HitRate, report.CacheStats.Size)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(planCmd)

	planCmd.Flags().BoolVar(&planVerbose, "verbose", false,
		"List every file under each folder")
}
