// Copyright 2026 The GeoSort Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"
)

type logWriter struct {
	writer io.Writer
}

func (w *logWriter) Write(bytes []byte) (int, error) {
	return fmt.Fprintf(w.writer, "%s %s", time.Now().Format("2006-01-02 15:04:05"), string(bytes))
}

func init() {
	log.SetFlags(0)
	log.SetOutput(&logWriter{writer: os.Stderr})
}

var rootCmd = &cobra.Command{
	Use:   "geosort",
	Short: "organize media files by GPS location",
	Long: `
geosort sorts images and videos into Country/State/City folders derived from
the GPS metadata embedded in each file. Files without usable GPS data land in
a single Unknown folder.
`,
}

var Version = "dev"

func Execute(version string) {
	Version = version

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
