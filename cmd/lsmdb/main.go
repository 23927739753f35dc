// Copyright 2025 the lsmdb Authors.

// Command lsmdb is a small operator CLI for a lsmdb database: point
// reads/writes, range scans, manual compaction, and a stats dump.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "lsmdb",
		Short: "Inspect and operate a lsmdb key-value store",
	}
	root.PersistentFlags().String("db", "", "path to the database directory")
	root.MarkPersistentFlagRequired("db")

	root.AddCommand(
		newPutCmd(),
		newGetCmd(),
		newDeleteCmd(),
		newScanCmd(),
		newCompactCmd(),
		newManifestCmd(),
		newStatsCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
