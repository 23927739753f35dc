// Copyright 2025 the lsmdb Authors.

package main

import (
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/tillwork/lsmdb"
)

func newManifestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "manifest",
		Short: "List every sorted table tracked in the current version, by level",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, _ := cmd.Flags().GetString("db")
			db, err := lsmdb.Open(dbPath, &lsmdb.Options{})
			if err != nil {
				return err
			}
			defer db.Close()

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"level", "file", "size", "smallest", "largest"})
			for _, row := range db.DebugManifestRows() {
				table.Append(row)
			}
			table.Render()
			return nil
		},
	}
}
