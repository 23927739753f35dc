// Copyright 2025 the lsmdb Authors.

package main

import (
	"fmt"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/tillwork/lsmdb"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print level statistics and per-level file counts as a line graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, _ := cmd.Flags().GetString("db")
			db, err := lsmdb.Open(dbPath, &lsmdb.Options{})
			if err != nil {
				return err
			}
			defer db.Close()

			if s, ok := db.GetProperty("lsmdb.stats"); ok && s != "" {
				fmt.Print(s)
			}

			counts := db.DebugLevelFileCounts()
			data := make([]float64, len(counts))
			for i, c := range counts {
				data[i] = float64(c)
			}
			graph := asciigraph.Plot(data, asciigraph.Height(10), asciigraph.Caption("files per level"))
			fmt.Println(graph)
			return nil
		},
	}
}
