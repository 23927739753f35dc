// Copyright 2025 the lsmdb Authors.

package main

import (
	"github.com/spf13/cobra"

	"github.com/tillwork/lsmdb"
)

func newCompactCmd() *cobra.Command {
	var begin, end string
	cmd := &cobra.Command{
		Use:   "compact",
		Short: "Force a manual compaction over [begin, end]",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, _ := cmd.Flags().GetString("db")
			db, err := lsmdb.Open(dbPath, &lsmdb.Options{})
			if err != nil {
				return err
			}
			defer db.Close()

			var b, e []byte
			if begin != "" {
				b = []byte(begin)
			}
			if end != "" {
				e = []byte(end)
			}
			return db.CompactRange(b, e)
		},
	}
	cmd.Flags().StringVar(&begin, "begin", "", "range start (inclusive), empty for unbounded")
	cmd.Flags().StringVar(&end, "end", "", "range end (inclusive), empty for unbounded")
	return cmd
}
