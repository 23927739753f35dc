// Copyright 2025 the lsmdb Authors.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tillwork/lsmdb"
)

func newScanCmd() *cobra.Command {
	var from string
	var limit int
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan keys in ascending order",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, _ := cmd.Flags().GetString("db")
			db, err := lsmdb.Open(dbPath, &lsmdb.Options{})
			if err != nil {
				return err
			}
			defer db.Close()

			it, err := db.NewIter(nil)
			if err != nil {
				return err
			}
			defer it.Close()

			if from != "" {
				it.Seek([]byte(from))
			} else {
				it.SeekToFirst()
			}
			n := 0
			for it.Valid() && (limit <= 0 || n < limit) {
				fmt.Printf("%s -> %s\n", it.Key(), it.Value())
				it.Next()
				n++
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "start scanning at this key")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of entries to print (0 = unlimited)")
	return cmd
}
