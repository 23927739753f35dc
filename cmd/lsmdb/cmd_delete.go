// Copyright 2025 the lsmdb Authors.

package main

import (
	"github.com/spf13/cobra"

	"github.com/tillwork/lsmdb"
)

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "Delete a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, _ := cmd.Flags().GetString("db")
			db, err := lsmdb.Open(dbPath, &lsmdb.Options{})
			if err != nil {
				return err
			}
			defer db.Close()
			return db.Delete([]byte(args[0]), nil)
		},
	}
}
