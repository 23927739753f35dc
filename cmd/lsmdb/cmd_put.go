// Copyright 2025 the lsmdb Authors.

package main

import (
	"github.com/spf13/cobra"

	"github.com/tillwork/lsmdb"
)

func newPutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "put <key> <value>",
		Short: "Set a key to a value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, _ := cmd.Flags().GetString("db")
			db, err := lsmdb.Open(dbPath, &lsmdb.Options{CreateIfMissing: true})
			if err != nil {
				return err
			}
			defer db.Close()
			return db.Put([]byte(args[0]), []byte(args[1]), nil)
		},
	}
	return cmd
}
