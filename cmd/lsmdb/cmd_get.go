// Copyright 2025 the lsmdb Authors.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tillwork/lsmdb"
)

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Read the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, _ := cmd.Flags().GetString("db")
			db, err := lsmdb.Open(dbPath, &lsmdb.Options{})
			if err != nil {
				return err
			}
			defer db.Close()
			val, err := db.Get([]byte(args[0]), nil)
			if err != nil {
				return err
			}
			fmt.Println(string(val))
			return nil
		},
	}
}
