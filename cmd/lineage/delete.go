package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <kind> <handle>",
	Short: "Delete one object",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, handle := args[0], args[1]
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		txn, err := store.Begin(fmt.Sprintf("cli delete %s %s", kind, handle), false)
		if err != nil {
			return err
		}
		defer txn.Abort()
		if err := store.Delete(txn, kind, handle); err != nil {
			return fmt.Errorf("deleting %s %q: %w", kind, handle, err)
		}
		if err := txn.Commit(); err != nil {
			return err
		}
		fmt.Printf("deleted %s %s\n", kind, handle)
		return nil
	},
}
