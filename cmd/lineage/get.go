package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rootsmith/lineage/pkg/types"
)

var getCmd = &cobra.Command{
	Use:   "get <kind> <handle-or-display-id>",
	Short: "Print one object as JSON",
	Long: `Get looks an object up by handle first, then by display id, and prints
its document. With --json the output is the canonical stored form;
otherwise it is indented for reading.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, id := args[0], args[1]
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		doc, err := store.Get(kind, id)
		if errors.Is(err, types.ErrNotFound) {
			doc, err = store.GetByDisplayID(kind, id)
		}
		if err != nil {
			return fmt.Errorf("getting %s %q: %w", kind, id, err)
		}

		if flagJSON {
			raw, err := types.Encode(doc)
			if err != nil {
				return err
			}
			fmt.Println(string(raw))
			return nil
		}
		pretty, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(pretty))
		return nil
	},
}
