package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var flagBacklinkKinds []string

var backlinksCmd = &cobra.Command{
	Use:   "backlinks <handle>",
	Short: "List the objects whose documents reference a handle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		links, err := store.Backlinks(args[0], flagBacklinkKinds...)
		if err != nil {
			return fmt.Errorf("finding backlinks of %q: %w", args[0], err)
		}
		for _, link := range links {
			fmt.Printf("%-12s %s\n", link.Kind, link.Handle)
		}
		if len(links) == 0 {
			fmt.Println("no backlinks")
		}
		return nil
	},
}

func init() {
	backlinksCmd.Flags().StringArrayVar(&flagBacklinkKinds, "kind", nil, "restrict to owner kind, repeatable")
}
