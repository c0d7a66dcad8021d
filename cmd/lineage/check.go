package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify projection and backlink consistency",
	Long: `Check re-derives every projected column and reference row from the
stored documents and reports any divergence. A clean database prints
"ok".`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		issues, err := store.Check()
		if err != nil {
			return err
		}
		if len(issues) == 0 {
			fmt.Println("ok")
			return nil
		}
		for _, issue := range issues {
			fmt.Println(issue)
		}
		return fmt.Errorf("%d consistency issue(s)", len(issues))
	},
}
