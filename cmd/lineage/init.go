package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the configuration directory and an empty database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		configDir, err := ensureConfigDir()
		if err != nil {
			return err
		}
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		fmt.Printf("initialized: config in %s, data in %s\n", configDir, cfg.DataDir)
		return nil
	},
}
