package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rootsmith/lineage/pkg/lineage"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the lineage version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("lineage %s\n", lineage.Version)
	},
}
