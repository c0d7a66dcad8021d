// Package main provides the lineage CLI, a thin shell over the storage
// engine for inspecting and maintaining a database.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rootsmith/lineage/pkg/lineage"
	"github.com/rootsmith/lineage/pkg/types"
)

// Global flag values.
var (
	flagConfigDir string
	flagDataDir   string
	flagJSON      bool
)

var rootCmd = &cobra.Command{
	Use:     "lineage",
	Short:   "Lineage is a genealogical record store",
	Version:       lineage.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	Long: `Lineage stores genealogical records (people, families, events, places,
sources and more) as documents in a local database with queryable
projected columns. The CLI inspects and maintains a database; editing
happens through the library API.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigDir, "config-dir", "", "configuration directory (default: $(CWD)/.lineage)")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "data directory (default: $(CWD)/.lineage-db)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output as JSON")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(backlinksCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(versionCmd)
}

// openStore opens the store from the resolved configuration. Callers
// must Close it.
func openStore() (types.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return lineage.Open(cfg, types.DefaultRegistry(), lineage.Options{})
}
