package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rootsmith/lineage/pkg/types"
)

var (
	flagListOrder string
	flagListDesc  bool
	flagListStart int
	flagListCount int
	flagListWhere []string
)

var listCmd = &cobra.Command{
	Use:   "list <kind>",
	Short: "List objects of a kind",
	Long: `List prints objects of a kind, one per line, as display id and handle.
Filters are field=value pairs combined with AND; field may be a column
name or a dotted document path. With --json every matching document is
printed on its own line.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := args[0]
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		opts := types.SelectOptions{
			Start: flagListStart,
			Count: flagListCount,
		}
		if flagListOrder != "" {
			opts.OrderBy = []types.OrderBy{{Field: flagListOrder, Descending: flagListDesc}}
		}
		where, err := parseFilters(flagListWhere)
		if err != nil {
			return err
		}
		opts.Where = where

		res, err := store.Select(kind, opts)
		if err != nil {
			return fmt.Errorf("listing %s: %w", kind, err)
		}
		for _, doc := range res.Rows {
			if flagJSON {
				raw, err := types.Encode(doc)
				if err != nil {
					return err
				}
				fmt.Println(string(raw))
				continue
			}
			fmt.Printf("%-8s %s\n", types.DisplayID(doc), types.Handle(doc))
		}
		if !flagJSON {
			fmt.Printf("%d of %d\n", len(res.Rows), res.Total)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().StringVar(&flagListOrder, "order", "", "field to order by")
	listCmd.Flags().BoolVar(&flagListDesc, "desc", false, "order descending")
	listCmd.Flags().IntVar(&flagListStart, "start", 0, "number of matches to skip")
	listCmd.Flags().IntVar(&flagListCount, "count", 0, "maximum matches to return (0 = all)")
	listCmd.Flags().StringArrayVar(&flagListWhere, "where", nil, "field=value filter, repeatable")
}

// parseFilters turns field=value pairs into an AND of equality conditions.
func parseFilters(pairs []string) (types.Expr, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	conds := make([]types.Expr, 0, len(pairs))
	for _, pair := range pairs {
		field, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("malformed filter %q, want field=value", pair)
		}
		conds = append(conds, types.Eq(field, value))
	}
	if len(conds) == 1 {
		return conds[0], nil
	}
	return types.And(conds...), nil
}
