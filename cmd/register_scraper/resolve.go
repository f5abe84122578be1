package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <council>",
	Short: "Find and cache a council's official homepage",
	Args:  cobra.ExactArgs(1),
	RunE:  runResolve,
}

var resolveRefresh bool

func init() {
	resolveCmd.Flags().BoolVar(&resolveRefresh, "refresh", false, "Search again even when a homepage is cached")
	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	comp, err := buildComponents(ctx, cfg, store)
	if err != nil {
		return err
	}

	homepageURL, err := comp.resolver.Resolve(ctx, args[0], resolveRefresh)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), homepageURL)
	return nil
}
