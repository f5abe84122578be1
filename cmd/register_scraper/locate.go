package main

import (
	"github.com/spf13/cobra"

	"github.com/jonathan/council-registers/internal/observability"
)

var locateCmd = &cobra.Command{
	Use:   "locate <council>",
	Short: "List register candidate URLs for a council",
	Long:  "Resolves the council's homepage, then crawls it (and searches, if the crawl finds nothing) for register-of-interests links.",
	Args:  cobra.ExactArgs(1),
	RunE:  runLocate,
}

var locateHomepage string

func init() {
	locateCmd.Flags().StringVar(&locateHomepage, "homepage", "", "Start from this homepage instead of resolving one")
	rootCmd.AddCommand(locateCmd)
}

func runLocate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	council := args[0]

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	comp, err := buildComponents(ctx, cfg, store)
	if err != nil {
		return err
	}

	homepageURL := locateHomepage
	if homepageURL == "" {
		// An unresolved homepage still allows an unrestricted search.
		homepageURL, _ = comp.resolver.Resolve(ctx, council, false)
	}

	candidates := comp.locator.Locate(ctx, homepageURL, council)
	urls := make([]string, 0, len(candidates))
	for _, c := range candidates {
		urls = append(urls, c.URL)
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintCandidates(council, homepageURL, urls)
	return nil
}
