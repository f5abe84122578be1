package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search <term>",
	Short: "Search stored registers by councillor, council, ward or text",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

var searchLimit int

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 20, "Maximum results (capped at 200)")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	term := strings.Join(args, " ")

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	matches, err := store.SearchRegisters(ctx, term, searchLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(matches) == 0 {
		fmt.Fprintf(out, "No registers match %q.\n", term)
		return nil
	}
	for _, m := range matches {
		where := m.Council
		if m.Ward != "" {
			where += ", " + m.Ward
		}
		fmt.Fprintf(out, "%s (%s)\n  %s\n  fetched %s, %s\n",
			m.Name, where, m.RegisterURL, m.FetchedAt.Format("2006-01-02 15:04"), m.ContentType)
		if snippet := oneLine(m.Snippet, 160); snippet != "" {
			fmt.Fprintf(out, "  %s\n", snippet)
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintf(out, "%d result(s)\n", len(matches))
	return nil
}

// oneLine collapses whitespace and truncates to max runes.
func oneLine(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) > max {
		return string(r[:max-3]) + "..."
	}
	return s
}
