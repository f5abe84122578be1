package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/council-registers/internal/loader"
)

var loadCSVCmd = &cobra.Command{
	Use:   "load-csv [file]",
	Short: "Load councillors from a seed CSV",
	Long: "Reads a CSV with council, ward and name columns (and an optional \"next election\" column) " +
		"and inserts each councillor once. Rows without a name or council are skipped.",
	Args: cobra.MaximumNArgs(1),
	RunE: runLoadCSV,
}

const defaultSeedCSV = "reform-councillors.csv"

func init() {
	rootCmd.AddCommand(loadCSVCmd)
}

func runLoadCSV(cmd *cobra.Command, args []string) error {
	path := defaultSeedCSV
	if len(args) == 1 {
		path = args[0]
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open seed csv %s: %w", path, err)
	}
	defer f.Close()

	ctx := cmd.Context()
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := loader.LoadCouncillors(ctx, f, store)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Inserted %d councillor rows (%d read, %d already present, %d skipped).\n",
		stats.Inserted, stats.Read, stats.Duplicates, stats.Skipped)
	return nil
}
