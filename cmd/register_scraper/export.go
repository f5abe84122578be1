package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/council-registers/internal/analysis"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored register texts to CSV",
	Long: "Writes one row per stored register with council, councillor, ward, register_url, " +
		"content_type and extracted_text columns.",
	Args: cobra.NoArgs,
	RunE: runExport,
}

var exportOutput string

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "register_texts.csv", "CSV file to write")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	texts, err := store.ListRegisterTexts(ctx)
	if err != nil {
		return err
	}

	f, err := os.Create(exportOutput)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", exportOutput, err)
	}
	if err := analysis.WriteTextsCSV(f, texts); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", exportOutput, err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d register(s) to %s\n", len(texts), exportOutput)
	return nil
}
