package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/council-registers/internal/analysis"
	"github.com/jonathan/council-registers/internal/types"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Find interests declared in more than one register",
	Long: "Splits every register's text into sentences, clusters near-identical sentences and writes " +
		"the clusters that appear in at least two registers, most widely shared first. " +
		"Reads the database unless --input names an exported CSV.",
	Args: cobra.NoArgs,
	RunE: runAnalyze,
}

var (
	analyzeInput  string
	analyzeOutput string
	analyzeOpts   = analysis.DefaultOptions()
)

func init() {
	f := analyzeCmd.Flags()
	f.StringVarP(&analyzeInput, "input", "i", "", "Register text CSV from export (default: read the database)")
	f.StringVarP(&analyzeOutput, "output", "o", "shared_interests.csv", "CSV file to write")
	f.Float64Var(&analyzeOpts.Threshold, "threshold", analysis.DefaultThreshold, "Minimum similarity (0-1] for two sentences to cluster")
	f.IntVar(&analyzeOpts.MinLength, "min-len", analysis.DefaultMinLength, "Shortest sentence considered, in characters")
	f.IntVar(&analyzeOpts.MaxLength, "max-len", analysis.DefaultMaxLength, "Longest sentence considered, in characters")
	f.IntVar(&analyzeOpts.MaxExamples, "max-examples", analysis.DefaultMaxExamples, "Examples kept per cluster")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	if analyzeOpts.Threshold <= 0 || analyzeOpts.Threshold > 1 {
		return fmt.Errorf("--threshold must be in (0, 1], got %g", analyzeOpts.Threshold)
	}
	if analyzeOpts.MinLength > analyzeOpts.MaxLength {
		return fmt.Errorf("--min-len %d exceeds --max-len %d", analyzeOpts.MinLength, analyzeOpts.MaxLength)
	}

	texts, err := loadRegisterTexts(cmd)
	if err != nil {
		return err
	}
	slog.Debug("analysing registers", "count", len(texts))

	clusters := analysis.SharedInterests(texts, analyzeOpts)

	f, err := os.Create(analyzeOutput)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", analyzeOutput, err)
	}
	if err := analysis.WriteClustersCSV(f, clusters); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", analyzeOutput, err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Found %d shared interest(s) across %d register(s); wrote %s\n",
		len(clusters), len(texts), analyzeOutput)
	return nil
}

func loadRegisterTexts(cmd *cobra.Command) ([]types.RegisterText, error) {
	if analyzeInput != "" {
		f, err := os.Open(analyzeInput)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", analyzeInput, err)
		}
		defer f.Close()
		return analysis.ReadTextsCSV(f)
	}

	ctx := cmd.Context()
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	return store.ListRegisterTexts(ctx)
}
