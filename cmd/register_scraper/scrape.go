package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/council-registers/internal/config"
	"github.com/jonathan/council-registers/internal/observability"
	"github.com/jonathan/council-registers/internal/pipeline"
	"github.com/jonathan/council-registers/internal/types"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Find, download and match registers for every councillor",
	Long: "Runs the matching pipeline over the seed list. Councillors that already have a register are " +
		"skipped unless --rescan is given. Failures are written to the audit table; the command exits 0 " +
		"once the run completes, and non-zero when interrupted.",
	RunE: runScrape,
}

var (
	scrapeWorkers          int
	scrapeRescan           bool
	scrapeRefreshHomepages bool
	scrapeDemocracy        bool
	scrapeBrowser          bool
	scrapeNoSearch         bool
	scrapeMetricsAddr      string
	scrapeMissingReport    string
	scrapeQuiet            bool
)

func init() {
	scrapeCmd.Flags().IntVarP(&scrapeWorkers, "workers", "w", 0, "Concurrent councillors, 1-32 (overrides WORKERS)")
	scrapeCmd.Flags().BoolVar(&scrapeRescan, "rescan", false, "Reprocess councillors that already have a register")
	scrapeCmd.Flags().BoolVar(&scrapeRefreshHomepages, "refresh-homepages", false, "Ignore cached council homepages")
	scrapeCmd.Flags().BoolVar(&scrapeDemocracy, "democracy", false, "Look councillors up in democracy member indexes (overrides USE_DEMOCRACY)")
	scrapeCmd.Flags().BoolVar(&scrapeBrowser, "browser", false, "Render thin HTML pages in headless Chrome (overrides USE_BROWSER)")
	scrapeCmd.Flags().BoolVar(&scrapeNoSearch, "no-search", false, "Disable the fallback register search")
	scrapeCmd.Flags().StringVar(&scrapeMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address during the run, e.g. :9090")
	scrapeCmd.Flags().StringVar(&scrapeMissingReport, "missing-report", "missing_councillors.csv", "CSV of councillors left without a register (empty to disable)")
	scrapeCmd.Flags().BoolVarP(&scrapeQuiet, "quiet", "q", false, "Do not print per-councillor progress")

	rootCmd.AddCommand(scrapeCmd)
}

// applyScrapeFlags copies explicitly set flags over the configuration.
func applyScrapeFlags(cmd *cobra.Command, c *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("workers") {
		c.Workers = scrapeWorkers
	}
	if flags.Changed("rescan") {
		c.Rescan = scrapeRescan
	}
	if flags.Changed("democracy") {
		c.UseDemocracy = scrapeDemocracy
	}
	if flags.Changed("browser") {
		c.UseBrowser = scrapeBrowser
	}
	if flags.Changed("no-search") {
		c.UseFallbackSearch = !scrapeNoSearch
	}
	return c.Validate()
}

func runScrape(cmd *cobra.Command, _ []string) error {
	c := *cfg
	if err := applyScrapeFlags(cmd, &c); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, &c)
	if err != nil {
		return err
	}
	defer store.Close()

	comp, err := buildComponents(ctx, &c, store)
	if err != nil {
		return err
	}

	metrics := observability.NewMetrics()
	if scrapeMetricsAddr != "" {
		shutdown, err := serveMetrics(scrapeMetricsAddr, metrics)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	out := cmd.OutOrStdout()
	opts := &pipeline.Options{
		Workers:          c.Workers,
		Rescan:           c.Rescan,
		RefreshHomepages: scrapeRefreshHomepages,
		Renderer:         comp.renderer,
		Metrics:          metrics,
		Logger:           slog.Default(),
	}
	if comp.finder != nil {
		opts.Finder = comp.finder
	}
	if !scrapeQuiet {
		opts.OnProgress = progressPrinter(out)
	}

	p := pipeline.New(store, comp.fetcher, comp.resolver, comp.locator, opts)
	summary, runErr := p.Run(ctx)
	if summary == nil {
		return runErr
	}

	observability.NewPrinter(out).PrintRunSummary(summary)

	if scrapeMissingReport != "" && len(summary.Missing) > 0 {
		if err := writeMissingReportFile(scrapeMissingReport, summary.Missing); err != nil {
			slog.Error("failed to write missing report", "path", scrapeMissingReport, "error", err)
		} else {
			fmt.Fprintf(out, "Wrote missing councillors report to %s\n", scrapeMissingReport)
		}
	}

	if errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("scrape interrupted; rerun to resume")
	}
	return runErr
}

// progressPrinter writes one line per finished or skipped councillor.
func progressPrinter(out io.Writer) pipeline.ProgressCallback {
	return func(e pipeline.ProgressEvent) {
		switch e.Step {
		case pipeline.StepDone, pipeline.StepSkip:
			fmt.Fprintf(out, "[%s] %s (%s): %s\n", e.Step, e.Councillor, e.Council, e.Message)
		}
	}
}

// serveMetrics exposes the run's metrics until the returned func is called.
func serveMetrics(addr string, metrics *observability.Metrics) (func(), error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	select {
	case err := <-errCh:
		return nil, fmt.Errorf("failed to serve metrics on %s: %w", addr, err)
	case <-time.After(50 * time.Millisecond):
	}
	slog.Info("serving metrics", "addr", addr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

func writeMissingReportFile(path string, missing []types.Councillor) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := writeMissingReport(f, missing); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// writeMissingReport writes id, name, council, ward rows.
func writeMissingReport(w io.Writer, missing []types.Councillor) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "name", "council", "ward"}); err != nil {
		return err
	}
	for _, c := range missing {
		if err := cw.Write([]string{strconv.FormatInt(c.ID, 10), c.Name, c.Council, c.Ward}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
