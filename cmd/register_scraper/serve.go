package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonathan/council-registers/internal/server"
	"github.com/jonathan/council-registers/internal/server/ratelimit"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the register search API and page",
	Long:  `Start an HTTP server exposing /registers, /audit, /runs and a search page at /.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "Interface to listen on")
	serveCmd.Flags().IntVar(&servePort, "port", server.DefaultPort, "Port to listen on")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	srv := server.New(store, server.Config{
		Host:      serveHost,
		Port:      servePort,
		RateLimit: ratelimit.LoadConfig(),
	})
	return srv.Start(ctx)
}
