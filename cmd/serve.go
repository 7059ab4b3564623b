package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ca-srg/treesearch/internal/api"
	"github.com/ca-srg/treesearch/internal/observability"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP search API",
	Long: `
The serve command starts an HTTP server with the following endpoints:
- POST /results          one page of a resumable search
- POST /treebank_counts  match counts per component
- GET  /tree             the full tree of a sentence
- GET  /healthz          liveness probe

The server keeps no search state: every response carries the cursor the
client sends back to get the next page.

Example:
  treesearch serve                    # Start with defaults (localhost:8090)
  treesearch serve --port 9000        # Use custom port
`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind (default: API_HOST)")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to bind (default: API_PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal", zap.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()

	svc, err := newServices(ctx, logger)
	if err != nil {
		return err
	}

	shutdown, err := observability.Init(ctx, svc.cfg, logger)
	if err != nil {
		logger.Warn("failed to initialize observability", zap.Error(err))
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Warn("failed to shut down observability", zap.Error(err))
		}
	}()

	store, err := svc.openSearchLog()
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()

		reg, err := store.RegisterOTelMetrics(logger)
		if err != nil {
			logger.Warn("failed to register search log metrics", zap.Error(err))
		} else {
			defer func() { _ = reg.Unregister() }()
		}
	}

	serverConfig := api.ServerConfigFromConfig(svc.cfg)
	if serveHost != "" {
		serverConfig.Host = serveHost
	}
	if servePort != 0 {
		serverConfig.Port = servePort
	}

	server, err := api.NewServer(serverConfig, api.Dependencies{
		Catalog:  svc.topology,
		Searcher: svc.executor,
		Counter:  svc.counter,
		Trees:    svc.trees,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create API server: %w", err)
	}

	return server.Run(ctx)
}
