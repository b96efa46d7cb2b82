// internal/cli/serve.go
package ragbot

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mwiater/ragbot/internal/appconfig"
	"github.com/mwiater/ragbot/internal/gateway"
	"github.com/mwiater/ragbot/internal/logging"
	"github.com/mwiater/ragbot/internal/pipeline"
)

var (
	newPipeline = pipeline.New
	runGateway  = func(ctx context.Context, srv *gateway.Server, addr string) error { return srv.Run(ctx, addr) }
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Index the configured document and serve the HTTP API",
	Long:  `The 'serve' command builds or loads the index for the configured document, then serves GET / and POST /query until interrupted.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()
		applyServeFlags(cmd, &cfg)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServe(ctx, cfg)
	},
}

func init() {
	serveCmd.Flags().String("host", "", "listen host (overrides API_HOST)")
	serveCmd.Flags().Int("port", 0, "listen port (overrides API_PORT)")
	serveCmd.Flags().String("document", "", "document to index (overrides DOCUMENT_PATH)")
	rootCmd.AddCommand(serveCmd)
}

func applyServeFlags(cmd *cobra.Command, cfg *appconfig.Config) {
	if cmd.Flags().Changed("host") {
		cfg.APIHost, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		cfg.APIPort, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("document") {
		cfg.DocumentPath, _ = cmd.Flags().GetString("document")
	}
}

func runServe(ctx context.Context, cfg appconfig.Config) error {
	if _, err := os.Stat(cfg.DocumentPath); err != nil {
		return fmt.Errorf("document %s not found: %w", cfg.DocumentPath, err)
	}

	p, err := newPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	logging.LogEvent("Initializing index for %s", cfg.DocumentPath)
	idx, err := p.OpenDocument(ctx, cfg.DocumentPath)
	if err != nil {
		return fmt.Errorf("initialize index: %w", err)
	}

	srv := gateway.New(gateway.Options{
		Answerer: p.Synthesizer(),
		Index:    idx,
		Document: cfg.DocumentPath,
		Debug:    cfg.Debug,
	})
	return runGateway(ctx, srv, cfg.ListenAddr())
}
