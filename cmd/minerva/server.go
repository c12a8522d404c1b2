package minerva

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/soundprediction/minerva/pkg/alert"
	"github.com/soundprediction/minerva/pkg/config"
	"github.com/soundprediction/minerva/pkg/server"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the Minerva HTTP server",
	Long: `Start the HTTP server behind the visualization front-end.

The server provides endpoints for:
- Building opinion graphs from an uploaded corpus archive (POST /process_zip)
- Building co-occurrence graphs from an uploaded corpus archive (POST /process_zip_cooc)
- Exporting graph links as TSV (POST /data_to_csv)
- Health checks

The knowledge base and claims tables are loaded once at startup.`,
	RunE: runServer,
}

var (
	serverHost string
	serverPort int
	serverMode string
)

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().StringVar(&serverHost, "host", "localhost", "Server host")
	serverCmd.Flags().IntVar(&serverPort, "port", 5000, "Server port")
	serverCmd.Flags().StringVar(&serverMode, "mode", "release", "Server mode (debug, release, test)")
	serverCmd.Flags().String("kb", "", "knowledge base file (default from server.knowledge_base)")
	serverCmd.Flags().String("claims", "", "claims file (default from server.claims)")
	serverCmd.Flags().Bool("images", true, "resolve entity images through the knowledge service")
	serverCmd.Flags().Bool("neo4j", false, "check the configured Neo4j sink in readiness probes")
}

func runServer(cmd *cobra.Command, args []string) error {
	overrideConfigWithFlags(cmd, cfg)
	if err := validateServerConfig(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	base, err := loadBase(cfg.Server.KnowledgeBase, cfg.Server.Claims)
	if err != nil {
		return err
	}
	log.Info("loaded knowledge base", "annotations", len(base.QIDs), "claims", len(base.Claims))

	alerter := alert.New(cfg.Alert, log)
	svc := &services{base: base}
	if err := svc.taggerService(cfg, alerter); err != nil {
		return err
	}
	images, _ := cmd.Flags().GetBool("images")
	if images {
		if err := svc.knowledgeService(cfg, alerter); err != nil {
			return err
		}
	}
	if withSink, _ := cmd.Flags().GetBool("neo4j"); withSink {
		if err := svc.sinkService(cmd.Context(), cfg); err != nil {
			return err
		}
	}
	client := svc.client(cfg, nil, images)
	defer client.Close(context.Background())

	srv := server.New(cfg, client, log)
	srv.Setup()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- err
		}
	}()

	select {
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		log.Info("received signal", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		log.Info("server stopped gracefully")
		return nil
	}
}

func overrideConfigWithFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = serverHost
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = serverPort
	}
	if cmd.Flags().Changed("mode") {
		cfg.Server.Mode = serverMode
	}
	if cmd.Flags().Changed("kb") {
		cfg.Server.KnowledgeBase, _ = cmd.Flags().GetString("kb")
	}
	if cmd.Flags().Changed("claims") {
		cfg.Server.Claims, _ = cmd.Flags().GetString("claims")
	}
}

func validateServerConfig(cfg *config.Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", cfg.Server.Port)
	}
	if cfg.Server.KnowledgeBase == "" {
		return fmt.Errorf("knowledge base file is required")
	}
	return nil
}
