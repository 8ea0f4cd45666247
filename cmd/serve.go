package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/picscreenr/internal/config"
	"github.com/kozaktomas/picscreenr/internal/database"
	"github.com/kozaktomas/picscreenr/internal/web"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the picscreenr HTTP API.

Endpoints:
  POST /upload_image        multipart "file": store, caption and resolve an image
  GET  /description/{id}    caption and tags of an image
  GET  /identify/{id}       persons linked to an image
  GET  /persons/{id}        a person and the images they appear in
  GET  /uploads/{filename}  a stored image
  GET  /api/v1/health       liveness`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
}

// applyServeFlags lets explicit flags win over the environment.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	if port := mustGetInt(cmd, "port"); port > 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	applyServeFlags(cmd, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := connectDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	pipeline, cleanup, err := buildPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	reader, err := database.GetImageReader(ctx)
	if err != nil {
		return err
	}

	server := web.NewServer(cfg, pipeline, reader)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Serving uploads from %s\n", pipeline.UploadDir())
	fmt.Printf("Starting picscreenr on http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
