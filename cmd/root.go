package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kozaktomas/picscreenr/internal/config"
	"github.com/kozaktomas/picscreenr/internal/logging"
	"github.com/spf13/cobra"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "picscreenr",
	Short: "Caption images and recognise the people in them",
	Long: `picscreenr ingests images, captions them, and links every person it sees
to a long-lived identity, by face when one is visible and by clothing
appearance otherwise.

Run "picscreenr serve" for the HTTP API or use the commands below directly.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error (overrides LOG_LEVEL)")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()

	cfg := config.Load()
	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	if err := logging.Init(level, cfg.Log.File, cfg.Log.Format); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
}
