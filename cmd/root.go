package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/docqa/internal/config"
)

var (
	cfgFile string
	verbose bool

	appCfg     *config.Config
	logCleanup = func() error { return nil }
)

var rootCmd = &cobra.Command{
	Use:   "docqa",
	Short: "Ask questions about your documents with retrieval-augmented chat",
	Long: `docqa answers questions about course documents. It embeds a folder of
PDFs and text files into a local vector store, retrieves the most relevant
documents for every question, and keeps a token-budgeted conversation with
a chat model that offers more detail after each answer.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return logCleanup()
	},
}

func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultPath, "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// setup loads .env, the config file, and the logger before any command.
func setup(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	appCfg = cfg

	level := config.ParseLevel(cfg.Log.Level)
	if verbose {
		level = slog.LevelDebug
	}
	logger, cleanup := config.SetupLogger(cfg.Log.File, level)
	slog.SetDefault(logger)
	logCleanup = cleanup
	return nil
}
