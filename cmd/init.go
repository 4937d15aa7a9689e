package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/docqa/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize docqa configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to configure providers, models and the source folder, and writes a .docqa.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			path = config.DefaultPath
		}
		cfg, err := config.RunWizard(path)
		if err != nil {
			return err
		}
		fmt.Printf("\nNext: put your documents in %s and run `docqa ingest`.\n", cfg.SourceDir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
