package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"tambourine/internal/config"
	"tambourine/internal/observability/logging"
)

var (
	cfg       config.Config
	cfgFile   string
	serverURL string
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "tambourinectl",
	Short: "Headless client for the Tambourine dictation server",
	Long: `tambourinectl drives a dictation session from the terminal: it connects
to the dictation server over WebRTC, records from the microphone and prints the
cleaned text once the server answers.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			path = config.Path()
		}

		loaded, err := config.LoadFrom(path)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if serverURL != "" {
			loaded.Server.URL = strings.TrimRight(strings.TrimSpace(serverURL), "/")
		}
		if verbose {
			loaded.Log.Level = "debug"
		}
		cfg = loaded

		logging.InitWriter(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}, cmd.ErrOrStderr())
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $TAMBOURINE_CONFIG or ~/.config/tambourine/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "dictation server base url (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(dictateCmd)
	rootCmd.AddCommand(sendConfigCmd)
	rootCmd.AddCommand(providersCmd)
	rootCmd.AddCommand(configCmd)
}
