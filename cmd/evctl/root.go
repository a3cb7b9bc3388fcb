package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/deliverypulse/eventstream/internal/config"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "evctl",
	Short: "Event stream operations CLI",
	Long: `evctl is the operations companion for the webhook event stream.

Apply database migrations, seed mock webhook traffic against a running
gateway, and inspect the pipeline from your terminal.`,
	Version: "0.1.0",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
}

func initConfig() {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not load config: %v\n", err)
		cfg = &config.Config{}
	}
}
