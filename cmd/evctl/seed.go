package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/deliverypulse/eventstream/internal/seeder"
	"github.com/deliverypulse/eventstream/internal/sources"
)

var (
	seedGatewayURL string
	seedSource     string
	seedCount      int
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Send signed mock webhooks to a running gateway",
	Long: `Generate mock webhook payloads, sign them with the secrets from the
environment and post them to the gateway. Seeded events carry the Mock
marker, so they persist under a "mock"-suffixed source.

Examples:
  # 50 mock GitHub pushes against a local gateway
  evctl seed --source github --count 50

  # Seed a remote gateway
  evctl seed --gateway-url https://hooks.example.com --source pagerduty`,
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := seeder.Run(cmd.Context(), seeder.Config{
			GatewayURL: seedGatewayURL,
			Source:     seedSource,
			Count:      seedCount,
			Resolver:   sources.EnvResolver,
		})
		if err != nil {
			return fmt.Errorf("seed %s: %w (seedable sources: %s)",
				seedSource, err, strings.Join(seeder.Sources(), ", "))
		}

		fmt.Printf("Sent: %d\n", res.Sent)
		if res.Failed > 0 {
			fmt.Printf("Failed: %d\n", res.Failed)
		}
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedGatewayURL, "gateway-url", "http://localhost:8080", "gateway endpoint")
	seedCmd.Flags().StringVar(&seedSource, "source", "github", "source to mimic: github, gitlab, pagerduty")
	seedCmd.Flags().IntVar(&seedCount, "count", 10, "number of webhooks to send")

	rootCmd.AddCommand(seedCmd)
}
