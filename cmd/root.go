package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/HubDub0522/InsiderTape/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "insidertape",
	Short: "SEC insider transaction ingestion and query tool",
	Long:  "Ingests SEC quarterly insider-transaction data sets and live Form 4 filings into a queryable local store of normalized insider trades.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
