package main

import (
	"github.com/spf13/cobra"

	"github.com/HubDub0522/InsiderTape/internal/formsync"
)

var (
	syncQuarters int
	syncForce    bool
	syncLive     bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Ingest quarterly insider-transaction archives",
	Long:  "Downloads and ingests the targeted quarters' data sets, skipping quarters already marked done unless --force is given. --live additionally scans recent Form 4 filings via full-text search.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		return newEngine(st).Run(ctx, formsync.RunOpts{
			QuartersBack: syncQuarters,
			Force:        syncForce,
			Live:         syncLive,
		})
	},
}

func init() {
	syncCmd.Flags().IntVar(&syncQuarters, "quarters", 0, "quarters back from now to ingest (default from config)")
	syncCmd.Flags().BoolVar(&syncForce, "force", false, "re-ingest quarters already marked done")
	syncCmd.Flags().BoolVar(&syncLive, "live", false, "also scan recent filings via full-text search")
	rootCmd.AddCommand(syncCmd)
}
