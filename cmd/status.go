package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/HubDub0522/InsiderTape/internal/model"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the per-quarter sync log",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		entries, err := st.ListSync(ctx)
		if err != nil {
			return err
		}

		if len(entries) == 0 {
			zap.L().Info("no quarters synced yet, run 'insidertape sync' to start")
			return nil
		}

		formatSyncEntries(os.Stdout, entries)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// formatSyncEntries writes a tabular representation of sync entries to w.
func formatSyncEntries(out io.Writer, entries []model.SyncEntry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "QUARTER\tSYNCED\tROWS")
	_, _ = fmt.Fprintln(w, "-------\t------\t----")

	for _, e := range entries {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\n",
			e.Quarter,
			e.SyncedAt.Format("2006-01-02 15:04"),
			e.RowCount,
		)
	}
	_ = w.Flush()
}
