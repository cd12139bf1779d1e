package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/HubDub0522/InsiderTape/internal/formsync"
)

var scheduleCron string

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the recurring re-sync scheduler",
	Long:  "Runs sync on a cron cadence, invalidating only the most recently completed quarter before each run so late-filed and amended filings are picked up.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		spec := scheduleCron
		if spec == "" {
			spec = cfg.Schedule.Cron
		}

		// Each run targets only the active window; the scheduler already
		// invalidates the newest done quarter before running.
		sched := formsync.NewScheduler(newEngine(st), formsync.RunOpts{
			QuartersBack: 1,
			Live:         true,
		})
		if err := sched.Start(ctx, spec); err != nil {
			return err
		}

		<-ctx.Done()
		zap.L().Info("stopping scheduler")
		sched.Stop()
		return nil
	},
}

func init() {
	scheduleCmd.Flags().StringVar(&scheduleCron, "cron", "", "cron spec (default from config)")
	rootCmd.AddCommand(scheduleCmd)
}
