package app

import (
	"context"
	"marketplace-watcher/scheduler"
	"marketplace-watcher/services"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run scrape cycles on a schedule",
	Long: `Run scrapes every source page, notifies changes, then waits for the
configured interval. By default the process exits after the wait so a
supervisor (pm2, systemd, docker restart policy) starts it fresh; set
scheduler.restart_in_process to keep looping in the same process.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadRuntime()
		if err != nil {
			return err
		}

		cycle, cleanup, err := buildCycle(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer cleanup()

		sched := scheduler.New(cfg.Scheduler, func(ctx context.Context) error {
			report, err := cycle.Run(ctx)
			if err != nil {
				return err
			}
			services.PrintReport(cmd.OutOrStdout(), report)
			return nil
		}, logger).WithDisplay(cmd.OutOrStdout())

		return sched.Run(cmd.Context())
	},
}

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single scrape cycle and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadRuntime()
		if err != nil {
			return err
		}

		cycle, cleanup, err := buildCycle(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer cleanup()

		report, err := cycle.Run(cmd.Context())
		if err != nil {
			return err
		}
		services.PrintReport(cmd.OutOrStdout(), report)
		return nil
	},
}
