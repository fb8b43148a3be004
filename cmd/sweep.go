package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loghealer/healthmon/internal/monitor"
)

func sweepCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run the retention sweep once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(cmd.Context(), rt.settings, rt.log)
			if err != nil {
				return err
			}
			defer a.Close()

			timeout := rt.settings.Retention.Timeout.Std()
			if timeout <= 0 {
				timeout = monitor.DefaultRetentionTimeout
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			report, err := a.retention.Run(ctx)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(rt.out, "deleted %d health checks and %d resolved alerts\n",
				report.HealthChecks, report.Alerts)
			return err
		},
	}
}
