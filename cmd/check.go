package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/loghealer/healthmon/internal/datastore/entities"
)

func checkCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "check <service-id>",
		Short: "Run one health check for a service and evaluate its alert rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid service id %q: %w", args[0], err)
			}

			ctx := cmd.Context()
			a, err := buildApp(ctx, rt.settings, rt.log)
			if err != nil {
				return err
			}
			defer a.Close()

			svc, err := a.services.Get(ctx, uint(id))
			if err != nil {
				return err
			}
			hc, err := a.checker.PerformHealthCheck(ctx, svc)
			if hc != nil {
				printCheck(rt, svc, hc)
			}
			return err
		},
	}
}

func printCheck(rt *runtime, svc *entities.MonitoredService, hc *entities.HealthCheck) {
	code := "-"
	if hc.StatusCode != nil {
		code = strconv.Itoa(*hc.StatusCode)
	}
	ms := 0
	if hc.ResponseTimeMs != nil {
		ms = *hc.ResponseTimeMs
	}
	fmt.Fprintf(rt.out, "%s\t%s\tstatus_code=%s\tresponse_time=%dms", svc.Name, hc.Status, code, ms)
	if hc.ErrorMessage != nil {
		fmt.Fprintf(rt.out, "\terror=%q", *hc.ErrorMessage)
	}
	fmt.Fprintln(rt.out)
}
