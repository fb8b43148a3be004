package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/loghealer/healthmon/internal/api"
	"github.com/loghealer/healthmon/internal/logger"
	"github.com/loghealer/healthmon/internal/monitor"
)

func serveCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler, retention job and ops API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, rt)
		},
	}
}

// serve runs until ctx is cancelled or a component fails.
func serve(ctx context.Context, rt *runtime) error {
	log := rt.log.Module("serve")
	a, err := buildApp(ctx, rt.settings, rt.log)
	if err != nil {
		return err
	}
	defer a.Close()
	a.logEvents()

	retention, err := monitor.NewRetentionSchedule(a.retention, rt.settings.Retention.Schedule,
		rt.settings.Retention.Timeout.Std(), rt.log)
	if err != nil {
		return err
	}
	retention.Start()
	defer retention.Stop()

	g, gctx := errgroup.WithContext(ctx)

	if rt.settings.Monitoring.Enabled {
		scheduler, err := a.newScheduler()
		if err != nil {
			return err
		}
		g.Go(func() error { return scheduler.Run(gctx) })
	} else {
		log.Warn("monitoring disabled, no health checks will be scheduled")
	}

	if rt.settings.API.Enabled {
		hub := api.NewHub(rt.settings.API.AllowedOrigins, rt.log)
		a.bus.Subscribe(hub.Handle)
		server := a.newAPIServer(hub)
		g.Go(func() error { return server.Start(gctx) })
	}

	log.Info("healthmon started",
		logger.String("version", rt.build.Version),
		logger.String("database", rt.settings.Database.Driver))

	if err := g.Wait(); err != nil {
		log.Error("healthmon stopped with error", logger.Error(err))
		return err
	}
	log.Info("healthmon stopped")
	return nil
}
