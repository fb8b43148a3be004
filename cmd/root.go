// Package cmd implements the healthmon command line.
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/loghealer/healthmon/internal/conf"
	"github.com/loghealer/healthmon/internal/logger"
	"github.com/loghealer/healthmon/internal/telemetry"
)

// BuildInfo identifies the running binary.
type BuildInfo struct {
	Version   string
	BuildDate string
}

// runtime carries what PersistentPreRunE prepared for the subcommands.
type runtime struct {
	configPath string
	logLevel   string
	build      BuildInfo
	settings   *conf.Settings
	log        logger.Logger
	out        io.Writer
}

// Execute runs the root command.
func Execute(version, buildDate string) error {
	root := RootCommand(BuildInfo{Version: version, BuildDate: buildDate})
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

// RootCommand builds the command tree.
func RootCommand(build BuildInfo) *cobra.Command {
	rt := &runtime{build: build}

	root := &cobra.Command{
		Use:   "healthmon",
		Short: "Service health monitoring and alerting engine",
		Long: `healthmon probes registered services on a schedule, stores every result,
evaluates alert rules against the history and notifies on trigger and recovery.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			rt.out = cmd.OutOrStdout()
			if cmd.Annotations["skipSetup"] == "true" {
				return nil
			}
			return rt.setup(cmd.ErrOrStderr())
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			telemetry.Flush()
		},
	}

	root.PersistentFlags().StringVarP(&rt.configPath, "config", "c", os.Getenv("HEALTHMON_CONFIG"), "path to the YAML config file")
	root.PersistentFlags().StringVar(&rt.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")

	root.AddCommand(
		serveCommand(rt),
		checkCommand(rt),
		sweepCommand(rt),
		versionCommand(rt),
	)
	return root
}

func (rt *runtime) setup(logOut io.Writer) error {
	settings, err := conf.Load(rt.configPath)
	if err != nil {
		return err
	}
	if rt.logLevel != "" {
		settings.Log.Level = rt.logLevel
	}
	rt.settings = settings
	rt.log = logger.NewSlogLogger(logOut, logger.LogLevel(settings.Log.Level), &logger.Options{
		JSON: settings.Log.Format == "json",
	})

	if err := telemetry.InitSentry(settings.Sentry, rt.build.Version); err != nil {
		// Monitoring still works without error reporting.
		rt.log.Warn("sentry disabled", logger.Error(err))
	}
	return nil
}
