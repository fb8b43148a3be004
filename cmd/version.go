package cmd

import (
	"fmt"
	goruntime "runtime"

	"github.com/spf13/cobra"
)

func versionCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipSetup": "true"},
		RunE: func(*cobra.Command, []string) error {
			_, err := fmt.Fprintf(rt.out, "healthmon %s (built %s, %s %s/%s)\n",
				rt.build.Version, rt.build.BuildDate, goruntime.Version(), goruntime.GOOS, goruntime.GOARCH)
			return err
		},
	}
}
