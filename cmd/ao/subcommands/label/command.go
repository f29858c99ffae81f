// Package label implements "ao label [value]": round-trips the
// Project.Label property, an opaque tag stored on a build's PTX at
// upload time but never interpreted by the core (SPEC_FULL.md §5.7).
package label

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/boyski/audited-objects/cmd/ao/command"
)

// Commands returns the "label" subcommand.
func Commands(params *command.GlobalParams) []*cobra.Command {
	cmd := &cobra.Command{
		Use:   "label [value]",
		Short: "Get or set the project label tagged onto uploaded builds",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				params.Config.Set("Project.Label", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), params.Config.GetString("Project.Label"))
			return nil
		},
	}
	return []*cobra.Command{cmd}
}
