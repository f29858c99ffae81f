// Package version implements "ao version", the reduced stand-in for the
// original's licence/about banner (out of scope per spec.md §1's
// Non-goals) -- just enough to keep the CLI surface of spec.md §6
// complete.
package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/boyski/audited-objects/cmd/ao/command"
)

// BuildVersion is overridden at link time via -ldflags; "dev" otherwise.
var BuildVersion = "dev"

// Commands returns the "version" subcommand.
func Commands(params *command.GlobalParams) []*cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the ao build version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "ao version %s\n", BuildVersion)
			return nil
		},
	}
	return []*cobra.Command{cmd}
}
