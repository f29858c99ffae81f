// Package run implements "ao run"/"ao make", the CLI entry points spec.md
// enumerates but whose actual work -- spawning the target command under
// the syscall interposition layer -- is explicitly out of scope ("the
// syscall interposition layer (LD_PRELOAD / DLL injection / ExitProcess
// hooks)", spec.md's scope boundary). This stub exists so the CLI surface
// spec.md §6 lists is complete and honestly reports what it can't do,
// rather than faking an execution path the core never owned.
package run

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/boyski/audited-objects/cmd/ao/command"
)

// Commands returns the "run" subcommand and its "make" alias.
func Commands(params *command.GlobalParams) []*cobra.Command {
	run := func(use, short string) *cobra.Command {
		return &cobra.Command{
			Use:                use,
			Short:              short,
			DisableFlagParsing: true,
			RunE: func(cmd *cobra.Command, args []string) error {
				return fmt.Errorf(
					"ao %s: command interposition is not implemented by this core "+
						"(contracted to an external auditor that talks SOA/EOA to "+
						"the monitor; see pkg/monitor)",
					cmd.Name(),
				)
			},
		}
	}
	return []*cobra.Command{
		run("run -- <command> [args...]", "Run a command under audit (requires an external auditor)"),
		run("make -- <command> [args...]", "Alias for \"run\""),
	}
}
