// Package roadmap implements "ao roadmap <file> [cmdline]", a debugging
// aid that opens a server-shipped CDB roadmap and lists its PTX table, or
// (given a recorded command line) the cmdindexes and prerequisite/target
// bundles that line maps to.
package roadmap

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/boyski/audited-objects/cmd/ao/command"
	"github.com/boyski/audited-objects/pkg/pathname"
	"github.com/boyski/audited-objects/pkg/roadmap"
)

// Commands returns the "roadmap" subcommand.
func Commands(params *command.GlobalParams) []*cobra.Command {
	cmd := &cobra.Command{
		Use:   "roadmap <file> [cmdline]",
		Short: "Inspect a CDB-format roadmap file",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			resolve := func(relative string) pathname.Name {
				return pathname.NewUnderBase(cwd, params.BaseDir, relative)
			}
			rm, err := roadmap.Open(args[0], resolve)
			if err != nil {
				return fmt.Errorf("roadmap: %w", err)
			}

			if len(args) == 1 {
				ptxs, err := rm.PTXs()
				if err != nil {
					return fmt.Errorf("roadmap: %w", err)
				}
				for _, p := range ptxs {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", p.ID, p.Name)
				}
				return nil
			}

			indexes, err := rm.CmdIndexes(args[1])
			if err != nil {
				return fmt.Errorf("roadmap: %w", err)
			}
			for _, idx := range indexes {
				rec, err := rm.CmdRecord(idx)
				if err != nil {
					return fmt.Errorf("roadmap: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "cmdindex %s: %+v\n", idx, rec)

				prereqs, err := rm.Prerequisites(idx)
				if err != nil {
					return fmt.Errorf("roadmap: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "  prerequisites: %d bundle(s)\n", len(prereqs))

				targets, err := rm.Targets(idx)
				if err != nil {
					return fmt.Errorf("roadmap: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "  targets: %d bundle(s)\n", len(targets))
			}
			return nil
		},
	}
	return []*cobra.Command{cmd}
}
