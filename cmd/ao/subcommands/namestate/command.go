// Package namestate implements "ao namestate <path>": prints the
// canonicalized PathName plus, if the file exists, its current
// PathState in CSV form. Supplements spec.md's CLI surface per
// SPEC_FULL.md §5.7, exercising §4.1's codec directly from the CLI.
package namestate

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/boyski/audited-objects/cmd/ao/command"
	"github.com/boyski/audited-objects/pkg/pathname"
	"github.com/boyski/audited-objects/pkg/pathstate"
)

const fs1 = "\x01"

// Commands returns the "namestate" subcommand.
func Commands(params *command.GlobalParams) []*cobra.Command {
	cmd := &cobra.Command{
		Use:   "namestate <path>",
		Short: "Print a path's canonicalized PathName and, if present, its PathState",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			pn := pathname.NewUnderBase(cwd, params.BaseDir, args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "name: %s\n", pn.String())
			fmt.Fprintf(cmd.OutOrStdout(), "relative: %s\n", pn.Relative())
			fmt.Fprintf(cmd.OutOrStdout(), "member: %v\n", pn.IsMember())

			ps, err := pathstate.FromLstat(pn)
			if errors.Is(err, os.ErrNotExist) {
				fmt.Fprintln(cmd.OutOrStdout(), "state: (does not exist)")
				return nil
			}
			if err != nil {
				return fmt.Errorf("namestate: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "state: %s\n", ps.EncodeCSV(fs1))
			return nil
		},
	}
	return []*cobra.Command{cmd}
}
