// Package substitute implements "ao substitute <string>": expands
// PROP-style "${Name}" references against the loaded properties, per
// SPEC_FULL.md §5.7.
package substitute

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/boyski/audited-objects/cmd/ao/command"
)

// Commands returns the "substitute" subcommand.
func Commands(params *command.GlobalParams) []*cobra.Command {
	cmd := &cobra.Command{
		Use:   "substitute <string>",
		Short: `Expand "${Property.Name}" references in a string`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), params.Config.Substitute(args[0]))
			return nil
		},
	}
	return []*cobra.Command{cmd}
}
