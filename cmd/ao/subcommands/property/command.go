// Package property implements "ao property [name]", printing either the
// full effective properties table or one named value, per spec.md §6's
// properties table.
package property

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/boyski/audited-objects/cmd/ao/command"
	"github.com/boyski/audited-objects/pkg/config"
)

// Commands returns the "property" subcommand.
func Commands(params *command.GlobalParams) []*cobra.Command {
	cmd := &cobra.Command{
		Use:   "property [name]",
		Short: "Print one property's effective value, or the whole table",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				fmt.Fprintln(cmd.OutOrStdout(), params.Config.GetString(args[0]))
				return nil
			}
			names := append([]string(nil), config.KnownProperties...)
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", name, params.Config.GetString(name))
			}
			unknown := params.Config.Unknown(config.KnownSet())
			sort.Strings(unknown)
			for _, name := range unknown {
				fmt.Fprintf(cmd.ErrOrStderr(), "ao: warning: unknown property %q\n", name)
			}
			return nil
		},
	}
	return []*cobra.Command{cmd}
}
