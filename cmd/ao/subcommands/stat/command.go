// Package stat implements "ao stat <path>", a humanized status line for a
// single path: size, mtime, and mode, using the same go-humanize
// formatting the aggregator uses in verbose/status logging.
package stat

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/boyski/audited-objects/cmd/ao/command"
	"github.com/boyski/audited-objects/pkg/aolog"
)

// Commands returns the "stat" subcommand.
func Commands(params *command.GlobalParams) []*cobra.Command {
	cmd := &cobra.Command{
		Use:   "stat <path>",
		Short: "Print a humanized size/mtime/mode summary of a path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fi, err := os.Lstat(args[0])
			if err != nil {
				return fmt.Errorf("stat: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %8s  %s  %s\n",
				fi.Mode(), aolog.Bytes(uint64(fi.Size())), fi.ModTime().Format(time.RFC3339), args[0])
			return nil
		},
	}
	return []*cobra.Command{cmd}
}
