// Package hashobject implements "ao hash-object <path>": computes and
// prints the path's dcode (content-addressed identity hash), the same
// computation the shopping engine performs during comparison.
package hashobject

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/boyski/audited-objects/cmd/ao/command"
	"github.com/boyski/audited-objects/pkg/dcode"
)

// Commands returns the "hash-object" subcommand.
func Commands(params *command.GlobalParams) []*cobra.Command {
	var algoFlag string

	cmd := &cobra.Command{
		Use:   "hash-object <path>",
		Short: "Print a file's dcode (content-addressed identity hash)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if algoFlag == "" {
				algoFlag = params.Config.GetString("Identity.Hash")
			}
			algo, err := dcode.ParseAlgorithm(algoFlag)
			if err != nil {
				return fmt.Errorf("hash-object: %w", err)
			}
			threshold := params.Config.GetInt64("MMap.Larger.Than")
			hash, err := dcode.Compute(args[0], algo, threshold)
			if err != nil {
				return fmt.Errorf("hash-object: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
	cmd.Flags().StringVar(&algoFlag, "algo", "", "hash algorithm (default: Identity.Hash property)")
	return []*cobra.Command{cmd}
}
