// Command ao is the audited build accelerator's CLI: it wires the
// properties loader, the project-base resolver, and the logging setup
// (cmd/ao/command) to each subcommand package, mirroring the teacher's
// cmd/<app>/command + cmd/<app>/subcommands/<name> layout.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/boyski/audited-objects/cmd/ao/command"
	"github.com/boyski/audited-objects/cmd/ao/subcommands/hashobject"
	"github.com/boyski/audited-objects/cmd/ao/subcommands/label"
	"github.com/boyski/audited-objects/cmd/ao/subcommands/namestate"
	"github.com/boyski/audited-objects/cmd/ao/subcommands/property"
	"github.com/boyski/audited-objects/cmd/ao/subcommands/roadmap"
	"github.com/boyski/audited-objects/cmd/ao/subcommands/run"
	"github.com/boyski/audited-objects/cmd/ao/subcommands/shop"
	"github.com/boyski/audited-objects/cmd/ao/subcommands/stat"
	"github.com/boyski/audited-objects/cmd/ao/subcommands/substitute"
	"github.com/boyski/audited-objects/cmd/ao/subcommands/version"
)

func main() {
	root := command.MakeRootCommand(register)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}

func register(root *cobra.Command, params *command.GlobalParams) {
	factories := []func(*command.GlobalParams) []*cobra.Command{
		run.Commands,
		shop.Commands,
		roadmap.Commands,
		stat.Commands,
		hashobject.Commands,
		property.Commands,
		substitute.Commands,
		label.Commands,
		namestate.Commands,
		version.Commands,
	}
	for _, factory := range factories {
		for _, cmd := range factory(params) {
			root.AddCommand(cmd)
		}
	}
}
