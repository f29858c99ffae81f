// Package command builds the root cobra.Command for the ao CLI and the
// shared GlobalParams every subcommand needs: the loaded Config, the
// resolved project base directory, and the verbosity bits parsed out of
// properties. This mirrors the teacher's cmd/<app>/command + subcommands
// layout (e.g. cmd/agentless-scanner/command, cmd/agentless-scanner/subcommands).
package command

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/boyski/audited-objects/pkg/aolog"
	"github.com/boyski/audited-objects/pkg/config"
	"github.com/boyski/audited-objects/pkg/project"
)

// GlobalParams holds the flags every subcommand can read, plus the
// config/base-dir state resolved once by PersistentPreRunE.
type GlobalParams struct {
	BaseDirFlag  string
	BaseGlob     string
	PropertyOpts []string // repeated "-p Name=Value"
	Verbosity    string

	Config  *config.Config
	BaseDir string
}

// MakeRootCommand builds the "ao" root command with global flags and
// registers the subcommand tree. register is called once, while the tree
// is built, with the GlobalParams pointer that PersistentPreRunE fills in
// before any subcommand runs; taking it as a callback avoids any import
// cycle between this package and the subcommand packages (they import this
// package for GlobalParams; this package never imports them back).
func MakeRootCommand(register func(*cobra.Command, *GlobalParams)) *cobra.Command {
	params := &GlobalParams{}

	root := &cobra.Command{
		Use:           "ao",
		Short:         "Audited build accelerator: observe, upload, and shop build commands",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return resolveGlobals(params)
		},
	}

	root.PersistentFlags().StringVar(&params.BaseDirFlag, "base-dir", "", "project base directory (default: nearest ancestor with a .ao dir)")
	root.PersistentFlags().StringVar(&params.BaseGlob, "base-glob", "", "glob pattern an alternate project-base marker must match")
	root.PersistentFlags().StringArrayVarP(&params.PropertyOpts, "property", "p", nil, "override a property, Name=Value (repeatable)")
	root.PersistentFlags().StringVarP(&params.Verbosity, "verbosity", "v", "", "comma-separated verbosity bits (STD,SHOP,WHY,AG,PA,EXEC,HTTP,MAP)")

	register(root, params)
	return root
}

func resolveGlobals(params *GlobalParams) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("ao: %w", err)
	}
	base, err := project.FindBase(cwd, params.BaseGlob)
	if err != nil {
		base = cwd // fall back to CWD rather than refuse to run entirely
	}
	params.BaseDir = base
	if params.BaseDirFlag != "" {
		params.BaseDir = params.BaseDirFlag
	}

	cfg, err := config.Load(config.WithProjectDir(params.BaseDir))
	if err != nil {
		return fmt.Errorf("ao: loading properties: %w", err)
	}
	for _, kv := range params.PropertyOpts {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("ao: malformed -p flag %q, want Name=Value", kv)
		}
		cfg.Set(name, value)
	}
	params.Config = cfg

	verbosity := params.Verbosity
	if verbosity == "" {
		verbosity = cfg.GetString("Verbosity")
	}
	bits, unknown := aolog.ParseVerbosity(verbosity)
	if err := aolog.SetupLogger(bits, false); err != nil {
		return fmt.Errorf("ao: setting up logger: %w", err)
	}
	for _, name := range unknown {
		aolog.Warnf("ao: unknown verbosity bit %q", name)
	}
	return nil
}
