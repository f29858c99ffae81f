// Package shop implements "ao shop <roadmap-file> <ca-file>", a debugging
// aid that replays a dumped CmdAction record (the same header+PA CSV
// lines the monitor decodes off the wire) against a roadmap file and
// prints the shopping verdict, without needing a live auditor or server.
package shop

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/boyski/audited-objects/cmd/ao/command"
	"github.com/boyski/audited-objects/pkg/cmdaction"
	"github.com/boyski/audited-objects/pkg/dcode"
	"github.com/boyski/audited-objects/pkg/gitstore"
	"github.com/boyski/audited-objects/pkg/pathname"
	"github.com/boyski/audited-objects/pkg/publish"
	"github.com/boyski/audited-objects/pkg/roadmap"
	"github.com/boyski/audited-objects/pkg/shop"
)

const fs1 = "\x01"

// noServer is a publish.Server stand-in for offline debugging: every
// blob must already be in the local git store, since there's no server
// to fall back to.
type noServer struct{}

func (noServer) Upload(ctx context.Context, ca *cmdaction.CmdAction, blobs map[string][]byte) error {
	return errors.New("shop: no server configured, cannot upload")
}

func (noServer) Fetch(ctx context.Context, dc string) ([]byte, error) {
	return nil, fmt.Errorf("shop: no server configured, blob %s not in local store", dc)
}

// Commands returns the "shop" subcommand.
func Commands(params *command.GlobalParams) []*cobra.Command {
	cmd := &cobra.Command{
		Use:   "shop <roadmap-file> <ca-file>",
		Short: "Shop a dumped CmdAction record against a roadmap file",
		Args:  cobra.ExactArgs(2),
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
				return fmt.Errorf("shop: %w", err)
			}

			raw, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("shop: %w", err)
			}
			lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
			ca, err := cmdaction.DecodeCSV(lines, fs1, resolve)
			if err != nil {
				return fmt.Errorf("shop: %w", err)
			}

			algo, err := dcode.ParseAlgorithm(params.Config.GetString("Identity.Hash"))
			if err != nil {
				return fmt.Errorf("shop: %w", err)
			}
			var ignoreRE *regexp.Regexp
			if pat := params.Config.GetString("Shop.Ignore.Path.RE"); pat != "" {
				ignoreRE, err = regexp.Compile(pat)
				if err != nil {
					return fmt.Errorf("shop: %w", err)
				}
			}

			store := gitstore.Open(filepath.Join(params.BaseDir, ".ao", "objects"))
			fetcher := publish.NewFetcher(store, noServer{})

			engine := shop.NewEngine(
				rm,
				ignoreRE,
				fetcher,
				afero.NewOsFs(),
				algo,
				params.Config.GetInt64("MMap.Larger.Than"),
				params.Config.GetInt("Shop.Time.Precision"),
				params.Config.GetBool("Original.Datestamp"),
			)

			result, err := engine.Shop(cmd.Context(), ca, true)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "shop: verdict %s, error: %v\n", result, err)
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result)
			return nil
		},
	}
	return []*cobra.Command{cmd}
}
