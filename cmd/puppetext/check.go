package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/dshills/puppetext/internal/settings"
	"github.com/dshills/puppetext/internal/toolchain"
)

func newCheckCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Show where the Puppet installation is expected and whether it exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := opts.store()
			if err != nil {
				return err
			}
			snap, legacy := settings.NewResolver(store).Resolve()
			locator := opts.locator()
			paths := locator.Locate(snap)
			found, err := locator.Exists(cmd.Context(), paths)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if err := renderPaths(out, paths, found); err != nil {
				return err
			}
			if len(legacy) > 0 {
				fmt.Fprintln(out)
				if err := renderLegacy(out, legacy); err != nil {
					return err
				}
			}
			if !found {
				return fmt.Errorf("%w at %s", toolchain.ErrNotFound, paths.BaseDir)
			}
			return nil
		},
	}
}

func renderPaths(w io.Writer, p toolchain.Paths, found bool) error {
	table := tablewriter.NewWriter(w)
	table.Header("Property", "Value")
	rows := [][]string{
		{"Layout", string(p.Layout)},
		{"Base directory", p.BaseDir},
		{"Puppet directory", p.PuppetDir},
		{"Ruby directory", p.RubyDir},
		{"Ruby executable", p.RubyExecutable},
		{"Language server", p.LanguageServerScript},
		{"Installed", strconv.FormatBool(found)},
	}
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}

func renderLegacy(w io.Writer, legacy []settings.LegacySetting) error {
	table := tablewriter.NewWriter(w)
	table.Header("Deprecated setting", "Value")
	for _, l := range legacy {
		if err := table.Append([]string{l.Name, fmt.Sprint(l.Value)}); err != nil {
			return err
		}
	}
	return table.Render()
}
