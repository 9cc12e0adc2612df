package main

import (
	"fmt"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/dshills/puppetext/internal/feature"
	"github.com/dshills/puppetext/internal/settings"
)

func newSettingsCmd(opts *options) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Print the resolved settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := settings.ParseFormat(format)
			if err != nil {
				return err
			}
			store, err := opts.store()
			if err != nil {
				return err
			}
			data, err := settings.Encode(settings.NewResolver(store).Snapshot(), f)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVar(&format, "format", "yaml", "output format: yaml, toml or json")
	return cmd
}

func newFeaturesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "features",
		Short: "List the extension features",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.Header("Feature", "Needs language server")
			for _, c := range feature.Catalog {
				if err := table.Append([]string{c.Name, strconv.FormatBool(c.Backend)}); err != nil {
					return err
				}
			}
			return table.Render()
		},
	}
}

func newVersionCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := opts.extensionVersion()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "puppetext %s (commit %s, built %s)\n", v, commit, date)
			return nil
		},
	}
}
