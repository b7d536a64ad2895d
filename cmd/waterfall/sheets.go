package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"ecoads/assets"
)

func (a *app) sheetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sheets",
		Short: "List the sheets of a workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.v.GetString("file") == "" {
				return errors.New("--file is required")
			}
			loader, err := a.loader()
			if err != nil {
				return err
			}
			src, err := a.source()
			if err != nil {
				return err
			}
			names, err := loader.Sheets(cmd.Context(), src)
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
	cmd.Flags().StringP("file", "f", "", "workbook (.xlsx or .xls)")
	return cmd
}

func (a *app) layoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "layout",
		Short: "Print the effective workbook layout as YAML",
		Long: `Print the cell ranges the loader reads. Pass --layout to see how a
layout file merges over the defaults.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loader, err := a.loader()
			if err != nil {
				return err
			}
			out, err := loader.Layout().Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

func (a *app) guideCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "guide",
		Short: "Print the user guide (markdown)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := cmd.OutOrStdout().Write(assets.HelpMarkdown)
			return err
		},
	}
}
