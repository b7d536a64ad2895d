package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"ecoads/internal/report"
)

func (a *app) exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the PDF report for a workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			an, err := a.analyze(cmd)
			if err != nil {
				return err
			}

			out := a.v.GetString("out")
			if out == "" {
				out = report.FileName(an)
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := report.WritePDF(f, an); err != nil {
				f.Close()
				return fmt.Errorf("writing %s: %w", out, err)
			}
			if err := f.Close(); err != nil {
				return err
			}

			info, err := os.Stat(out)
			if err != nil {
				return err
			}
			a.logger.Info("Report written", "path", out, "bytes", info.Size())
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", out, humanize.Bytes(uint64(info.Size())))
			return nil
		},
	}
	addAnalysisFlags(cmd)
	cmd.Flags().StringP("out", "o", "", "output file (default derived from the source and rate)")
	return cmd
}
