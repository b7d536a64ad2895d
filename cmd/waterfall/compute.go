package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"ecoads/internal/core"
	"ecoads/internal/report"
	"ecoads/internal/services"
)

func (a *app) computeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compute",
		Short: "Print the per-category present values and the waterfall bars",
		Example: `  waterfall compute --file "Ev. Eco ADS.xlsx" --rate 10
  waterfall compute -f book.xlsx -s "Caso B" --policy implied --rename "Otros=Varios"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			an, err := a.analyze(cmd)
			if err != nil {
				return err
			}
			return printAnalysis(cmd.OutOrStdout(), an)
		},
	}
	addAnalysisFlags(cmd)
	return cmd
}

func printAnalysis(out io.Writer, an services.Analysis) error {
	fmt.Fprintln(out, report.Title(an.RatePercent))
	src := fmt.Sprintf("Fuente: %s, hoja %s", an.Source, an.Sheet)
	if an.Synthetic {
		src += " (datos sintéticos)"
	}
	if n := len(an.Periods); n > 0 {
		src += fmt.Sprintf(", %d periodos (%s a %s)", n, an.Periods[0], an.Periods[n-1])
	}
	fmt.Fprintln(out, src)
	fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, "CATEGORÍA\tVPN (USD)\tVPN (M USD)\tIMPACTO (%)\t")
	for _, row := range an.Details {
		label := row.Label
		if row.Hidden {
			label += " (oculta)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n",
			label,
			core.FormatUSD(row.NPV),
			core.FormatMillionsPrecise(row.NPV),
			core.FormatPercent(row.ImpactPct, 2))
	}
	fmt.Fprintln(w, "\t\t\t\t")

	fmt.Fprintln(w, "BARRA\tTIPO\tVALOR\tCOLOR\t")
	for _, bar := range an.Bars {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n",
			bar.Label, bar.Kind, core.FormatMillions(bar.Float()), bar.Color)
	}
	fmt.Fprintln(w, "\t\t\t\t")

	s := an.Summary
	fmt.Fprintf(w, "Total %s\t%s\t\t\t\n", s.BaselineName, core.FormatUSD(s.Baseline))
	fmt.Fprintf(w, "Total %s\t%s\t\t\t\n", s.TargetName, core.FormatUSD(s.Target))
	fmt.Fprintf(w, "Diferencia\t%s\t%s\t\t\n", core.FormatUSD(s.Difference), core.FormatPercent(s.DifferencePct, 1))
	fmt.Fprintf(w, "Total implícito\t%s\t\t\t\n", core.FormatUSD(s.Implied))
	fmt.Fprintf(w, "Divergencia\t%s\t\t\t\n", core.FormatUSD(s.Divergence))
	if err := w.Flush(); err != nil {
		return err
	}

	if an.Empty {
		fmt.Fprintln(out, "\nNo hay categorías visibles con los filtros actuales.")
	}
	return nil
}
