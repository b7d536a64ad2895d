package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"ecoads/internal/core"
	"ecoads/internal/services"
	"ecoads/internal/session"
	"ecoads/internal/sheets"
	"ecoads/internal/sheets/excel"
	"ecoads/internal/sheets/memory"
)

// addWorkbookFlags registers the flags that pick a workbook and a sheet.
func addWorkbookFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("file", "f", "", "workbook (.xlsx or .xls); the synthetic sample when empty")
	cmd.Flags().StringP("sheet", "s", "", "sheet name (default first sheet)")
}

// addAnalysisFlags registers the flags mirroring the web UI controls.
func addAnalysisFlags(cmd *cobra.Command) {
	addWorkbookFlags(cmd)
	cmd.Flags().Float64P("rate", "r", session.DefaultRate, "annual discount rate in percent")
	cmd.Flags().Bool("hide-zeros", false, "hide categories whose NPV rounds to zero")
	cmd.Flags().Bool("keep-exact-zeros", false, "keep categories whose NPV is exactly zero")
	cmd.Flags().String("policy", core.PolicyGap, "final bar policy (gap, implied)")
	cmd.Flags().String("palette", core.BenefitGreen.Name, "colour palette (benefit-green, cost-green)")
	cmd.Flags().StringArray("rename", nil, "display label as CATEGORY=LABEL (repeatable)")
}

func (a *app) loader() (*excel.Loader, error) {
	layout, err := sheets.LoadLayout(a.v.GetString("layout"))
	if err != nil {
		return nil, err
	}
	return excel.New(layout)
}

func (a *app) source() (sheets.Source, error) {
	path := a.v.GetString("file")
	content, err := os.ReadFile(path)
	if err != nil {
		return sheets.Source{}, err
	}
	return sheets.Source{Name: filepath.Base(path), Content: content}, nil
}

// dataset loads the selected sheet. Without --file it returns the
// synthetic sample; an empty sheet is reported and analysed as is.
func (a *app) dataset(ctx context.Context) (core.Dataset, error) {
	if a.v.GetString("file") == "" {
		a.logger.Warn("No workbook given, using the synthetic sample")
		return memory.Sample(), nil
	}

	loader, err := a.loader()
	if err != nil {
		return core.Dataset{}, err
	}
	src, err := a.source()
	if err != nil {
		return core.Dataset{}, err
	}

	ds, err := loader.Load(ctx, src, a.v.GetString("sheet"))
	switch {
	case errors.Is(err, core.ErrEmptyDataset):
		a.logger.Warn("Sheet has no categories or periods", "source", ds.Source, "sheet", ds.Sheet)
	case err != nil:
		return core.Dataset{}, err
	}
	return ds, nil
}

// settings builds analysis settings from flags, config and environment.
// Renames come from --rename and from the "renames" list in the config file.
func (a *app) settings(cmd *cobra.Command) (session.Settings, error) {
	st := session.Defaults()
	st.RatePercent = a.v.GetFloat64("rate")
	st.HideZeros = a.v.GetBool("hide-zeros")
	st.DropExactZeros = !a.v.GetBool("keep-exact-zeros")

	policy, err := core.ParseFinalPolicy(a.v.GetString("policy"))
	if err != nil {
		return st, err
	}
	st.Policy = policy.Name()

	palette, err := core.ParsePalette(a.v.GetString("palette"))
	if err != nil {
		return st, err
	}
	st.Palette = palette.Name

	flagRenames, err := cmd.Flags().GetStringArray("rename")
	if err != nil {
		return st, err
	}
	for _, r := range append(a.v.GetStringSlice("renames"), flagRenames...) {
		key, label, err := parseRename(r)
		if err != nil {
			return st, err
		}
		st.Rename(key, label)
	}
	return st, nil
}

// parseRename splits "CATEGORY=LABEL". An empty label restores the key.
func parseRename(s string) (key, label string, err error) {
	key, label, ok := strings.Cut(s, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", "", fmt.Errorf("invalid rename %q, want CATEGORY=LABEL", s)
	}
	return key, strings.TrimSpace(label), nil
}

// analyze loads the dataset and runs the pipeline; a computation error such
// as an invalid rate becomes the command's error.
func (a *app) analyze(cmd *cobra.Command) (services.Analysis, error) {
	st, err := a.settings(cmd)
	if err != nil {
		return services.Analysis{}, err
	}
	ds, err := a.dataset(cmd.Context())
	if err != nil {
		return services.Analysis{}, err
	}

	an := services.NewAnalysisService(a.logger.Logger).Analyze(ds, st)
	if an.Err != nil {
		return an, errors.New(an.Message())
	}
	return an, nil
}
