package services

import (
	"errors"
	"fmt"
	"log/slog"

	"ecoads/internal/core"
	"ecoads/internal/session"
)

// Analysis is one full recompute: everything the chart, the table and the
// headline metrics need.
type Analysis struct {
	Source      string
	Sheet       string
	Synthetic   bool
	Periods     []string
	RatePercent float64
	Policy      string
	Palette     core.Palette

	Reconciliation core.Reconciliation
	Bars           []core.Bar
	Details        []core.DetailRow
	Summary        core.Summary
	Axis           core.Axis

	// Empty means there is nothing to chart after load and filtering.
	Empty bool
	// Err is a computation error for this pass, such as core.ErrInvalidRate.
	Err error
}

// AnalysisService runs the core pipeline for a dataset and a session's settings.
type AnalysisService struct {
	logger *slog.Logger
}

func NewAnalysisService(logger *slog.Logger) *AnalysisService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalysisService{logger: logger.With("component", "analysis")}
}

// Analyze never fails: computation errors are reported in Analysis.Err with
// the anchors still filled in, so the UI can show them next to the message.
func (s *AnalysisService) Analyze(ds core.Dataset, st session.Settings) Analysis {
	baselineName, targetName := ds.Names()
	a := Analysis{
		Source:      ds.Source,
		Sheet:       ds.Sheet,
		Synthetic:   ds.Synthetic,
		Periods:     ds.Periods,
		RatePercent: st.RatePercent,
		Axis:        st.Axis(),
		Reconciliation: core.Reconciliation{
			Baseline:     ds.Baseline,
			ImpliedTotal: ds.Baseline,
		},
	}
	a.Summary = core.Summarize(baselineName, targetName, ds.Baseline, ds.Target, a.Reconciliation)

	policy, err := core.ParseFinalPolicy(st.Policy)
	if err != nil {
		policy = core.GapReconciliation{}
		s.logger.Warn("Unknown policy, using gap reconciliation", "policy", st.Policy)
	}
	a.Policy = policy.Name()

	palette, err := core.ParsePalette(st.Palette)
	if err != nil {
		palette = core.BenefitGreen
	}
	a.Palette = palette

	var categories []core.Category
	if len(ds.Periods) > 0 {
		categories = core.ApplyLabels(ds.Categories, st.Renames)
	}

	rec, err := core.Reconcile(categories, ds.Baseline, st.ReconcileOptions())
	if err != nil {
		a.Err = err
		a.Empty = true
		s.logger.Debug("Reconcile failed", "rate_percent", st.RatePercent, "error", err)
		return a
	}
	a.Reconciliation = rec
	a.Summary = core.Summarize(baselineName, targetName, ds.Baseline, ds.Target, rec)
	a.Details = core.DetailRows(rec)
	a.Bars = core.Assemble(core.AssembleInput{
		BaselineName: baselineName,
		TargetName:   targetName,
		Baseline:     ds.Baseline,
		Target:       ds.Target,
		Segments:     rec.Segments,
	}, policy, palette)
	a.Empty = ds.IsEmpty() || len(rec.Segments) == 0
	return a
}

// Message renders Err for the user.
func (a Analysis) Message() string {
	switch {
	case a.Err == nil:
		return ""
	case errors.Is(a.Err, core.ErrInvalidRate):
		return fmt.Sprintf("La tasa %s%% no permite descontar los flujos.", core.FormatRate(a.RatePercent))
	default:
		return a.Err.Error()
	}
}
