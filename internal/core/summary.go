package core

import "github.com/shopspring/decimal"

// Summary holds the headline metrics shown next to the chart.
type Summary struct {
	BaselineName string
	TargetName   string
	Baseline     float64
	Target       float64
	// Difference is Target - Baseline.
	Difference    float64
	DifferencePct float64
	// Implied is Baseline plus the visible present values.
	Implied float64
	// Divergence is Target - Implied; non-zero means the detail does not
	// explain the externally supplied target.
	Divergence float64
}

// Summarize derives the headline metrics from the anchors and a
// reconciliation. Implied and Divergence come from rec's baseline and
// segments in decimal, the same way the gap bar is valued.
func Summarize(baselineName, targetName string, baseline, target float64, rec Reconciliation) Summary {
	tgt := decimal.NewFromFloat(target)
	implied := rec.implied()
	s := Summary{
		BaselineName: baselineName,
		TargetName:   targetName,
		Baseline:     baseline,
		Target:       target,
		Difference:   tgt.Sub(decimal.NewFromFloat(baseline)).InexactFloat64(),
		Implied:      implied.InexactFloat64(),
		Divergence:   tgt.Sub(implied).InexactFloat64(),
	}
	s.DifferencePct = percentOf(s.Difference, baseline)
	return s
}

// DetailRow is one line of the per-category table.
type DetailRow struct {
	Key         string
	Label       string
	NPV         float64
	NPVMillions float64
	// ImpactPct is NPV / baseline * 100.
	ImpactPct float64
	Hidden    bool
}

// DetailRows lists visible segments in chart order followed by hidden ones.
func DetailRows(rec Reconciliation) []DetailRow {
	rows := make([]DetailRow, 0, len(rec.Segments)+len(rec.Hidden))
	add := func(seg Segment, hidden bool) {
		rows = append(rows, DetailRow{
			Key:         seg.Key,
			Label:       seg.Label,
			NPV:         seg.NPV,
			NPVMillions: seg.NPV / 1e6,
			ImpactPct:   percentOf(seg.NPV, rec.Baseline),
			Hidden:      hidden,
		})
	}
	for _, seg := range rec.Segments {
		add(seg, false)
	}
	for _, seg := range rec.Hidden {
		add(seg, true)
	}
	return rows
}

func percentOf(v, base float64) float64 {
	if base == 0 {
		return 0
	}
	return v * 100 / base
}

// Axis is an optional y-axis range. A range applies only when both bounds
// are set and Min < Max; otherwise the chart auto-scales.
type Axis struct {
	Min *float64
	Max *float64
}

// Range returns the bounds and whether they should be applied.
func (a Axis) Range() (lo, hi float64, ok bool) {
	if a.Min == nil || a.Max == nil || *a.Min >= *a.Max {
		return 0, 0, false
	}
	return *a.Min, *a.Max, true
}
