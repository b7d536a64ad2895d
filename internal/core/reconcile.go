package core

import (
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

// ZeroEpsilon is the tolerance under which a present value counts as zero
// for the hide-zeros filter.
const ZeroEpsilon = 1e-9

// ReconcileOptions are the per-call inputs of Reconcile.
type ReconcileOptions struct {
	RatePercent float64
	// HideZeros drops categories with |NPV| <= Epsilon.
	HideZeros bool
	// DropExactZeros drops categories whose NPV is exactly 0 even when
	// HideZeros is off.
	DropExactZeros bool
	// Epsilon defaults to ZeroEpsilon when <= 0.
	Epsilon float64
}

// DefaultReconcileOptions returns options at the given rate with exact zeros dropped.
func DefaultReconcileOptions(ratePercent float64) ReconcileOptions {
	return ReconcileOptions{
		RatePercent:    ratePercent,
		DropExactZeros: true,
		Epsilon:        ZeroEpsilon,
	}
}

func (o ReconcileOptions) epsilon() float64 {
	if o.Epsilon <= 0 {
		return ZeroEpsilon
	}
	return o.Epsilon
}

// Segment is a category reduced to its present value.
type Segment struct {
	Key   string
	Label string
	NPV   float64
}

// Reconciliation is the ordered, filtered result of Reconcile.
type Reconciliation struct {
	Segments []Segment
	// Hidden holds filtered-out categories in input order.
	Hidden       []Segment
	Baseline     float64
	ImpliedTotal float64
}

// Sum returns the total present value of the visible segments.
func (r Reconciliation) Sum() float64 {
	return r.sum().InexactFloat64()
}

// sum and implied add up exactly like Assemble does, so the metrics agree
// with the bars.
func (r Reconciliation) sum() decimal.Decimal {
	s := decimal.Zero
	for _, seg := range r.Segments {
		s = s.Add(decimal.NewFromFloat(seg.NPV))
	}
	return s
}

func (r Reconciliation) implied() decimal.Decimal {
	return decimal.NewFromFloat(r.Baseline).Add(r.sum())
}

// Reconcile computes every category's NPV, filters, and orders the survivors:
// negatives ascending, then (if kept) exact zeros, then positives descending.
// ImpliedTotal is baseline plus the visible NPVs; it is not forced to match
// any externally supplied target.
func Reconcile(categories []Category, baseline float64, opts ReconcileOptions) (Reconciliation, error) {
	rec := Reconciliation{Baseline: baseline, ImpliedTotal: baseline}
	eps := opts.epsilon()

	var negatives, zeros, positives []Segment
	for _, c := range categories {
		npv, err := ComputeNPV(c.CashFlows, opts.RatePercent)
		if err != nil {
			return Reconciliation{}, fmt.Errorf("category %q: %w", c.Key, err)
		}
		seg := Segment{Key: c.Key, Label: c.DisplayLabel(), NPV: npv}

		switch {
		case opts.HideZeros && math.Abs(npv) <= eps:
			rec.Hidden = append(rec.Hidden, seg)
		case npv < 0:
			negatives = append(negatives, seg)
		case npv > 0:
			positives = append(positives, seg)
		case opts.DropExactZeros:
			rec.Hidden = append(rec.Hidden, seg)
		default:
			zeros = append(zeros, seg)
		}
	}

	sort.SliceStable(negatives, func(i, j int) bool { return negatives[i].NPV < negatives[j].NPV })
	sort.SliceStable(positives, func(i, j int) bool { return positives[i].NPV > positives[j].NPV })

	rec.Segments = make([]Segment, 0, len(negatives)+len(zeros)+len(positives))
	rec.Segments = append(rec.Segments, negatives...)
	rec.Segments = append(rec.Segments, zeros...)
	rec.Segments = append(rec.Segments, positives...)

	rec.ImpliedTotal = rec.implied().InexactFloat64()
	return rec, nil
}
