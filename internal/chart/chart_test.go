package chart

import (
	"testing"

	"ecoads/internal/core"
)

func scenarioBars(policy core.FinalPolicy, target float64) []core.Bar {
	return core.Assemble(core.AssembleInput{
		Baseline: 1000,
		Target:   target,
		Segments: []core.Segment{
			{Key: "B", Label: "B", NPV: -50},
			{Key: "A", Label: "A", NPV: 100},
		},
	}, policy, core.BenefitGreen)
}

func TestSteps_GapPolicyEndsAtTarget(t *testing.T) {
	steps := Steps(scenarioBars(core.GapReconciliation{}, 1200), core.PolicyGap, core.BenefitGreen)

	if len(steps) != 5 {
		t.Fatalf("steps = %+v", steps)
	}
	gap := steps[3]
	if gap.Label != GapLabel || gap.Kind != core.KindRelative || gap.Value != 150 || gap.Start != 1050 || gap.End != 1200 {
		t.Errorf("gap step = %+v", gap)
	}
	if gap.Color != core.BenefitGreen.Positive {
		t.Errorf("gap colour = %s", gap.Color)
	}
	final := steps[4]
	if final.Kind != core.KindTotal || final.Start != 0 || final.End != 1200 || final.Text != "$0.0M" {
		t.Errorf("final step = %+v", final)
	}
}

func TestSteps_GapPolicyNoGapBarWhenReconciled(t *testing.T) {
	steps := Steps(scenarioBars(core.GapReconciliation{}, 1050), core.PolicyGap, core.BenefitGreen)
	if len(steps) != 4 {
		t.Fatalf("steps = %+v", steps)
	}
	if steps[3].End != 1050 {
		t.Errorf("final = %+v", steps[3])
	}
}

func TestSteps_ImpliedPolicy(t *testing.T) {
	steps := Steps(scenarioBars(core.ImpliedTotal{}, 1200), core.PolicyImplied, core.BenefitGreen)
	if len(steps) != 4 {
		t.Fatalf("steps = %+v", steps)
	}
	b := steps[1]
	if b.Start != 1000 || b.End != 950 || b.Low() != 950 || b.High() != 1000 {
		t.Errorf("B step = %+v", b)
	}
	if steps[3].End != 1050 {
		t.Errorf("implied endpoint = %+v", steps[3])
	}
}

func TestExtent(t *testing.T) {
	lo, hi := Extent([]Step{{Start: 0, End: 500}, {Start: 500, End: -200}})
	if lo != -200 || hi != 500 {
		t.Errorf("extent = %v..%v", lo, hi)
	}
	lo, hi = Extent(nil)
	if lo != 0 || hi != 0 {
		t.Errorf("empty extent = %v..%v", lo, hi)
	}
}

func TestSteps_GapKeyDistinctFromCategories(t *testing.T) {
	bars := core.Assemble(core.AssembleInput{
		Baseline: 1000,
		Target:   1200,
		Segments: []core.Segment{{Key: GapLabel, Label: GapLabel, NPV: 50}},
	}, core.GapReconciliation{}, core.BenefitGreen)
	steps := Steps(bars, core.PolicyGap, core.BenefitGreen)

	if len(steps) != 4 {
		t.Fatalf("steps = %+v", steps)
	}
	category, gap := steps[1], steps[2]
	if category.Key != GapLabel || category.Value != 50 {
		t.Errorf("category step = %+v", category)
	}
	if gap.Key != GapKey || gap.Key == category.Key || gap.Value != 150 {
		t.Errorf("gap step = %+v", gap)
	}
}
