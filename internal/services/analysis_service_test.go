package services

import (
	"errors"
	"testing"

	"ecoads/internal/core"
	"ecoads/internal/session"
)

func TestAnalysisService_Scenario(t *testing.T) {
	svc := NewAnalysisService(nil)
	st := session.Defaults()
	st.RatePercent = 0

	tests := []struct {
		policy    string
		wantFinal float64
	}{
		{core.PolicyGap, 0},
		{core.PolicyImplied, 1050},
	}
	for _, tt := range tests {
		t.Run(tt.policy, func(t *testing.T) {
			st.Policy = tt.policy
			a := svc.Analyze(testDataset(), st)
			if a.Err != nil || a.Empty {
				t.Fatalf("analysis = %+v", a)
			}
			if len(a.Bars) != 4 {
				t.Fatalf("bars = %+v", a.Bars)
			}
			if a.Bars[1].Key != "B" || a.Bars[2].Key != "A" {
				t.Errorf("order = %s, %s", a.Bars[1].Key, a.Bars[2].Key)
			}
			if got := a.Bars[3].Float(); got != tt.wantFinal {
				t.Errorf("final = %v, want %v", got, tt.wantFinal)
			}
			if a.Summary.Implied != 1050 || a.Summary.Divergence != 0 || a.Summary.Difference != 50 {
				t.Errorf("summary = %+v", a.Summary)
			}
			if len(a.Details) != 2 || a.Details[0].ImpactPct != -5 {
				t.Errorf("details = %+v", a.Details)
			}
		})
	}
}

func TestAnalysisService_RenamesOnlyChangeLabels(t *testing.T) {
	svc := NewAnalysisService(nil)
	st := session.Defaults()
	plain := svc.Analyze(testDataset(), st)

	st.Rename("A", "Alfa")
	renamed := svc.Analyze(testDataset(), st)

	for i := range plain.Bars {
		if !plain.Bars[i].Value.Equal(renamed.Bars[i].Value) || plain.Bars[i].Key != renamed.Bars[i].Key {
			t.Fatalf("bar %d changed: %+v vs %+v", i, plain.Bars[i], renamed.Bars[i])
		}
	}
	if renamed.Bars[2].Label != "Alfa" || plain.Bars[2].Label != "A" {
		t.Errorf("labels = %q / %q", plain.Bars[2].Label, renamed.Bars[2].Label)
	}
}

func TestAnalysisService_InvalidRate(t *testing.T) {
	svc := NewAnalysisService(nil)
	st := session.Defaults()
	st.RatePercent = -100
	ds := testDataset()
	ds.Categories[0].CashFlows = []float64{1, 2}

	a := svc.Analyze(ds, st)
	if !errors.Is(a.Err, core.ErrInvalidRate) || !a.Empty {
		t.Fatalf("expected invalid rate, got %+v", a)
	}
	if a.Summary.Baseline != 1000 || a.Summary.Target != 1050 {
		t.Errorf("anchors missing: %+v", a.Summary)
	}
	if a.Message() == "" {
		t.Error("expected a user message")
	}
}

func TestAnalysisService_EmptyDataset(t *testing.T) {
	svc := NewAnalysisService(nil)
	a := svc.Analyze(core.Dataset{Baseline: 5}, session.Defaults())
	if a.Err != nil || !a.Empty || len(a.Details) != 0 {
		t.Fatalf("empty = %+v", a)
	}
	if a.Summary.Implied != 5 {
		t.Errorf("implied = %v", a.Summary.Implied)
	}
}

func TestAnalysisService_UnknownPolicyAndPalette(t *testing.T) {
	svc := NewAnalysisService(nil)
	st := session.Defaults()
	st.Policy, st.Palette = "bogus", "neon"
	a := svc.Analyze(testDataset(), st)
	if a.Policy != core.PolicyGap || a.Palette.Name != core.BenefitGreen.Name {
		t.Fatalf("fallbacks = %s / %s", a.Policy, a.Palette.Name)
	}
}
