package memory

import (
	"context"
	"errors"
	"testing"

	"ecoads/internal/core"
	ports "ecoads/internal/sheets"
)

func TestSampleIsDeterministic(t *testing.T) {
	a, b := Sample(), Sample()
	if len(a.Categories) != 19 || len(a.Periods) != 20 {
		t.Fatalf("shape = %d x %d", len(a.Categories), len(a.Periods))
	}
	if a.Periods[0] != "2025" || a.Periods[19] != "2044" {
		t.Fatalf("periods = %v", a.Periods)
	}
	for i := range a.Categories {
		for j, v := range a.Categories[i].CashFlows {
			if v != b.Categories[i].CashFlows[j] {
				t.Fatalf("sample differs at [%d][%d]", i, j)
			}
			if v < -500_000 || v > 500_000 {
				t.Fatalf("value out of range: %v", v)
			}
		}
	}
	if !a.Synthetic || a.Baseline != 10_000_000 || a.Target != 8_500_000 {
		t.Fatalf("sample anchors = %+v", a)
	}
	if a.Categories[0].Key != "Operación" || a.Categories[18].Key != "Otros" {
		t.Fatalf("categories = %v", a.Categories)
	}
}

func TestStoreLoad(t *testing.T) {
	s := NewSample()
	ctx := context.Background()

	ds, err := s.Load(ctx, ports.Source{Name: "sample"}, "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ds.Sheet != SampleSheet {
		t.Errorf("sheet = %q", ds.Sheet)
	}

	// returned data is a copy
	ds.Categories[0].CashFlows[0] = 1
	again, _ := s.Load(ctx, ports.Source{Name: "sample"}, SampleSheet)
	if again.Categories[0].CashFlows[0] == 1 {
		t.Fatal("store leaked its internal slice")
	}
}

func TestStoreErrors(t *testing.T) {
	s := New()
	s.Put("book", "empty", core.Dataset{})
	ctx := context.Background()

	var le *ports.LoadError
	if _, err := s.Load(ctx, ports.Source{Name: "missing"}, ""); !errors.As(err, &le) {
		t.Fatalf("unknown book: expected *LoadError, got %v", err)
	}
	if _, err := s.Load(ctx, ports.Source{Name: "book"}, "nope"); !errors.Is(err, ports.ErrSheetNotFound) {
		t.Fatalf("unknown sheet: got %v", err)
	}
	if _, err := s.Load(ctx, ports.Source{Name: "book"}, ""); !errors.Is(err, core.ErrEmptyDataset) {
		t.Fatalf("empty sheet: got %v", err)
	}

	s.Put("book", "second", core.Dataset{})
	s.Put("book", "empty", core.Dataset{})
	names, _ := s.Sheets(ctx, ports.Source{Name: "book"})
	if len(names) != 2 || names[0] != "empty" || names[1] != "second" {
		t.Fatalf("sheets = %v", names)
	}
}
