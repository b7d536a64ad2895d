package google

import (
	"testing"

	ports "ecoads/internal/sheets"
)

// A bounding rectangle as the API returns it for 'Hoja'!B3:G10: ragged rows,
// numbers as float64, blanks omitted at row ends.
func TestValuesGrid_Extract(t *testing.T) {
	values := [][]interface{}{
		{"", "", 2025.0, 2026.0, "Y3"},
		{"Operación", "", 100.0, 108.0, "x"},
		{"Seguros", nil, -50.5},
		{},
		{"Combustible", "", 0.0, 1000.0},
		{},
		{"", 10000000.0},
		{"", 8.5e6},
	}
	layout := ports.Layout{
		Categories: "B4:B7",
		Periods:    "D3:F3",
		Baseline:   "C9",
		Target:     "C10",
	}

	g := valuesGrid(values, 3, 2)
	ds, err := ports.Extract(g, layout)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(ds.Periods) != 3 || ds.Periods[0] != "2025" || ds.Periods[2] != "Y03" {
		t.Fatalf("periods = %v", ds.Periods)
	}
	if len(ds.Categories) != 3 {
		t.Fatalf("categories = %+v", ds.Categories)
	}
	if got := ds.Categories[0].CashFlows; got[0] != 100 || got[1] != 108 || got[2] != 0 {
		t.Fatalf("operación flows = %v", got)
	}
	if ds.Baseline != 10_000_000 || ds.Target != 8_500_000 {
		t.Fatalf("anchors = %v/%v", ds.Baseline, ds.Target)
	}
}

func TestCellString(t *testing.T) {
	cases := []struct {
		in   interface{}
		want string
	}{
		{nil, ""},
		{" text ", "text"},
		{1234.5, "1234.5"},
		{1e7, "10000000"},
		{true, "1"},
		{false, "0"},
		{int64(7), "7"},
		{[]int{1}, ""},
	}
	for _, tc := range cases {
		if got := cellString(tc.in); got != tc.want {
			t.Errorf("cellString(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
