package excel

import (
	"context"
	"errors"
	"testing"

	"github.com/xuri/excelize/v2"

	"ecoads/internal/core"
	ports "ecoads/internal/sheets"
)

func testLayout() ports.Layout {
	return ports.Layout{
		Categories:   "B4:B7",
		Periods:      "D3:G3",
		Baseline:     "C9",
		Target:       "C10",
		BaselineName: "MANNED",
		TargetName:   "ADS",
	}
}

// buildWorkbook writes an xlsx with the given sheets; the first one is populated.
func buildWorkbook(t *testing.T, sheetNames ...string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetNames[0]); err != nil {
		t.Fatal(err)
	}
	for _, n := range sheetNames[1:] {
		if _, err := f.NewSheet(n); err != nil {
			t.Fatal(err)
		}
	}

	s := sheetNames[0]
	cells := map[string]any{
		"D3": 2025, "E3": 2026, "F3": "Año 3",
		"B4": "Operación", "D4": 100, "E4": 108, "F4": "n/a",
		"B5": "Seguros", "D5": -50.5,
		"B7": "Combustible", "E7": 1000,
		"C9":  10000000,
		"C10": 8500000,
	}
	for cell, v := range cells {
		if err := f.SetCellValue(s, cell, v); err != nil {
			t.Fatal(err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newLoader(t *testing.T) *Loader {
	t.Helper()
	l, err := New(testLayout())
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func TestLoader_LoadXLSX(t *testing.T) {
	l := newLoader(t)
	src := ports.Source{Name: "Ev. Eco ADS.xlsx", Content: buildWorkbook(t, "Evaluación", "Notas")}

	ds, err := l.Load(context.Background(), src, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ds.Sheet != "Evaluación" || ds.Source != src.Name {
		t.Errorf("source/sheet = %q/%q", ds.Source, ds.Sheet)
	}
	if len(ds.Periods) != 3 || ds.Periods[0] != "2025" || ds.Periods[2] != "Y03" {
		t.Errorf("periods = %v", ds.Periods)
	}
	if ds.Baseline != 10_000_000 || ds.Target != 8_500_000 {
		t.Errorf("anchors = %v/%v", ds.Baseline, ds.Target)
	}
	if len(ds.Categories) != 3 {
		t.Fatalf("categories = %+v", ds.Categories)
	}
	op := ds.Categories[0]
	if op.Key != "Operación" || op.CashFlows[0] != 100 || op.CashFlows[1] != 108 || op.CashFlows[2] != 0 {
		t.Errorf("operación = %+v", op)
	}
	if ds.Categories[1].CashFlows[0] != -50.5 {
		t.Errorf("seguros = %+v", ds.Categories[1])
	}
	if ds.Categories[2].Key != "Combustible" {
		t.Errorf("blank row not skipped: %+v", ds.Categories)
	}
}

func TestLoader_SelectSheet(t *testing.T) {
	l := newLoader(t)
	src := ports.Source{Name: "book.xlsx", Content: buildWorkbook(t, "Datos", "Vacía")}

	names, err := l.Sheets(context.Background(), src)
	if err != nil || len(names) != 2 || names[0] != "Datos" || names[1] != "Vacía" {
		t.Fatalf("sheets = %v (err=%v)", names, err)
	}

	if _, err := l.Load(context.Background(), src, "datos"); err != nil {
		t.Fatalf("case-insensitive match failed: %v", err)
	}

	_, err = l.Load(context.Background(), src, "Vacía")
	if !errors.Is(err, core.ErrEmptyDataset) {
		t.Fatalf("empty sheet: expected ErrEmptyDataset, got %v", err)
	}

	_, err = l.Load(context.Background(), src, "Missing")
	var le *ports.LoadError
	if !errors.As(err, &le) || !errors.Is(err, ports.ErrSheetNotFound) {
		t.Fatalf("missing sheet: expected LoadError(ErrSheetNotFound), got %v", err)
	}
}

func TestLoader_LoadErrors(t *testing.T) {
	l := newLoader(t)
	tests := []struct {
		name string
		src  ports.Source
		want error
	}{
		{"empty content", ports.Source{Name: "a.xlsx"}, nil},
		{"unknown format", ports.Source{Name: "a.csv", Content: []byte("a,b,c")}, ports.ErrUnsupportedFormat},
		{"corrupt xlsx", ports.Source{Name: "a.xlsx", Content: []byte("PK\x03\x04garbage")}, nil},
		{"corrupt xls", ports.Source{Name: "a.xls", Content: []byte("definitely not biff")}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.Load(context.Background(), tt.src, "")
			var le *ports.LoadError
			if !errors.As(err, &le) {
				t.Fatalf("expected *LoadError, got %v", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestDetect(t *testing.T) {
	cases := []struct {
		src  ports.Source
		want format
	}{
		{ports.Source{Name: "x.XLSX"}, formatXLSX},
		{ports.Source{Name: "x.xlsm"}, formatXLSX},
		{ports.Source{Name: "x.xls"}, formatXLS},
		{ports.Source{Name: "upload", Content: []byte("PK\x03\x04rest")}, formatXLSX},
		{ports.Source{Name: "upload", Content: append([]byte{}, cfbMagic...)}, formatXLS},
		{ports.Source{Name: "notes.txt", Content: []byte("hello")}, formatUnknown},
	}
	for _, tc := range cases {
		if got := detect(tc.src); got != tc.want {
			t.Errorf("detect(%q) = %v, want %v", tc.src.Name, got, tc.want)
		}
	}
}

func TestNew_RejectsBadLayout(t *testing.T) {
	bad := testLayout()
	bad.Categories = "B4:C7"
	if _, err := New(bad); err == nil {
		t.Fatal("expected layout error")
	}
}
