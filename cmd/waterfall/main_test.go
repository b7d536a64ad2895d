package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

// run executes the command tree with its own config file so the user's
// ~/.waterfall.yaml never leaks into a test.
func run(t *testing.T, config string, args ...string) (string, error) {
	t.Helper()
	cfg := filepath.Join(t.TempDir(), "waterfall.yaml")
	if err := os.WriteFile(cfg, []byte(config), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append(args, "--config", cfg))
	err := root.ExecuteContext(context.Background())
	return stdout.String(), err
}

// writeWorkbook saves an xlsx in the default layout: Combustible 100+100,
// Personal -300, Seguros 0, MANNED 1000 and ADS 850. Only the first sheet
// holds data.
func writeWorkbook(t *testing.T, sheetNames ...string) string {
	t.Helper()
	if len(sheetNames) == 0 {
		sheetNames = []string{"Hoja1"}
	}
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

	cells := map[string]any{
		"D144": 2025, "E144": 2026,
		"B145": "Combustible", "D145": 100, "E145": 100,
		"B146": "Personal", "D146": -300,
		"B147": "Seguros", "D147": 0,
		"C169": 1000,
		"C172": 850,
	}
	for cell, v := range cells {
		if err := f.SetCellValue(sheetNames[0], cell, v); err != nil {
			t.Fatal(err)
		}
	}

	path := filepath.Join(t.TempDir(), "Ev. Eco ADS.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save workbook: %v", err)
	}
	return path
}

func assertContains(t *testing.T, out string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(out, w) {
			t.Errorf("output missing %q:\n%s", w, out)
		}
	}
}

func TestCompute_Sample(t *testing.T) {
	out, err := run(t, "", "compute")
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	assertContains(t, out,
		"Análisis Waterfall: MANNED vs ADS (Tasa: 8.0%)",
		"datos sintéticos",
		"MANNED (Base)",
		"ADS (Final)",
		"Total MANNED",
		"$10,000,000",
		"$8,500,000",
	)
}

func TestCompute_Workbook(t *testing.T) {
	book := writeWorkbook(t)

	out, err := run(t, "", "compute", "--file", book, "--rate", "0")
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	assertContains(t, out,
		"Tasa: 0.0%",
		"Fuente: Ev. Eco ADS.xlsx, hoja Hoja1, 2 periodos (2025 a 2026)",
		"Seguros (oculta)",
		"-30.00%",
		"20.00%",
		"Diferencia",
		"-$150",
		"-15.0%",
		"$900",
		"-$50",
	)

	personal := strings.Index(out, "Personal")
	combustible := strings.Index(out, "Combustible")
	if personal < 0 || combustible < 0 || personal > combustible {
		t.Errorf("costs must be listed before benefits:\n%s", out)
	}
}

func TestCompute_Options(t *testing.T) {
	book := writeWorkbook(t)

	t.Run("keep exact zeros", func(t *testing.T) {
		out, err := run(t, "", "compute", "-f", book, "--keep-exact-zeros")
		if err != nil {
			t.Fatalf("compute: %v", err)
		}
		if strings.Contains(out, "(oculta)") {
			t.Errorf("no category should be hidden:\n%s", out)
		}
	})

	t.Run("rename", func(t *testing.T) {
		out, err := run(t, "", "compute", "-f", book, "--rename", "Personal=Plantilla", "--rename", "Combustible = Diésel")
		if err != nil {
			t.Fatalf("compute: %v", err)
		}
		assertContains(t, out, "Plantilla", "Diésel")
		if strings.Contains(out, "Personal") {
			t.Errorf("renamed category still shown by key:\n%s", out)
		}
	})

	t.Run("implied policy and cost palette", func(t *testing.T) {
		out, err := run(t, "", "compute", "-f", book, "--policy", "implied", "--palette", "cost-green")
		if err != nil {
			t.Fatalf("compute: %v", err)
		}
		assertContains(t, out, "ADS (Final)", "total")
	})
}

func TestCompute_ConfigAndEnvironment(t *testing.T) {
	book := writeWorkbook(t)
	config := "rate: 5\nrenames:\n  - Personal=Staff\n"

	out, err := run(t, config, "compute", "-f", book)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	assertContains(t, out, "Tasa: 5.0%", "Staff")

	t.Setenv("WATERFALL_RATE", "12")
	out, err = run(t, config, "compute", "-f", book)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	assertContains(t, out, "Tasa: 12.0%")

	out, err = run(t, config, "compute", "-f", book, "--rate", "3.5")
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	assertContains(t, out, "Tasa: 3.5%")
}

func TestCompute_Errors(t *testing.T) {
	book := writeWorkbook(t)

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"unknown policy", []string{"compute", "--policy", "average"}, "policy"},
		{"unknown palette", []string{"compute", "--palette", "blue"}, "palette"},
		{"bad rename", []string{"compute", "--rename", "=Nada"}, "CATEGORY=LABEL"},
		{"missing file", []string{"compute", "-f", filepath.Join(t.TempDir(), "none.xlsx")}, "none.xlsx"},
		{"unknown sheet", []string{"compute", "-f", book, "-s", "Otra"}, "Otra"},
		{"rate without discount factor", []string{"compute", "-f", book, "--rate=-100"}, "no permite descontar"},
		{"positional argument", []string{"compute", "extra"}, "unknown command"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, "", tt.args...)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestMissingExplicitConfig(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"layout", "--config", filepath.Join(t.TempDir(), "nope.yaml")})
	if err := root.ExecuteContext(context.Background()); err == nil {
		t.Fatal("missing --config file must fail")
	}
}

func TestExport(t *testing.T) {
	book := writeWorkbook(t)
	pdf := filepath.Join(t.TempDir(), "informe.pdf")

	out, err := run(t, "", "export", "-f", book, "--out", pdf)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	assertContains(t, out, pdf)

	data, err := os.ReadFile(pdf)
	if err != nil {
		t.Fatalf("read pdf: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Errorf("output is not a PDF: %q", data[:min(len(data), 16)])
	}
}

func TestSheets(t *testing.T) {
	book := writeWorkbook(t, "Caso A", "Caso B")

	out, err := run(t, "", "sheets", "--file", book)
	if err != nil {
		t.Fatalf("sheets: %v", err)
	}
	if out != "Caso A\nCaso B\n" {
		t.Errorf("sheets = %q", out)
	}

	if _, err := run(t, "", "sheets"); err == nil {
		t.Error("sheets without --file must fail")
	}
}

func TestLayout(t *testing.T) {
	out, err := run(t, "", "layout")
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	assertContains(t, out, "B145:B163", "D144:AK144", "C169", "C172", "MANNED", "ADS")

	file := filepath.Join(t.TempDir(), "layout.yaml")
	if err := os.WriteFile(file, []byte("baseline: C170\n"), 0644); err != nil {
		t.Fatal(err)
	}
	out, err = run(t, "", "layout", "--layout", file)
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	assertContains(t, out, "C170", "B145:B163")
	if strings.Contains(out, "C169") {
		t.Errorf("override not applied:\n%s", out)
	}
}

func TestGuide(t *testing.T) {
	out, err := run(t, "", "guide")
	if err != nil {
		t.Fatalf("guide: %v", err)
	}
	if !strings.HasPrefix(out, "# ") {
		t.Errorf("guide = %q...", out[:min(len(out), 40)])
	}
}

func TestParseRename(t *testing.T) {
	tests := []struct {
		in        string
		key       string
		label     string
		wantError bool
	}{
		{in: "Personal=Plantilla", key: "Personal", label: "Plantilla"},
		{in: " Otros = Varios ", key: "Otros", label: "Varios"},
		{in: "Otros=", key: "Otros", label: ""},
		{in: "a=b=c", key: "a", label: "b=c"},
		{in: "Personal", wantError: true},
		{in: "=Plantilla", wantError: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			key, label, err := parseRename(tt.in)
			if (err != nil) != tt.wantError {
				t.Fatalf("parseRename(%q) error = %v, wantError %v", tt.in, err, tt.wantError)
			}
			if key != tt.key || label != tt.label {
				t.Errorf("parseRename(%q) = %q, %q, want %q, %q", tt.in, key, label, tt.key, tt.label)
			}
		})
	}
}
