package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"ecoads/internal/core"
	"ecoads/internal/services"
	"ecoads/internal/session"
	"ecoads/internal/sheets/memory"
)

func analyze(t *testing.T, ds core.Dataset, mutate func(*session.Settings)) services.Analysis {
	t.Helper()
	st := session.Defaults()
	if mutate != nil {
		mutate(&st)
	}
	return services.NewAnalysisService(nil).Analyze(ds, st)
}

func TestWritePDF(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		ds     core.Dataset
		mutate func(*session.Settings)
	}{
		{"sample gap", memory.Sample(), nil},
		{"sample implied", memory.Sample(), func(s *session.Settings) { s.Policy = core.PolicyImplied }},
		{"invalid rate", memory.Sample(), func(s *session.Settings) { s.RatePercent = -100 }},
		{"empty", core.Dataset{Baseline: 1000, Target: 900, Source: "vacío.xlsx"}, nil},
		{"axis range", memory.Sample(), func(s *session.Settings) {
			lo, hi := 5e6, 12e6
			s.AxisMin, s.AxisMax = &lo, &hi
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := writePDF(&buf, analyze(t, tt.ds, tt.mutate), now); err != nil {
				t.Fatalf("writePDF: %v", err)
			}
			if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
				t.Fatalf("output is not a PDF: %q", buf.Bytes()[:min(16, buf.Len())])
			}
			if buf.Len() < 1000 {
				t.Errorf("suspiciously small PDF: %d bytes", buf.Len())
			}
		})
	}
}

func TestTitleAndFileName(t *testing.T) {
	if got := Title(8); got != "Análisis Waterfall: MANNED vs ADS (Tasa: 8.0%)" {
		t.Errorf("Title = %q", got)
	}
	if got := FileName(services.Analysis{RatePercent: 12.5}); got != "waterfall_12_5.pdf" {
		t.Errorf("FileName = %q", got)
	}
}

func TestHexRGB(t *testing.T) {
	cases := []struct {
		in      string
		r, g, b int
	}{
		{"#2E8B57", 46, 139, 87},
		{"#dc143c", 220, 20, 60},
		{"rgb(63, 63, 63)", 63, 63, 63},
		{"teal", 128, 128, 128},
		{"#12", 128, 128, 128},
	}
	for _, tc := range cases {
		r, g, b := hexRGB(tc.in)
		if r != tc.r || g != tc.g || b != tc.b {
			t.Errorf("hexRGB(%q) = %d,%d,%d, want %d,%d,%d", tc.in, r, g, b, tc.r, tc.g, tc.b)
		}
	}
}

func TestRenderHelp(t *testing.T) {
	html, err := RenderHelp()
	if err != nil {
		t.Fatalf("RenderHelp: %v", err)
	}
	s := string(html)
	for _, want := range []string{"<h1>", "<table>", "MANNED"} {
		if !strings.Contains(s, want) {
			t.Errorf("help HTML missing %q", want)
		}
	}
}

func TestRenderMarkdown_OmitsRawHTML(t *testing.T) {
	html, err := RenderMarkdown([]byte("hola <script>alert(1)</script>"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(html), "<script>") {
		t.Fatalf("raw HTML was rendered: %s", html)
	}
}
