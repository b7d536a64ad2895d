// Package report renders an analysis as a PDF document: headline metrics,
// the waterfall drawn with vector primitives, and the per-category table.
package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"ecoads/internal/chart"
	"ecoads/internal/core"
	"ecoads/internal/services"
)

// page geometry, A4 landscape in millimetres
const (
	pageWidth    = 297.0
	margin       = 15.0
	contentWidth = pageWidth - 2*margin

	chartTop    = 62.0
	chartHeight = 95.0
)

// Title returns the chart title for a discount rate.
func Title(ratePercent float64) string {
	return fmt.Sprintf("Análisis Waterfall: MANNED vs ADS (Tasa: %s%%)", core.FormatRate(ratePercent))
}

// FileName is the suggested download name.
func FileName(a services.Analysis) string {
	return fmt.Sprintf("waterfall_%s.pdf", strings.ReplaceAll(core.FormatRate(a.RatePercent), ".", "_"))
}

type pdfReport struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
	a   services.Analysis
	now time.Time
}

// WritePDF writes the report for a to w.
func WritePDF(w io.Writer, a services.Analysis) error {
	return writePDF(w, a, time.Now())
}

func writePDF(w io.Writer, a services.Analysis, now time.Time) error {
	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	pdf.SetTitle(Title(a.RatePercent), true)
	pdf.SetCreator("ecoads", true)

	r := &pdfReport{
		pdf: pdf,
		// core fonts are cp1252; accents in Spanish labels need translating
		tr:  pdf.UnicodeTranslatorFromDescriptor(""),
		a:   a,
		now: now,
	}
	r.addChartPage()
	r.addDetailPage()

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("build pdf: %w", err)
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func (r *pdfReport) addChartPage() {
	pdf := r.pdf
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(contentWidth, 9, r.tr(Title(r.a.RatePercent)), "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "I", 9)
	source := r.a.Source
	if r.a.Sheet != "" {
		source += " / " + r.a.Sheet
	}
	subtitle := fmt.Sprintf("Fuente: %s   Cierre: %s   Generado: %s",
		source, policyLabel(r.a.Policy), r.now.Format("02/01/2006 15:04"))
	pdf.CellFormat(contentWidth, 6, r.tr(subtitle), "", 1, "C", false, 0, "")

	if r.a.Synthetic {
		pdf.SetTextColor(180, 90, 0)
		pdf.CellFormat(contentWidth, 6, r.tr("Datos de ejemplo: no se cargó un archivo válido."), "", 1, "C", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
	}
	pdf.Ln(3)
	r.metrics()

	if msg := r.a.Message(); msg != "" {
		r.notice(msg)
		return
	}
	if r.a.Empty {
		r.notice("No hay categorías para mostrar con los filtros actuales.")
		return
	}
	r.waterfall()
}

// metrics draws the headline boxes in one row.
func (r *pdfReport) metrics() {
	pdf := r.pdf
	s := r.a.Summary
	boxes := []struct{ label, value, delta string }{
		{"Total " + s.BaselineName, core.FormatMillionsPrecise(s.Baseline), ""},
		{"Total " + s.TargetName, core.FormatMillionsPrecise(s.Target), ""},
		{"Diferencia", core.FormatMillionsPrecise(s.Difference), core.FormatPercent(s.DifferencePct, 1)},
		{"Total implícito", core.FormatMillionsPrecise(s.Implied), "Divergencia " + core.FormatMillionsPrecise(s.Divergence)},
	}
	w := contentWidth / float64(len(boxes))
	x, y := pdf.GetX(), pdf.GetY()

	pdf.SetFillColor(245, 247, 250)
	pdf.SetDrawColor(200, 200, 200)
	for i, b := range boxes {
		bx := x + float64(i)*w
		pdf.Rect(bx+1, y, w-2, 20, "FD")
		pdf.SetXY(bx+1, y+1.5)
		pdf.SetFont("Helvetica", "", 9)
		pdf.CellFormat(w-2, 5, r.tr(b.label), "", 2, "C", false, 0, "")
		pdf.SetFont("Helvetica", "B", 13)
		pdf.CellFormat(w-2, 7, b.value, "", 2, "C", false, 0, "")
		if b.delta != "" {
			pdf.SetFont("Helvetica", "", 8)
			pdf.CellFormat(w-2, 4, r.tr(b.delta), "", 2, "C", false, 0, "")
		}
	}
	pdf.SetXY(x, y+24)
}

func (r *pdfReport) notice(msg string) {
	pdf := r.pdf
	pdf.SetY(chartTop + chartHeight/2)
	pdf.SetFont("Helvetica", "I", 12)
	pdf.SetTextColor(120, 120, 120)
	pdf.CellFormat(contentWidth, 8, r.tr(msg), "", 1, "C", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
}

// waterfall draws the steps as rectangles with dashed connectors and
// rotated category labels under the axis.
func (r *pdfReport) waterfall() {
	pdf := r.pdf
	steps := chart.Steps(r.a.Bars, r.a.Policy, r.a.Palette)
	if len(steps) == 0 {
		return
	}

	lo, hi := chart.Extent(steps)
	if alo, ahi, ok := r.a.Axis.Range(); ok {
		lo, hi = alo, ahi
	}
	pad := (hi - lo) * 0.08
	lo, hi = lo-pad, hi+pad
	if hi <= lo {
		hi = lo + 1
	}
	yOf := func(v float64) float64 {
		v = max(lo, min(hi, v))
		return chartTop + (hi-v)/(hi-lo)*chartHeight
	}

	const axisLeft = margin + 22
	plotWidth := pageWidth - margin - axisLeft
	slot := plotWidth / float64(len(steps))
	barWidth := slot * 0.7

	// y axis with five ticks
	pdf.SetFont("Helvetica", "", 7)
	pdf.SetDrawColor(220, 220, 220)
	pdf.SetLineWidth(0.1)
	for i := 0; i <= 4; i++ {
		v := lo + (hi-lo)*float64(i)/4
		y := yOf(v)
		pdf.Line(axisLeft, y, pageWidth-margin, y)
		pdf.SetXY(margin, y-2)
		pdf.CellFormat(axisLeft-margin-1, 4, core.FormatMillions(v), "", 0, "R", false, 0, "")
	}
	if lo < 0 && hi > 0 {
		pdf.SetDrawColor(120, 120, 120)
		pdf.Line(axisLeft, yOf(0), pageWidth-margin, yOf(0))
	}

	cr, cg, cb := hexRGB(r.a.Palette.Connector)
	for i, s := range steps {
		x := axisLeft + float64(i)*slot + (slot-barWidth)/2
		top, bottom := yOf(s.High()), yOf(s.Low())

		fr, fg, fb := hexRGB(s.Color)
		pdf.SetFillColor(fr, fg, fb)
		pdf.Rect(x, top, barWidth, max(bottom-top, 0.3), "F")

		pdf.SetFont("Helvetica", "", 6)
		pdf.SetXY(x-slot*0.15, top-4)
		pdf.CellFormat(barWidth+slot*0.3, 3.5, s.Text, "", 0, "C", false, 0, "")

		if i+1 < len(steps) {
			next := steps[i+1]
			if next.Kind == core.KindRelative {
				pdf.SetDrawColor(cr, cg, cb)
				pdf.SetLineWidth(0.2)
				pdf.SetDashPattern([]float64{0.8, 0.8}, 0)
				y := yOf(s.End)
				pdf.Line(x+barWidth, y, x+slot, y)
				pdf.SetDashPattern([]float64{}, 0)
			}
		}

		pdf.SetFont("Helvetica", "", 6.5)
		lx, ly := x+barWidth/2, chartTop+chartHeight+3
		pdf.TransformBegin()
		pdf.TransformRotate(45, lx, ly)
		w := pdf.GetStringWidth(r.tr(s.Label))
		pdf.Text(lx-w, ly+1, r.tr(s.Label))
		pdf.TransformEnd()
	}

	pdf.SetFont("Helvetica", "I", 8)
	pdf.SetXY(margin, chartTop+chartHeight+28)
	pdf.CellFormat(contentWidth, 5, r.tr("Valor Presente Neto (USD) por categoría"), "", 1, "C", false, 0, "")
}

func (r *pdfReport) addDetailPage() {
	pdf := r.pdf
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(contentWidth, 8, r.tr("Detalles por Categoría"), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	cols := []struct {
		title string
		width float64
		align string
	}{
		{"Categoría", contentWidth * 0.46, "L"},
		{"VPN (USD)", contentWidth * 0.2, "R"},
		{"VPN (M USD)", contentWidth * 0.16, "R"},
		{"Impacto (%)", contentWidth * 0.18, "R"},
	}

	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(70, 130, 180)
	pdf.SetTextColor(255, 255, 255)
	for _, c := range cols {
		pdf.CellFormat(c.width, 7, r.tr(c.title), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetTextColor(0, 0, 0)

	if len(r.a.Details) == 0 {
		pdf.SetFont("Helvetica", "I", 9)
		pdf.CellFormat(contentWidth, 7, r.tr("Sin categorías."), "1", 1, "C", false, 0, "")
		return
	}

	pdf.SetFont("Helvetica", "", 9)
	for i, d := range r.a.Details {
		fill := i%2 == 1
		pdf.SetFillColor(245, 247, 250)
		label := d.Label
		if d.Hidden {
			label += " (oculta)"
			pdf.SetTextColor(130, 130, 130)
		}
		values := []string{
			label,
			core.FormatUSD(d.NPV),
			strconv.FormatFloat(d.NPVMillions, 'f', 2, 64),
			core.FormatPercent(d.ImpactPct, 2),
		}
		for j, c := range cols {
			pdf.CellFormat(c.width, 6, r.tr(values[j]), "LR", 0, c.align, fill, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetTextColor(0, 0, 0)
	}
	pdf.CellFormat(contentWidth, 0, "", "T", 1, "", false, 0, "")
}

func policyLabel(policy string) string {
	if policy == core.PolicyImplied {
		return "total implícito"
	}
	return "ajuste al total ADS"
}

// hexRGB parses "#RRGGBB" and "rgb(r, g, b)"; anything else is mid grey.
func hexRGB(s string) (int, int, int) {
	s = strings.TrimSpace(s)
	if v, ok := strings.CutPrefix(s, "#"); ok && len(v) == 6 {
		n, err := strconv.ParseUint(v, 16, 32)
		if err == nil {
			return int(n >> 16 & 0xFF), int(n >> 8 & 0xFF), int(n & 0xFF)
		}
	}
	if v, ok := strings.CutPrefix(s, "rgb("); ok {
		parts := strings.Split(strings.TrimSuffix(v, ")"), ",")
		if len(parts) == 3 {
			var rgb [3]int
			for i, p := range parts {
				n, err := strconv.Atoi(strings.TrimSpace(p))
				if err != nil {
					return 128, 128, 128
				}
				rgb[i] = n
			}
			return rgb[0], rgb[1], rgb[2]
		}
	}
	return 128, 128, 128
}
