package http

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"

	"ecoads/internal/amqp"
	"ecoads/internal/core"
	"ecoads/internal/log"
	"ecoads/internal/report"
	"ecoads/internal/services"
	"ecoads/internal/session"
)

type analysisResponse struct {
	Source      string          `json:"source"`
	Sheet       string          `json:"sheet"`
	Synthetic   bool            `json:"synthetic"`
	Periods     []string        `json:"periods"`
	RatePercent float64         `json:"rate_percent"`
	Policy      string          `json:"policy"`
	Palette     string          `json:"palette"`
	Summary     summaryResponse `json:"summary"`
	Segments    []segmentJSON   `json:"segments"`
	Hidden      []segmentJSON   `json:"hidden"`
	Bars        []barJSON       `json:"bars"`
	Empty       bool            `json:"empty"`
	Error       string          `json:"error,omitempty"`
	Warning     string          `json:"warning,omitempty"`
}

type summaryResponse struct {
	BaselineName  string  `json:"baseline_name"`
	TargetName    string  `json:"target_name"`
	Baseline      float64 `json:"baseline"`
	Target        float64 `json:"target"`
	Difference    float64 `json:"difference"`
	DifferencePct float64 `json:"difference_pct"`
	Implied       float64 `json:"implied_total"`
	Divergence    float64 `json:"divergence"`
}

type segmentJSON struct {
	Key       string  `json:"key"`
	Label     string  `json:"label"`
	NPV       float64 `json:"npv"`
	ImpactPct float64 `json:"impact_pct"`
}

type barJSON struct {
	Key   string       `json:"key"`
	Label string       `json:"label"`
	Value float64      `json:"value"`
	Kind  core.BarKind `json:"kind"`
	Color string       `json:"color"`
}

func newAnalysisResponse(loaded services.Loaded, a services.Analysis) analysisResponse {
	s := a.Summary
	out := analysisResponse{
		Source:      a.Source,
		Sheet:       a.Sheet,
		Synthetic:   a.Synthetic,
		Periods:     a.Periods,
		RatePercent: a.RatePercent,
		Policy:      a.Policy,
		Palette:     a.Palette.Name,
		Summary: summaryResponse{
			BaselineName:  s.BaselineName,
			TargetName:    s.TargetName,
			Baseline:      s.Baseline,
			Target:        s.Target,
			Difference:    s.Difference,
			DifferencePct: s.DifferencePct,
			Implied:       s.Implied,
			Divergence:    s.Divergence,
		},
		Segments: []segmentJSON{},
		Hidden:   []segmentJSON{},
		Bars:     []barJSON{},
		Empty:    a.Empty,
		Error:    a.Message(),
		Warning:  loaded.Warning,
	}
	for _, d := range a.Details {
		seg := segmentJSON{Key: d.Key, Label: d.Label, NPV: d.NPV, ImpactPct: d.ImpactPct}
		if d.Hidden {
			out.Hidden = append(out.Hidden, seg)
		} else {
			out.Segments = append(out.Segments, seg)
		}
	}
	for _, b := range a.Bars {
		out.Bars = append(out.Bars, barJSON{Key: b.Key, Label: b.Label, Value: b.Float(), Kind: b.Kind, Color: b.Color})
	}
	return out
}

// analyzeRequest runs the session's analysis with query-string overrides
// (rate, policy, palette, hide_zeros, ...) applied but not saved.
func (s *Server) analyzeRequest(w http.ResponseWriter, r *http.Request) (session.Settings, services.Loaded, services.Analysis, bool) {
	form, err := ParseSettingsForm(newQueryParser(r.URL.Query()))
	if err != nil {
		writeJSONError(w, http.StatusUnprocessableEntity, "Valor no válido: "+err.Error())
		return session.Settings{}, services.Loaded{}, services.Analysis{}, false
	}
	st := s.loadSettings(w, r).Clone()
	form.Apply(&st)
	if form.Sheet != nil {
		st.Sheet = *form.Sheet
	}

	loaded, a, err := s.analyze(r.Context(), st)
	if err != nil {
		s.structured.LogError(r.Context(), "Workbook load failed", err, log.ComponentLoader, log.OpLoad, log.NewFields())
		writeJSONError(w, http.StatusInternalServerError, "No se pudo cargar el libro de trabajo")
		return st, loaded, a, false
	}
	return st, loaded, a, true
}

func (s *Server) handleAnalysisJSON(w http.ResponseWriter, r *http.Request) {
	_, loaded, a, ok := s.analyzeRequest(w, r)
	if !ok {
		return
	}
	status := http.StatusOK
	if a.Err != nil {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, newAnalysisResponse(loaded, a))
}

// handleFigureJSON returns the Plotly figure for the current settings.
func (s *Server) handleFigureJSON(w http.ResponseWriter, r *http.Request) {
	_, _, a, ok := s.analyzeRequest(w, r)
	if !ok {
		return
	}
	if a.Err != nil {
		writeJSONError(w, http.StatusUnprocessableEntity, a.Message())
		return
	}
	writeJSON(w, http.StatusOK, BuildFigure(a))
}

func (s *Server) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	st, _, a, ok := s.analyzeRequest(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := report.WritePDF(&buf, a); err != nil {
		s.structured.LogError(r.Context(), "PDF export failed", err, log.ComponentReport, log.OpExport, log.NewFields().WithSessionID(st.ID))
		InternalServerError("No se pudo generar el PDF").Write(w)
		return
	}
	s.exported(r, st, a, "pdf", buf.Len())

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.FileName(a)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = w.Write(buf.Bytes())
}

// handleExportCSV writes the per-category table. Numbers are unformatted so
// spreadsheets can recompute them; the BOM makes Excel read UTF-8.
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	st, _, a, ok := s.analyzeRequest(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	buf.WriteString("\ufeff")
	cw := csv.NewWriter(&buf)
	_ = cw.Write([]string{"Categoría", "VPN (USD)", "VPN (M USD)", "Impacto (%)", "Oculta"})
	for _, d := range a.Details {
		_ = cw.Write([]string{
			d.Label,
			strconv.FormatFloat(d.NPV, 'f', 2, 64),
			strconv.FormatFloat(d.NPVMillions, 'f', 4, 64),
			strconv.FormatFloat(d.ImpactPct, 'f', 2, 64),
			strconv.FormatBool(d.Hidden),
		})
	}
	sum := a.Summary
	_ = cw.Write([]string{"Total " + sum.BaselineName, strconv.FormatFloat(sum.Baseline, 'f', 2, 64), "", "", ""})
	_ = cw.Write([]string{"Total " + sum.TargetName, strconv.FormatFloat(sum.Target, 'f', 2, 64), "", "", ""})
	_ = cw.Write([]string{"Total implícito", strconv.FormatFloat(sum.Implied, 'f', 2, 64), "", "", ""})
	cw.Flush()
	if err := cw.Error(); err != nil {
		s.structured.LogError(r.Context(), "CSV export failed", err, log.ComponentReport, log.OpExport, log.NewFields().WithSessionID(st.ID))
		InternalServerError("No se pudo generar el CSV").Write(w)
		return
	}
	s.exported(r, st, a, "csv", buf.Len())

	name := strings.TrimSuffix(report.FileName(a), ".pdf") + ".csv"
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) exported(r *http.Request, st session.Settings, a services.Analysis, format string, size int) {
	atomic.AddInt64(&s.appMetrics.exports, 1)
	s.structured.LogExport(r.Context(), st.ID, format, a.RatePercent, size)
	if s.publisher == nil {
		return
	}
	err := s.publisher.PublishAnalysisExported(r.Context(), amqp.AnalysisExported{
		SessionID:   st.ID,
		Format:      format,
		Sheet:       a.Sheet,
		RatePercent: a.RatePercent,
		Policy:      a.Policy,
		Baseline:    a.Summary.Baseline,
		Target:      a.Summary.Target,
		Implied:     a.Summary.Implied,
	})
	if err != nil {
		// the download itself still succeeds
		s.logger.WarnContext(r.Context(), "Failed to publish export event",
			log.FieldError, err, log.FieldComponent, log.ComponentAMQP, log.FieldOperation, log.OpPublish)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
