package http

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"sync/atomic"
	"time"

	"ecoads/internal/log"
	"ecoads/internal/middleware/trace"
	"ecoads/internal/report"
	"ecoads/internal/services"
	"ecoads/internal/session"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	health := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).String(),
	}
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(health)
}

type pinger interface {
	Ping(ctx context.Context) error
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]interface{})
	fail := func(name string, err error) {
		checks[name] = fmt.Sprintf("failed: %v", err)
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}

	if s.templates == nil {
		fail("templates", fmt.Errorf("templates not loaded"))
	} else {
		checks["templates"] = "ok"
	}

	if s.workbooks == nil {
		fail("workbooks", fmt.Errorf("not configured"))
	} else {
		stats := s.workbooks.ParseCache().Stats()
		checks["parse_cache"] = map[string]interface{}{
			"entries": stats.Size,
			"status":  "ok",
		}
		checks["remote"] = map[bool]string{true: "configured", false: "not_configured"}[s.workbooks.HasRemote()]
	}

	if p, ok := s.sessions.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			fail("sessions", err)
		} else {
			checks["sessions"] = "ok"
		}
	} else {
		checks["sessions"] = "ok"
	}

	for name, check := range s.readyChecks {
		if err := check(ctx); err != nil {
			fail(name, err)
			continue
		}
		checks[name] = "ok"
	}

	checks["rate_limiter"] = map[string]interface{}{
		"active_clients": s.limiter.Clients(),
		"status":         "ok",
	}

	response := map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}
	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(response)
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	securityMetrics := s.detector.GetMetrics()
	traceMetrics := s.tracer.GetMetrics()

	uploads := atomic.LoadInt64(&s.appMetrics.uploads)
	fallbacks := atomic.LoadInt64(&s.appMetrics.fallbacks)
	analyses := atomic.LoadInt64(&s.appMetrics.analyses)
	exports := atomic.LoadInt64(&s.appMetrics.exports)
	uptime := time.Since(s.appMetrics.uptime)

	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "# HELP http_requests_total Total number of HTTP requests\n")
	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	fmt.Fprintf(w, "http_requests_total %d\n\n", traceMetrics.TotalRequests)

	fmt.Fprintf(w, "# HELP http_server_errors_total Responses with a 5xx status\n")
	fmt.Fprintf(w, "# TYPE http_server_errors_total counter\n")
	fmt.Fprintf(w, "http_server_errors_total %d\n\n", traceMetrics.ServerErrors)

	fmt.Fprintf(w, "# HELP http_response_time_avg_microseconds Average response time\n")
	fmt.Fprintf(w, "# TYPE http_response_time_avg_microseconds gauge\n")
	fmt.Fprintf(w, "http_response_time_avg_microseconds %d\n\n", traceMetrics.AverageResponseTime)

	fmt.Fprintf(w, "# HELP workbook_uploads_total Workbooks uploaded\n")
	fmt.Fprintf(w, "# TYPE workbook_uploads_total counter\n")
	fmt.Fprintf(w, "workbook_uploads_total %d\n\n", uploads)

	fmt.Fprintf(w, "# HELP workbook_fallbacks_total Loads replaced by the sample dataset\n")
	fmt.Fprintf(w, "# TYPE workbook_fallbacks_total counter\n")
	fmt.Fprintf(w, "workbook_fallbacks_total %d\n\n", fallbacks)

	fmt.Fprintf(w, "# HELP analyses_total Recompute passes\n")
	fmt.Fprintf(w, "# TYPE analyses_total counter\n")
	fmt.Fprintf(w, "analyses_total %d\n\n", analyses)

	fmt.Fprintf(w, "# HELP exports_total Reports exported\n")
	fmt.Fprintf(w, "# TYPE exports_total counter\n")
	fmt.Fprintf(w, "exports_total %d\n\n", exports)

	if s.workbooks != nil {
		stats := s.workbooks.ParseCache().Stats()
		fmt.Fprintf(w, "# HELP parse_cache_hits_total Parse cache hits\n")
		fmt.Fprintf(w, "# TYPE parse_cache_hits_total counter\n")
		fmt.Fprintf(w, "parse_cache_hits_total %d\n\n", stats.Hits)

		fmt.Fprintf(w, "# HELP parse_cache_misses_total Parse cache misses\n")
		fmt.Fprintf(w, "# TYPE parse_cache_misses_total counter\n")
		fmt.Fprintf(w, "parse_cache_misses_total %d\n\n", stats.Misses)

		fmt.Fprintf(w, "# HELP parse_cache_entries Current parse cache entries\n")
		fmt.Fprintf(w, "# TYPE parse_cache_entries gauge\n")
		fmt.Fprintf(w, "parse_cache_entries %d\n\n", stats.Size)

		fmt.Fprintf(w, "# HELP parse_cache_viewers Sessions showing a cached workbook\n")
		fmt.Fprintf(w, "# TYPE parse_cache_viewers gauge\n")
		fmt.Fprintf(w, "parse_cache_viewers %d\n\n", stats.Viewers)
	}

	fmt.Fprintf(w, "# HELP rate_limit_hits_total Total rate limit hits\n")
	fmt.Fprintf(w, "# TYPE rate_limit_hits_total counter\n")
	fmt.Fprintf(w, "rate_limit_hits_total %d\n\n", s.limiter.Rejected())

	fmt.Fprintf(w, "# HELP active_rate_limit_clients Currently tracked rate limit clients\n")
	fmt.Fprintf(w, "# TYPE active_rate_limit_clients gauge\n")
	fmt.Fprintf(w, "active_rate_limit_clients %d\n\n", s.limiter.Clients())

	fmt.Fprintf(w, "# HELP suspicious_requests_total Total suspicious requests detected\n")
	fmt.Fprintf(w, "# TYPE suspicious_requests_total counter\n")
	fmt.Fprintf(w, "suspicious_requests_total %d\n\n", securityMetrics.SuspiciousRequests)

	fmt.Fprintf(w, "# HELP blocked_requests_total Requests rejected by method\n")
	fmt.Fprintf(w, "# TYPE blocked_requests_total counter\n")
	fmt.Fprintf(w, "blocked_requests_total %d\n\n", securityMetrics.BlockedRequests)

	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n\n", uptime.Seconds())
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		s.logger.ErrorContext(r.Context(), "Templates not loaded",
			log.FieldPath, r.URL.Path,
			log.FieldComponent, log.ComponentTemplate,
			"error_type", log.ErrorTypeConfiguration)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	st := s.loadSettings(w, r)
	view, err := s.workspaceFor(r.Context(), st)
	if err != nil {
		s.loadFailed(w, r, err)
		return
	}

	body, err := s.render("index.html", pageView{Workspace: view})
	if err != nil {
		s.renderFailed(w, r, "index.html", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(body)
}

// handleWorkspace re-renders the workspace fragment from the stored settings.
func (s *Server) handleWorkspace(w http.ResponseWriter, r *http.Request) {
	st := s.loadSettings(w, r)
	s.respondWorkspace(w, r, st, NewHTMXResponse())
}

func (s *Server) handleHelp(w http.ResponseWriter, r *http.Request) {
	help, err := report.RenderHelp()
	if err != nil {
		s.structured.LogError(r.Context(), "Help rendering failed", err, log.ComponentTemplate, log.OpRender, log.NewFields())
		InternalServerError("No se pudo mostrar la ayuda").Write(w)
		return
	}
	body, err := s.render("help.html", struct{ Content template.HTML }{help})
	if err != nil {
		s.renderFailed(w, r, "help.html", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(body)
}

// analyze reloads the session's workbook and runs one recompute pass.
func (s *Server) analyze(ctx context.Context, st session.Settings) (services.Loaded, services.Analysis, error) {
	loaded, err := s.workbooks.Reload(ctx, st.Fingerprint, st.Sheet)
	if err != nil {
		return services.Loaded{}, services.Analysis{}, err
	}
	s.workbooks.View(st.ID, loaded)
	return loaded, s.analyzeLoaded(ctx, st, loaded), nil
}

func (s *Server) analyzeLoaded(ctx context.Context, st session.Settings, loaded services.Loaded) services.Analysis {
	a := s.analysis.Analyze(loaded.Dataset, st)
	s.countAnalysis()
	s.structured.LogAnalysis(ctx, st.ID, a.RatePercent, a.Policy, a.Palette.Name,
		len(a.Reconciliation.Segments), len(a.Reconciliation.Hidden))
	return a
}

func (s *Server) workspaceFor(ctx context.Context, st session.Settings) (workspaceView, error) {
	loaded, a, err := s.analyze(ctx, st)
	if err != nil {
		return workspaceView{}, err
	}
	return newWorkspaceView(st, loaded, a, s.workbooks.HasRemote()), nil
}

// respondWorkspace reloads and renders the workspace fragment.
func (s *Server) respondWorkspace(w http.ResponseWriter, r *http.Request, st session.Settings, b *HTMXResponseBuilder) {
	loaded, err := s.workbooks.Reload(r.Context(), st.Fingerprint, st.Sheet)
	if err != nil {
		s.loadFailed(w, r, err)
		return
	}
	s.writeWorkspace(w, r, st, loaded, b)
}

// writeWorkspace renders the fragment for an already loaded workbook. A
// computation error keeps the previous anchors on screen and answers 422.
func (s *Server) writeWorkspace(w http.ResponseWriter, r *http.Request, st session.Settings, loaded services.Loaded, b *HTMXResponseBuilder) {
	s.workbooks.View(st.ID, loaded)
	a := s.analyzeLoaded(r.Context(), st, loaded)
	view := newWorkspaceView(st, loaded, a, s.workbooks.HasRemote())

	body, err := s.render("workspace", view)
	if err != nil {
		s.renderFailed(w, r, "workspace", err)
		return
	}
	if a.Err != nil {
		b.Status(http.StatusUnprocessableEntity).Notify(NotifyError, a.Message())
	}
	b.TriggerAnalysisUpdated(a.RatePercent).BodyHTML(body).Write(w)
}

func (s *Server) loadFailed(w http.ResponseWriter, r *http.Request, err error) {
	s.structured.LogError(r.Context(), "Workbook load failed", err, log.ComponentLoader, log.OpLoad,
		log.NewFields().WithRequestID(trace.GetRequestID(r.Context())))
	InternalServerError("No se pudo cargar el libro de trabajo").Write(w)
}
