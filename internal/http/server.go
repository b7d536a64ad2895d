package http

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"

	"ecoads/internal/amqp"
	"ecoads/internal/core"
	"ecoads/internal/log"
	"ecoads/internal/middleware/ratelimit"
	"ecoads/internal/middleware/security"
	"ecoads/internal/middleware/trace"
	"ecoads/internal/services"
	"ecoads/internal/session"
	appweb "ecoads/web"
)

// DefaultMaxUploadBytes bounds workbook uploads when Dependencies leaves it unset.
const DefaultMaxUploadBytes = 20 << 20

// ReadyCheck reports whether a dependency can serve traffic.
type ReadyCheck func(ctx context.Context) error

// Dependencies are the collaborators the HTTP layer drives.
type Dependencies struct {
	Workbooks *services.WorkbookService
	Analysis  *services.AnalysisService
	Sessions  session.Store
	// Publisher is optional; exports are announced on it when set.
	Publisher amqp.Publisher
	Logger    *log.Logger

	// DefaultRate, DefaultPolicy and DefaultPalette seed new sessions and resets.
	DefaultRate    float64
	DefaultPolicy  string
	DefaultPalette string

	MaxUploadBytes     int64
	RateLimitPerMinute int
	SecureCookies      bool
	ReadyChecks        map[string]ReadyCheck
}

type Server struct {
	http.Server
	templates *template.Template

	workbooks *services.WorkbookService
	analysis  *services.AnalysisService
	sessions  session.Store
	publisher amqp.Publisher

	defaults      session.Settings
	maxUpload     int64
	secureCookies bool
	readyChecks   map[string]ReadyCheck

	detector   *security.Detector
	limiter    *ratelimit.Limiter
	tracer     *trace.Middleware
	headers    *security.HeadersMiddleware
	logger     *log.Logger
	structured *log.StructuredLogger

	appMetrics   appMetrics
	shutdownOnce sync.Once
}

type appMetrics struct {
	uptime    time.Time
	uploads   int64
	fallbacks int64
	analyses  int64
	exports   int64
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, deps Dependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	if deps.Analysis == nil {
		deps.Analysis = services.NewAnalysisService(logger.Logger)
	}
	if deps.Sessions == nil {
		deps.Sessions = session.NewMemoryStore(12 * time.Hour)
	}
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = DefaultMaxUploadBytes
	}

	limiterCfg := ratelimit.DefaultConfig()
	if deps.RateLimitPerMinute > 0 {
		limiterCfg.RequestsPerMinute = deps.RateLimitPerMinute
	}

	s := &Server{
		workbooks:     deps.Workbooks,
		analysis:      deps.Analysis,
		sessions:      deps.Sessions,
		publisher:     deps.Publisher,
		defaults:      defaultSettings(deps),
		maxUpload:     deps.MaxUploadBytes,
		secureCookies: deps.SecureCookies,
		readyChecks:   deps.ReadyChecks,
		detector:      security.NewDetector(logger),
		limiter:       ratelimit.NewLimiter(limiterCfg),
		headers:       security.NewHeadersMiddleware(security.DefaultHeadersConfig()),
		logger:        logger,
		structured:    log.NewStructuredLogger(logger),
		appMetrics:    appMetrics{uptime: time.Now()},
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, logger)

	// Parse embedded templates at startup.
	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates", log.FieldError, err, log.FieldComponent, log.ComponentTemplate)
	} else {
		s.templates = t
	}

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func defaultSettings(deps Dependencies) session.Settings {
	d := session.Defaults()
	if deps.DefaultRate != 0 {
		d.RatePercent = session.ClampRate(deps.DefaultRate)
	}
	if p, err := core.ParseFinalPolicy(deps.DefaultPolicy); err == nil {
		d.Policy = p.Name()
	}
	if p, err := core.ParsePalette(deps.DefaultPalette); err == nil {
		d.Palette = p.Name
	}
	return d
}

func (s *Server) routes() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/help", s.handleHelp).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)
	r.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)

	// Workbook selection and settings; each responds with the workspace fragment.
	r.HandleFunc("/upload", s.handleUpload).Methods(http.MethodPost)
	r.HandleFunc("/remote", s.handleRemote).Methods(http.MethodPost)
	r.HandleFunc("/settings", s.handleSettings).Methods(http.MethodPost)
	r.HandleFunc("/rename", s.handleRename).Methods(http.MethodPost)
	r.HandleFunc("/reset", s.handleReset).Methods(http.MethodPost)
	r.HandleFunc("/ui/analysis", s.handleWorkspace).Methods(http.MethodGet)

	r.HandleFunc("/api/analysis", s.handleAnalysisJSON).Methods(http.MethodGet)
	r.HandleFunc("/api/waterfall", s.handleFigureJSON).Methods(http.MethodGet)
	r.HandleFunc("/export.pdf", s.handleExportPDF).Methods(http.MethodGet)
	r.HandleFunc("/export.csv", s.handleExportCSV).Methods(http.MethodGet)

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.PathPrefix("/static/").Handler(security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("Página no encontrada").Write(w)
	})

	// Wrapped outside the router so unmatched routes are traced and hardened too.
	return s.tracer.Middleware(s.detector.Middleware(s.headers.Middleware(s.limitWrites(r))))
}

// limitWrites applies the rate limiter to POST requests only; reads and
// static assets are never throttled.
func (s *Server) limitWrites(next http.Handler) http.Handler {
	limited := s.limiter.Middleware(s.detector.ExtractClientIP, s.onRateLimit)(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			limited.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path,
		log.FieldComponent, log.ComponentRateLimit)
	ErrorResponse(http.StatusTooManyRequests, "Demasiadas solicitudes. Espere un momento e inténtelo de nuevo.").Write(w)
}

// RateLimiter is swept by the cache manager along with the other stores.
func (s *Server) RateLimiter() *ratelimit.Limiter {
	return s.limiter
}

// Shutdown stops accepting requests; repeated calls return the first result.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// render executes a template into memory so a failure can still become a 500.
func (s *Server) render(name string, data any) ([]byte, error) {
	if s.templates == nil {
		return nil, errors.New("templates not loaded")
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *Server) renderFailed(w http.ResponseWriter, r *http.Request, name string, err error) {
	fields := log.NewFields().WithRequestID(trace.GetRequestID(r.Context()))
	fields["template"] = name
	s.structured.LogError(r.Context(), "Template execution failed", err, log.ComponentTemplate, log.OpRender, fields)
	http.Error(w, "No se pudo generar la página", http.StatusInternalServerError)
}

func (s *Server) countAnalysis() { atomic.AddInt64(&s.appMetrics.analyses, 1) }
