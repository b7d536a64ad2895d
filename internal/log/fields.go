package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldSessionID  = "session_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldQuery      = "query"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldReferer    = "referer"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldOperation  = "operation"

	FieldSource      = "source"
	FieldFingerprint = "fingerprint"
	FieldSheet       = "sheet"
	FieldSynthetic   = "synthetic"
	FieldCategories  = "categories"
	FieldPeriods     = "periods"
	FieldRate        = "rate_percent"
	FieldPolicy      = "policy"
	FieldPalette     = "palette"
	FieldSegments    = "segments"
	FieldHidden      = "hidden"
	FieldFormat      = "format"
	FieldBytes       = "bytes"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentLoader    = "loader"
	ComponentCache     = "cache"
	ComponentSession   = "session"
	ComponentAnalysis  = "analysis"
	ComponentReport    = "report"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentAudit     = "audit"
	ComponentSecurity  = "security"
	ComponentRateLimit = "rate_limit"
	ComponentTrace     = "trace"
	ComponentBackend   = "backend"
	ComponentTemplate  = "template"
	ComponentCLI       = "cli"
)

// Operations defines standard operation names
const (
	OpLoad     = "load"
	OpAnalyze  = "analyze"
	OpExport   = "export"
	OpRename   = "rename"
	OpReset    = "reset"
	OpSettings = "settings"
	OpCleanup  = "cleanup"
	OpPublish  = "publish"
	OpValidate = "validate"
	OpRender   = "render"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeLoad          = "load_error"
	ErrorTypeComputation   = "computation_error"
	ErrorTypeNetwork       = "network_error"
	ErrorTypeNotFound      = "not_found_error"
	ErrorTypeInternal      = "internal_error"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

func (f LogFields) WithSessionID(id string) LogFields {
	if id != "" {
		f[FieldSessionID] = id
	}
	return f
}

func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithError adds error field; nil errors are skipped
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithWorkbook adds the identity of a loaded workbook sheet
func (f LogFields) WithWorkbook(source, fingerprint, sheet string, synthetic bool) LogFields {
	f[FieldSource] = source
	f[FieldFingerprint] = shortFingerprint(fingerprint)
	f[FieldSheet] = sheet
	f[FieldSynthetic] = synthetic
	return f
}

// WithShape adds dataset dimensions
func (f LogFields) WithShape(categories, periods int) LogFields {
	f[FieldCategories] = categories
	f[FieldPeriods] = periods
	return f
}

// WithAnalysis adds the knobs of one recompute pass
func (f LogFields) WithAnalysis(rate float64, policy, palette string) LogFields {
	f[FieldRate] = rate
	f[FieldPolicy] = policy
	f[FieldPalette] = palette
	return f
}

// WithHTTPRequest adds HTTP request fields
func (f LogFields) WithHTTPRequest(method, path, query, userAgent, referer string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	f[FieldUserAgent] = userAgent
	f[FieldReferer] = referer
	return f
}

// WithHTTPResponse adds HTTP response fields
func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
