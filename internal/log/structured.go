package log

import (
	"context"
	"log/slog"
	"net/http"
)

// StructuredLogger writes the fixed-shape records of the request path. Each
// record names its own component, so the wrapped logger's tag is not added.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

// LogHTTPStart logs the start of an HTTP request
func (sl *StructuredLogger) LogHTTPStart(ctx context.Context, r *http.Request, clientIP, requestID string) {
	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent"), r.Header.Get("Referer")).
		WithClientIP(clientIP).
		WithRequestID(requestID).
		WithComponent(ComponentHTTP)

	sl.logger.base.Log(ctx, slog.LevelDebug, "HTTP request started", fields.ToSlice()...)
}

// LogHTTPEnd logs completion at info, warn for 4xx and error for 5xx.
func (sl *StructuredLogger) LogHTTPEnd(ctx context.Context, r *http.Request, statusCode int, durationMs int64, clientIP, requestID string) {
	level := slog.LevelInfo
	switch {
	case statusCode >= 500:
		level = slog.LevelError
	case statusCode >= 400:
		level = slog.LevelWarn
	}

	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, "", "").
		WithHTTPResponse(statusCode, durationMs, statusCode < 400).
		WithClientIP(clientIP).
		WithRequestID(requestID).
		WithComponent(ComponentHTTP)

	sl.logger.base.Log(ctx, level, "HTTP request completed", fields.ToSlice()...)
}

// LogWorkbookLoaded records a load; fallbacks to the sample are warnings.
func (sl *StructuredLogger) LogWorkbookLoaded(ctx context.Context, source, fingerprint, sheet string, synthetic bool, categories, periods int) {
	fields := NewFields().
		WithWorkbook(source, fingerprint, sheet, synthetic).
		WithShape(categories, periods).
		WithOperation(OpLoad).
		WithComponent(ComponentLoader)

	level := slog.LevelInfo
	if synthetic && source != "" {
		level = slog.LevelWarn
	}
	sl.logger.base.Log(ctx, level, "Workbook loaded", fields.ToSlice()...)
}

// LogAnalysis logs one recompute pass at debug level
func (sl *StructuredLogger) LogAnalysis(ctx context.Context, sessionID string, rate float64, policy, palette string, segments, hidden int) {
	fields := NewFields().
		WithSessionID(sessionID).
		WithAnalysis(rate, policy, palette).
		WithOperation(OpAnalyze).
		WithComponent(ComponentAnalysis).
		ToSlice()

	fields = append(fields, FieldSegments, segments, FieldHidden, hidden)

	sl.logger.base.Log(ctx, slog.LevelDebug, "Analysis computed", fields...)
}

// LogExport records a finished download.
func (sl *StructuredLogger) LogExport(ctx context.Context, sessionID, format string, rate float64, size int) {
	fields := NewFields().
		WithSessionID(sessionID).
		WithOperation(OpExport).
		WithComponent(ComponentReport).
		ToSlice()

	fields = append(fields, FieldFormat, format, FieldRate, rate, FieldBytes, size)

	sl.logger.base.Log(ctx, slog.LevelInfo, "Analysis exported", fields...)
}

// LogError logs an error with structured context
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, component string, operation string, fields LogFields) {
	allFields := fields.
		WithError(err).
		WithOperation(operation).
		WithComponent(component)

	sl.logger.base.Log(ctx, slog.LevelError, msg, allFields.ToSlice()...)
}
