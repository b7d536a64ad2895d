// This file implements the Builder Pattern for HTMX responses: a status, an
// HTML fragment and the HX-Trigger events app.js listens for.

package http

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// Events raised through HX-Trigger.
const (
	eventWorkbookLoaded  = "workbook:loaded"
	eventAnalysisUpdated = "analysis:updated"
	eventNotification    = "show-notification"
)

// Severity selects the toast style; each has its own display time.
type Severity string

const (
	NotifySuccess Severity = "success"
	NotifyWarning Severity = "warning"
	NotifyError   Severity = "error"
)

// Warnings usually mean the sample replaced an unreadable file, so they stay
// up longest.
var displayMillis = map[Severity]int{
	NotifySuccess: 3000,
	NotifyWarning: 8000,
	NotifyError:   5000,
}

// HTMXResponseBuilder collects one response before it is written.
type HTMXResponseBuilder struct {
	status int
	body   []byte
	events map[string]any
}

func NewHTMXResponse() *HTMXResponseBuilder {
	return &HTMXResponseBuilder{status: http.StatusOK, events: map[string]any{}}
}

func (b *HTMXResponseBuilder) Status(code int) *HTMXResponseBuilder {
	b.status = code
	return b
}

// TriggerWorkbookLoaded tells the page a new file or sheet is active.
func (b *HTMXResponseBuilder) TriggerWorkbookLoaded(fileName, sheet string, synthetic bool) *HTMXResponseBuilder {
	b.events[eventWorkbookLoaded] = map[string]any{
		"file":      fileName,
		"sheet":     sheet,
		"synthetic": synthetic,
	}
	return b
}

// TriggerAnalysisUpdated makes the chart script redraw from the swapped fragment.
func (b *HTMXResponseBuilder) TriggerAnalysisUpdated(ratePercent float64) *HTMXResponseBuilder {
	b.events[eventAnalysisUpdated] = map[string]float64{"rate": ratePercent}
	return b
}

// Notify shows a toast. Only the last notification of a response is kept.
func (b *HTMXResponseBuilder) Notify(sev Severity, message string) *HTMXResponseBuilder {
	b.events[eventNotification] = map[string]any{
		"type":     string(sev),
		"message":  message,
		"duration": displayMillis[sev],
	}
	return b
}

// BodyHTML sets an HTML fragment as the body.
func (b *HTMXResponseBuilder) BodyHTML(html []byte) *HTMXResponseBuilder {
	b.body = html
	return b
}

func (b *HTMXResponseBuilder) Write(w http.ResponseWriter) {
	if b.body != nil {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	}
	if len(b.events) > 0 {
		if raw, err := json.Marshal(b.events); err == nil {
			w.Header().Set("HX-Trigger", asciiJSON(raw))
		}
	}
	w.WriteHeader(b.status)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

// asciiJSON escapes non-ASCII runes; header values are read as Latin-1.
func asciiJSON(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, r := range string(b) {
		switch {
		case r < utf8.RuneSelf:
			sb.WriteRune(r)
		case r > 0xFFFF:
			r1, r2 := utf16.EncodeRune(r)
			fmt.Fprintf(&sb, `\u%04x\u%04x`, r1, r2)
		default:
			fmt.Fprintf(&sb, `\u%04x`, r)
		}
	}
	return sb.String()
}

// ErrorResponse renders message as an alert fragment and an error toast.
func ErrorResponse(statusCode int, message string) *HTMXResponseBuilder {
	return NewHTMXResponse().
		Status(statusCode).
		Notify(NotifyError, message).
		BodyHTML([]byte(`<div class="error" role="alert">` + template.HTMLEscapeString(message) + `</div>`))
}

func BadRequestError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func UnprocessableEntityError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

func RequestTooLargeError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusRequestEntityTooLarge, message)
}

func InternalServerError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

func NotFoundError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}
