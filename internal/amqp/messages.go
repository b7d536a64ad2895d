package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType names what happened; it is also the AMQP message type.
type EventType string

const (
	EventWorkbookLoaded   EventType = "workbook.loaded"
	EventAnalysisExported EventType = "analysis.exported"
)

// WorkbookLoaded is emitted after a workbook sheet was parsed, or replaced
// by the synthetic dataset.
type WorkbookLoaded struct {
	Source      string `json:"source"`
	Fingerprint string `json:"fingerprint"`
	Sheet       string `json:"sheet"`
	Synthetic   bool   `json:"synthetic"`
	Categories  int    `json:"categories"`
	Periods     int    `json:"periods"`
	Warning     string `json:"warning,omitempty"`
}

// AnalysisExported is emitted when a report leaves the system.
type AnalysisExported struct {
	SessionID   string  `json:"session_id"`
	Format      string  `json:"format"`
	Sheet       string  `json:"sheet"`
	RatePercent float64 `json:"rate_percent"`
	Policy      string  `json:"policy"`
	Baseline    float64 `json:"baseline"`
	Target      float64 `json:"target"`
	Implied     float64 `json:"implied"`
}

// Event is the envelope on the wire. Exactly one payload is set.
type Event struct {
	ID        string            `json:"id"`
	Type      EventType         `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Workbook  *WorkbookLoaded   `json:"workbook,omitempty"`
	Export    *AnalysisExported `json:"export,omitempty"`
}

func NewWorkbookLoadedEvent(p WorkbookLoaded) *Event {
	return &Event{ID: uuid.NewString(), Type: EventWorkbookLoaded, Timestamp: time.Now(), Workbook: &p}
}

func NewAnalysisExportedEvent(p AnalysisExported) *Event {
	return &Event{ID: uuid.NewString(), Type: EventAnalysisExported, Timestamp: time.Now(), Export: &p}
}

// ToJSON converts the event to JSON bytes
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// EventFromJSON decodes an event and checks its payload matches the type.
func EventFromJSON(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	switch e.Type {
	case EventWorkbookLoaded:
		if e.Workbook == nil {
			return nil, fmt.Errorf("event %s: missing workbook payload", e.ID)
		}
	case EventAnalysisExported:
		if e.Export == nil {
			return nil, fmt.Errorf("event %s: missing export payload", e.ID)
		}
	default:
		return nil, fmt.Errorf("event %s: unknown type %q", e.ID, e.Type)
	}
	return &e, nil
}
