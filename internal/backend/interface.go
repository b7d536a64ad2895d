package backend

import (
	"context"
	"time"

	"ecoads/internal/amqp"
	"ecoads/internal/session"
	"ecoads/internal/sheets"
)

// Backend bundles the collaborators the server is built from.
type Backend struct {
	Sessions session.Store
	Layout   sheets.Layout
	// Files reads uploaded workbooks.
	Files sheets.Loader
	// Remote reads Google spreadsheets; nil when no credentials are configured.
	Remote sheets.Loader
	// Publisher is nil when AMQP is disabled or unreachable at startup.
	Publisher amqp.Publisher
	// Health reports broker state for readiness; nil without a publisher.
	Health func(ctx context.Context) error
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the backend instance and optional cleanup function
type BackendResult struct {
	Backend Backend
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Session store type
	Type       BackendType
	SQLiteDSN  string
	SessionTTL time.Duration

	// Optional YAML overriding the fixed workbook layout
	LayoutFile string

	// AMQP; empty URL disables events
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets; no credentials means no remote source
	GoogleSpreadsheetID      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
}

// BackendType selects where session settings live.
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
