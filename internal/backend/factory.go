package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"ecoads/internal/amqp"
	"ecoads/internal/session"
	"ecoads/internal/sheets"
	"ecoads/internal/sheets/excel"
	gsheet "ecoads/internal/sheets/google"
	"ecoads/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger.With("component", "backend"),
	}
}

// CreateBackend implements Factory.CreateBackend. The session store and the
// layout are required; Google and AMQP degrade to disabled with a warning.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	layout, err := sheets.LoadLayout(config.LayoutFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load workbook layout: %w", err)
	}
	files, err := excel.New(layout)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize workbook loader: %w", err)
	}

	sessions, err := f.createSessionStore(config)
	if err != nil {
		return nil, err
	}

	b := Backend{Sessions: sessions, Layout: layout, Files: files}
	closers := []func() error{sessions.Close}

	if config.HasGoogle() {
		creds := gsheet.Credentials{JSON: config.GoogleServiceAccountJSON, File: config.GoogleServiceAccountFile}
		cli, err := gsheet.New(ctx, config.GoogleSpreadsheetID, creds, layout)
		if err != nil {
			f.logger.Warn("Failed to initialize Google Sheets client, remote spreadsheets disabled", "error", err)
		} else {
			b.Remote = cli
			f.logger.Info("Initialized Google Sheets source", "default_spreadsheet", cli.SpreadsheetID())
		}
	}

	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
		} else {
			b.Publisher = client
			b.Health = client.Healthy
			closers = append(closers, client.Close)
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	f.logger.Info("Initialized backend",
		"sessions", config.Type,
		"layout_file", config.LayoutFile,
		"remote_enabled", b.Remote != nil,
		"amqp_enabled", b.Publisher != nil)

	return &BackendResult{
		Backend: b,
		Cleanup: func() error {
			var errs []error
			for i := len(closers) - 1; i >= 0; i-- {
				errs = append(errs, closers[i]())
			}
			return errors.Join(errs...)
		},
	}, nil
}

func (f *DefaultFactory) createSessionStore(config Config) (session.Store, error) {
	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDSN, config.SessionTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite session store", "dsn", config.SQLiteDSN)
		return repo, nil
	case MemoryBackend:
		return session.NewMemoryStore(config.SessionTTL), nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}
