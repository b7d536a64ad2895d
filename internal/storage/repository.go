package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ecoads/internal/amqp"
	"ecoads/internal/session"

	_ "modernc.org/sqlite"
)

// DefaultDSN is a process-local database that vanishes on exit.
const DefaultDSN = "file:ecoads?mode=memory&cache=shared"

// SQLiteRepository stores session settings as JSON documents and keeps an
// audit trail of broker events.
type SQLiteRepository struct {
	db     *sql.DB
	ttl    time.Duration
	now    func() time.Time
	schema uint
}

// Ensure interface conformance
var _ session.Store = (*SQLiteRepository)(nil)

// NewSQLiteRepository opens dsn (a file path or a file: URI) and migrates it.
// Sessions idle for longer than ttl expire; ttl <= 0 keeps them forever.
func NewSQLiteRepository(dsn string, ttl time.Duration) (*SQLiteRepository, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	if !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// one writer; also pins the shared in-memory database
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := migrateSchema(dsn)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Debug("Database schema ready", "dsn", dsn, "version", version)

	return &SQLiteRepository{db: db, ttl: ttl, now: time.Now, schema: version}, nil
}

// SchemaVersion is the migration version the database was brought to.
func (r *SQLiteRepository) SchemaVersion() uint {
	return r.schema
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (session.Settings, error) {
	var payload string
	var updated int64
	err := r.db.QueryRowContext(ctx,
		`SELECT payload, updated_at FROM sessions WHERE id = ?`, id).Scan(&payload, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Settings{}, session.ErrNotFound
	}
	if err != nil {
		return session.Settings{}, fmt.Errorf("get session: %w", err)
	}
	if r.ttl > 0 && r.now().Sub(time.Unix(0, updated)) > r.ttl {
		return session.Settings{}, session.ErrNotFound
	}

	var s session.Settings
	if err := json.Unmarshal([]byte(payload), &s); err != nil {
		return session.Settings{}, fmt.Errorf("decode session %s: %w", id, err)
	}
	return s, nil
}

func (r *SQLiteRepository) Save(ctx context.Context, s session.Settings) error {
	s.UpdatedAt = r.now()
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, payload, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		s.ID, string(payload), s.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// CleanExpired deletes idle sessions and returns how many went.
func (r *SQLiteRepository) CleanExpired() int {
	if r.ttl <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.ttl).UnixNano()
	res, err := r.db.Exec(`DELETE FROM sessions WHERE updated_at < ?`, cutoff)
	if err != nil {
		slog.Error("Failed to clean expired sessions", "component", "storage", "error", err)
		return 0
	}
	n, _ := res.RowsAffected()
	return int(n)
}

// RecordEvent stores a broker event; redelivered events are ignored.
func (r *SQLiteRepository) RecordEvent(ctx context.Context, e *amqp.Event) error {
	payload, err := e.ToJSON()
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	var source, sheet string
	var synthetic bool
	switch {
	case e.Workbook != nil:
		source, sheet, synthetic = e.Workbook.Source, e.Workbook.Sheet, e.Workbook.Synthetic
	case e.Export != nil:
		sheet = e.Export.Sheet
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO workbook_events (id, type, source, sheet, synthetic, payload, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		e.ID, string(e.Type), source, sheet, synthetic, string(payload), e.Timestamp.UnixNano())
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

// EventCounts returns how many events of each type were recorded.
func (r *SQLiteRepository) EventCounts(ctx context.Context) (map[amqp.EventType]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT type, COUNT(*) FROM workbook_events GROUP BY type`)
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}
	defer rows.Close()

	out := make(map[amqp.EventType]int)
	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, fmt.Errorf("scan event count: %w", err)
		}
		out[amqp.EventType(typ)] = n
	}
	return out, rows.Err()
}
