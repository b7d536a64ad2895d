package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"ecoads/internal/amqp"
	"ecoads/internal/session"
)

func newTestRepo(t *testing.T, ttl time.Duration) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "sessions.db"), ttl)
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteRepository_SaveGetDelete(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t, time.Hour)

	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("missing: err = %v", err)
	}

	s := session.Defaults()
	s.RatePercent = 5.5
	s.HideZeros = true
	s.Rename("Seguros", "Seguros flota")
	hi := 12e6
	s.AxisMax = &hi
	s.SelectWorkbook("abc", "Ev. Eco ADS.xlsx", "Evaluación")

	if err := repo.Save(ctx, s); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := repo.Get(ctx, s.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.RatePercent != 5.5 || !got.HideZeros || got.Renames["Seguros"] != "Seguros flota" {
		t.Errorf("round trip lost fields: %+v", got)
	}
	if got.AxisMax == nil || *got.AxisMax != hi || got.AxisMin != nil {
		t.Errorf("axis = %v/%v", got.AxisMin, got.AxisMax)
	}
	if got.Sheet != "Evaluación" || got.Fingerprint != "abc" {
		t.Errorf("workbook = %+v", got)
	}

	s.RatePercent = 9
	if err := repo.Save(ctx, s); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, _ = repo.Get(ctx, s.ID)
	if got.RatePercent != 9 {
		t.Errorf("upsert rate = %v", got.RatePercent)
	}

	if err := repo.Delete(ctx, s.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.Get(ctx, s.ID); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("after delete: err = %v", err)
	}
}

func TestSQLiteRepository_Expiry(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t, time.Hour)
	now := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	old, fresh := session.Defaults(), session.Defaults()
	if err := repo.Save(ctx, old); err != nil {
		t.Fatal(err)
	}
	now = now.Add(90 * time.Minute)
	if err := repo.Save(ctx, fresh); err != nil {
		t.Fatal(err)
	}

	if _, err := repo.Get(ctx, old.ID); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expired session returned: %v", err)
	}
	if n := repo.CleanExpired(); n != 1 {
		t.Fatalf("cleaned %d, want 1", n)
	}
	if _, err := repo.Get(ctx, fresh.ID); err != nil {
		t.Fatalf("fresh session: %v", err)
	}
}

func TestSQLiteRepository_Events(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t, 0)

	wb := amqp.NewWorkbookLoadedEvent(amqp.WorkbookLoaded{Source: "a.xlsx", Sheet: "S", Categories: 3, Periods: 4})
	ex := amqp.NewAnalysisExportedEvent(amqp.AnalysisExported{Format: "pdf", Sheet: "S"})
	for _, e := range []*amqp.Event{wb, ex, wb} {
		if err := repo.RecordEvent(ctx, e); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	counts, err := repo.EventCounts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts[amqp.EventWorkbookLoaded] != 1 || counts[amqp.EventAnalysisExported] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

func TestSQLiteRepository_MigrationsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twice.db")
	for i := 0; i < 2; i++ {
		repo, err := NewSQLiteRepository(path, time.Hour)
		if err != nil {
			t.Fatalf("open #%d: %v", i+1, err)
		}
		if v := repo.SchemaVersion(); v != 2 {
			t.Errorf("open #%d: schema version = %d, want 2", i+1, v)
		}
		repo.Close()
	}
}
