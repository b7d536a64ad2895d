package google

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	ports "ecoads/internal/sheets"
)

func TestNewFromEnv_MissingCredentials(t *testing.T) {
	for _, k := range []string{"GOOGLE_SERVICE_ACCOUNT_JSON", "GOOGLE_SERVICE_ACCOUNT_FILE", "GOOGLE_APPLICATION_CREDENTIALS"} {
		t.Setenv(k, "")
	}
	t.Setenv("GOOGLE_SPREADSHEET_ID", "test-id")

	_, err := NewFromEnv(context.Background(), ports.DefaultLayout())
	if err == nil {
		t.Fatal("expected error for missing credentials")
	}
	if !strings.Contains(err.Error(), "missing service account credentials") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNewFromEnv_MissingCredentialsFile(t *testing.T) {
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "/nonexistent/sa.json")

	_, err := NewFromEnv(context.Background(), ports.DefaultLayout())
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("expected read error, got %v", err)
	}
}

func TestNew_RejectsBadLayout(t *testing.T) {
	bad := ports.DefaultLayout()
	bad.Periods = "D144"
	_, err := New(context.Background(), "id", Credentials{JSON: "{}"}, bad)
	if err == nil || !strings.Contains(err.Error(), "invalid layout") {
		t.Fatalf("expected layout error, got %v", err)
	}
}

func TestClient_MissingSpreadsheetID(t *testing.T) {
	c := newClient(nil, "", ports.DefaultLayout())

	_, err := c.Sheets(context.Background(), ports.Source{})
	var le *ports.LoadError
	if !errors.As(err, &le) {
		t.Fatalf("expected *LoadError, got %v", err)
	}
	if !strings.Contains(err.Error(), "missing spreadsheet ID") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestClient_NilServiceFailsAsLoadError(t *testing.T) {
	c := newClient(nil, "default-id", ports.DefaultLayout())

	_, err := c.Load(context.Background(), ports.Source{}, "Evaluación")
	var le *ports.LoadError
	if !errors.As(err, &le) {
		t.Fatalf("expected *LoadError, got %v", err)
	}
	if le.Source != "default-id" || le.Sheet != "Evaluación" {
		t.Errorf("load error = %+v", le)
	}
}

func TestClient_SourceOverridesDefaultID(t *testing.T) {
	c := newClient(nil, "default-id", ports.DefaultLayout())
	if got := c.idFor(ports.Source{Name: " other "}); got != "other" {
		t.Errorf("idFor = %q", got)
	}
	if got := c.idFor(ports.Source{}); got != "default-id" {
		t.Errorf("idFor = %q", got)
	}
}

func TestClient_SheetTitleCache(t *testing.T) {
	c := newClient(nil, "id", ports.DefaultLayout())
	c.cacheValidDuration = 50 * time.Millisecond

	if _, ok := c.cached("id"); ok {
		t.Fatal("cache should start empty")
	}
	c.store("id", []string{"Evaluación", "Notas"})

	// served from cache even though the service is nil
	titles, err := c.Sheets(context.Background(), ports.Source{})
	if err != nil || len(titles) != 2 {
		t.Fatalf("cached titles = %v (err=%v)", titles, err)
	}

	c.InvalidateSheets("id")
	if _, ok := c.cached("id"); ok {
		t.Fatal("cache should be empty after invalidation")
	}

	c.store("id", []string{"A"})
	time.Sleep(80 * time.Millisecond)
	if _, ok := c.cached("id"); ok {
		t.Error("cache should be expired after TTL")
	}
}
