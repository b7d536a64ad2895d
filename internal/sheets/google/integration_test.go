//go:build integration

package google

import (
	"context"
	"os"
	"testing"
	"time"

	ports "ecoads/internal/sheets"
)

// Integration tests require a real spreadsheet shared with the service account.
// Run with: go test -tags=integration ./internal/sheets/google

func TestIntegration_LoadEvaluationSheet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	if os.Getenv("GOOGLE_SPREADSHEET_ID") == "" {
		t.Skip("GOOGLE_SPREADSHEET_ID not set, skipping integration test")
	}
	if os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON") == "" &&
		os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE") == "" &&
		os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
		t.Skip("service account credentials not configured, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := NewFromEnv(ctx, ports.DefaultLayout())
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	titles, err := client.Sheets(ctx, ports.Source{})
	if err != nil {
		t.Fatalf("failed to list sheets: %v", err)
	}
	if len(titles) == 0 {
		t.Fatal("spreadsheet has no sheets")
	}
	t.Logf("sheets: %v", titles)

	ds, err := client.Load(ctx, ports.Source{}, os.Getenv("GOOGLE_SHEET_NAME"))
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	t.Logf("loaded %d categories over %d periods from %q", len(ds.Categories), len(ds.Periods), ds.Sheet)
	for _, c := range ds.Categories {
		if len(c.CashFlows) != len(ds.Periods) {
			t.Errorf("category %q has %d flows, want %d", c.Key, len(c.CashFlows), len(ds.Periods))
		}
	}
}
