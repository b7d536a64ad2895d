package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"ecoads/internal/core"
	ports "ecoads/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Client reads the evaluation layout from a Google spreadsheet. The
// spreadsheet ID comes from Source.Name, falling back to the configured one.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	layout        ports.Layout

	// sheet titles are cached briefly; listing is a separate API call.
	mu                 sync.Mutex
	cachedTitles       map[string][]string
	cacheExpiresAt     map[string]time.Time
	cacheValidDuration time.Duration
}

// Ensure interface conformance
var _ ports.Loader = (*Client)(nil)

// Credentials selects how the service account is provided.
type Credentials struct {
	JSON string
	File string
}

// NewFromEnv creates a Sheets client from environment variables.
// Optional: GOOGLE_SPREADSHEET_ID as the default spreadsheet.
// Auth: GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_APPLICATION_CREDENTIALS.
func NewFromEnv(ctx context.Context, layout ports.Layout) (*Client, error) {
	creds := Credentials{
		JSON: strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")),
		File: strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE")),
	}
	if creds.JSON == "" && creds.File == "" {
		creds.File = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	return New(ctx, strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID")), creds, layout)
}

// New creates a Sheets client with explicit credentials.
func New(ctx context.Context, spreadsheetID string, creds Credentials, layout ports.Layout) (*Client, error) {
	if _, err := layout.Resolve(); err != nil {
		return nil, err
	}
	svc, err := newSheetsService(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newClient(svc, spreadsheetID, layout), nil
}

func newClient(svc *gsheet.Service, spreadsheetID string, layout ports.Layout) *Client {
	return &Client{
		svc:                svc,
		spreadsheetID:      spreadsheetID,
		layout:             layout,
		cachedTitles:       make(map[string][]string),
		cacheExpiresAt:     make(map[string]time.Time),
		cacheValidDuration: 2 * time.Minute,
	}
}

// SpreadsheetID returns the default spreadsheet.
func (c *Client) SpreadsheetID() string { return c.spreadsheetID }

// newSheetsService initializes a read-only Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context, creds Credentials) (*gsheet.Service, error) {
	var credentialsJSON []byte
	var err error

	switch {
	case creds.JSON != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(creds.JSON)
	case creds.File != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", creds.File)
		credentialsJSON, err = os.ReadFile(creds.File)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope),
		goption.WithHTTPClient(newHTTPClientWithPooling()))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created successfully")
	return service, nil
}

// newHTTPClientWithPooling creates an HTTP client for the Sheets API with
// connection pooling and bounded timeouts.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   5,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}

func (c *Client) idFor(src ports.Source) string {
	if id := strings.TrimSpace(src.Name); id != "" {
		return id
	}
	return c.spreadsheetID
}

// Sheets lists the sheet titles of the spreadsheet in tab order.
func (c *Client) Sheets(ctx context.Context, src ports.Source) ([]string, error) {
	id := c.idFor(src)
	if id == "" {
		return nil, &ports.LoadError{Source: id, Err: errors.New("missing spreadsheet ID")}
	}
	if titles, ok := c.cached(id); ok {
		return titles, nil
	}
	if c.svc == nil {
		return nil, &ports.LoadError{Source: id, Err: errors.New("sheets service not initialized")}
	}

	resp, err := c.svc.Spreadsheets.Get(id).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return nil, &ports.LoadError{Source: id, Err: fmt.Errorf("get spreadsheet: %w", err)}
	}
	titles := make([]string, 0, len(resp.Sheets))
	for _, s := range resp.Sheets {
		if s.Properties != nil {
			titles = append(titles, s.Properties.Title)
		}
	}
	c.store(id, titles)
	return titles, nil
}

// Load reads the layout's bounding rectangle with a single values request.
func (c *Client) Load(ctx context.Context, src ports.Source, sheet string) (core.Dataset, error) {
	id := c.idFor(src)
	if strings.TrimSpace(sheet) == "" {
		titles, err := c.Sheets(ctx, src)
		if err != nil {
			return core.Dataset{}, err
		}
		if len(titles) == 0 {
			return core.Dataset{}, &ports.LoadError{Source: id, Err: ports.ErrNoSheets}
		}
		sheet = titles[0]
	}

	resolved, err := c.layout.Resolve()
	if err != nil {
		return core.Dataset{}, err
	}
	a1, err := resolved.A1Range()
	if err != nil {
		return core.Dataset{}, err
	}
	rng := fmt.Sprintf("'%s'!%s", strings.ReplaceAll(sheet, "'", "''"), a1)

	if c.svc == nil {
		return core.Dataset{}, &ports.LoadError{Source: id, Sheet: sheet, Err: errors.New("sheets service not initialized")}
	}
	resp, err := c.svc.Spreadsheets.Values.Get(id, rng).
		ValueRenderOption("UNFORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return core.Dataset{}, &ports.LoadError{Source: id, Sheet: sheet, Err: fmt.Errorf("get values %s: %w", rng, err)}
	}

	minRow, minCol, _, _ := resolved.Bounds()
	ds, err := ports.Extract(valuesGrid(resp.Values, minRow, minCol), c.layout)
	ds.Source, ds.Sheet = id, sheet
	return ds, err
}

func (c *Client) cached(id string) ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	titles, ok := c.cachedTitles[id]
	if !ok || time.Now().After(c.cacheExpiresAt[id]) {
		return nil, false
	}
	return titles, true
}

func (c *Client) store(id string, titles []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cachedTitles[id] = titles
	c.cacheExpiresAt[id] = time.Now().Add(c.cacheValidDuration)
}

// InvalidateSheets forgets cached sheet titles for a spreadsheet.
func (c *Client) InvalidateSheets(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cachedTitles, id)
	delete(c.cacheExpiresAt, id)
}
