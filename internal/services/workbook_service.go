package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ecoads/internal/amqp"
	"ecoads/internal/cache"
	"ecoads/internal/core"
	"ecoads/internal/sheets"
	"ecoads/internal/sheets/memory"
)

// RemotePrefix marks fingerprints of remote spreadsheets.
const RemotePrefix = "gsheet:"

// Loaded is the outcome of a workbook load as the UI needs it.
type Loaded struct {
	Dataset     core.Dataset
	Fingerprint string
	FileName    string
	Sheets      []string
	Sheet       string
	// Warning is set when the dataset is not what the user asked for.
	Warning string
	Cached  bool

	key cache.Key
}

// WorkbookConfig sizes the caches of WorkbookService.
type WorkbookConfig struct {
	ParseCacheSize int
	ParseCacheTTL  time.Duration
	UploadTTL      time.Duration
}

func DefaultWorkbookConfig() WorkbookConfig {
	return WorkbookConfig{ParseCacheSize: 32, ParseCacheTTL: 30 * time.Minute, UploadTTL: 12 * time.Hour}
}

// WorkbookService loads workbooks through the parse cache and falls back to
// the synthetic dataset when a source cannot be read.
type WorkbookService struct {
	files     sheets.Loader
	remote    sheets.Loader
	parsed    *cache.ParseCache
	uploads   *cache.LRUCache[sheets.Source]
	publisher amqp.Publisher
	logger    *slog.Logger
}

// NewWorkbookService wires the loaders. remote and publisher may be nil.
func NewWorkbookService(files, remote sheets.Loader, publisher amqp.Publisher, cfg WorkbookConfig, logger *slog.Logger) *WorkbookService {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkbookService{
		files:     files,
		remote:    remote,
		parsed:    cache.NewParseCache(cfg.ParseCacheSize, cfg.ParseCacheTTL),
		uploads:   cache.NewLRUCache[sheets.Source](cfg.ParseCacheSize, cfg.UploadTTL),
		publisher: publisher,
		logger:    logger.With("component", "loader"),
	}
}

// ParseCache exposes the cache for cleanup registration and metrics.
func (s *WorkbookService) ParseCache() *cache.ParseCache { return s.parsed }

// Uploads exposes the upload store for cleanup registration.
func (s *WorkbookService) Uploads() cache.Cleaner { return s.uploads }

// HasRemote reports whether a spreadsheet backend is configured.
func (s *WorkbookService) HasRemote() bool { return s.remote != nil }

// Sample returns the synthetic dataset as a load result.
func (s *WorkbookService) Sample() Loaded {
	ds := memory.Sample()
	return Loaded{Dataset: ds, Sheets: []string{ds.Sheet}, Sheet: ds.Sheet}
}

// Upload stores the file and loads sheet from it.
func (s *WorkbookService) Upload(ctx context.Context, src sheets.Source, sheet string) (Loaded, error) {
	fp := cache.Fingerprint(src.Name, src.Content)
	s.uploads.Set(fp, src)
	return s.load(ctx, s.files, fp, src, sheet)
}

// Reload loads sheet of a previously uploaded or remote workbook. An upload
// that has expired falls back to the sample with a warning.
func (s *WorkbookService) Reload(ctx context.Context, fingerprint, sheet string) (Loaded, error) {
	if fingerprint == "" {
		return s.Sample(), nil
	}
	if id, ok := remoteID(fingerprint); ok {
		return s.Remote(ctx, id, sheet)
	}
	src, ok := s.uploads.Get(fingerprint)
	if !ok {
		l := s.Sample()
		l.Warning = "El archivo cargado expiró. Se muestran datos de ejemplo; vuelva a cargarlo."
		return l, nil
	}
	return s.load(ctx, s.files, fingerprint, src, sheet)
}

// Remote loads sheet of a spreadsheet by ID.
func (s *WorkbookService) Remote(ctx context.Context, spreadsheetID, sheet string) (Loaded, error) {
	if s.remote == nil {
		return Loaded{}, errors.New("no spreadsheet backend configured")
	}
	return s.load(ctx, s.remote, RemotePrefix+spreadsheetID, sheets.Source{Name: spreadsheetID}, sheet)
}

// Invalidate forgets every parsed sheet of a workbook.
func (s *WorkbookService) Invalidate(fingerprint string) int {
	return s.parsed.Invalidate(fingerprint)
}

// View records that a session shows l, releasing what it showed before.
// Parses still shown by another session are kept.
func (s *WorkbookService) View(sessionID string, l Loaded) int {
	return s.parsed.View(sessionID, l.key)
}

// load opens the workbook only on a cache miss: both the sheet list and the
// parsed sheet are served from the parse cache on repeat calls.
func (s *WorkbookService) load(ctx context.Context, loader sheets.Loader, fp string, src sheets.Source, sheet string) (Loaded, error) {
	names, err := s.parsed.GetOrListSheets(ctx, fp, func(ctx context.Context) ([]string, error) {
		return loader.Sheets(ctx, src)
	})
	if err != nil {
		return s.fallback(ctx, src, sheet, err)
	}
	if sheet == "" && len(names) > 0 {
		sheet = names[0]
	}

	key := cache.Key{Fingerprint: fp, Sheet: sheet}
	ds, hit, err := s.parsed.GetOrLoad(ctx, key, func(ctx context.Context) (core.Dataset, error) {
		return loader.Load(ctx, src, sheet)
	})
	var le *sheets.LoadError
	switch {
	case errors.As(err, &le):
		return s.fallback(ctx, src, sheet, err)
	case errors.Is(err, core.ErrEmptyDataset):
		if !hit {
			s.logger.WarnContext(ctx, "Workbook sheet has no data", "source", src.Name, "sheet", ds.Sheet)
		}
	case err != nil:
		return Loaded{}, fmt.Errorf("load %q: %w", src.Name, err)
	}

	out := Loaded{
		Dataset:     ds,
		Fingerprint: fp,
		FileName:    src.Name,
		Sheets:      names,
		Sheet:       ds.Sheet,
		Cached:      hit,
		key:         key,
	}
	if ds.IsEmpty() {
		out.Warning = fmt.Sprintf("La hoja %q no contiene categorías ni períodos en el rango esperado.", ds.Sheet)
	}
	if !hit {
		s.publish(ctx, out)
	}
	return out, nil
}

func (s *WorkbookService) fallback(ctx context.Context, src sheets.Source, sheet string, cause error) (Loaded, error) {
	s.logger.WarnContext(ctx, "Workbook unreadable, using sample data",
		"source", src.Name, "sheet", sheet, "error", cause)
	out := s.Sample()
	out.FileName = src.Name
	out.Warning = fmt.Sprintf("No se pudo cargar el archivo %q: %v. Se muestran datos de ejemplo.", src.Name, cause)
	s.publish(ctx, out)
	return out, nil
}

func (s *WorkbookService) publish(ctx context.Context, l Loaded) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.PublishWorkbookLoaded(ctx, amqp.WorkbookLoaded{
		Source:      l.FileName,
		Fingerprint: l.Fingerprint,
		Sheet:       l.Sheet,
		Synthetic:   l.Dataset.Synthetic,
		Categories:  len(l.Dataset.Categories),
		Periods:     len(l.Dataset.Periods),
		Warning:     l.Warning,
	})
	if err != nil {
		// the load itself succeeded
		s.logger.WarnContext(ctx, "Failed to publish workbook event", "error", err)
	}
}

func remoteID(fp string) (string, bool) {
	id, ok := strings.CutPrefix(fp, RemotePrefix)
	return id, ok && id != ""
}
