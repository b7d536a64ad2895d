package http

import (
	"errors"
	"io"
	"net/http"
	"path"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/dustin/go-humanize"

	"ecoads/internal/log"
	"ecoads/internal/services"
	"ecoads/internal/session"
	"ecoads/internal/sheets"
)

// maxLabelRunes bounds display labels set through /rename.
const maxLabelRunes = 80

var spreadsheetURL = regexp.MustCompile(`/spreadsheets/d/([A-Za-z0-9_-]+)`)

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	tooLargeMsg := "El archivo supera el tamaño máximo de " + humanize.IBytes(uint64(s.maxUpload)) + "."
	if r.ContentLength > s.maxUpload {
		RequestTooLargeError(tooLargeMsg).Write(w)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			RequestTooLargeError(tooLargeMsg).Write(w)
			return
		}
		s.logger.WarnContext(r.Context(), "Parse multipart error", log.FieldError, err, log.FieldPath, r.URL.Path)
		BadRequestError("Formato de solicitud no válido").Write(w)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		BadRequestError("Seleccione un archivo Excel (.xlsx o .xls)").Write(w)
		return
	}
	defer file.Close()

	name := uploadName(header.Filename)
	switch strings.ToLower(path.Ext(name)) {
	case ".xlsx", ".xlsm", ".xls":
	default:
		UnprocessableEntityError("Formato no admitido: use un archivo .xlsx o .xls").Write(w)
		return
	}

	content, err := io.ReadAll(file)
	if err != nil {
		BadRequestError("No se pudo leer el archivo").Write(w)
		return
	}

	st := s.loadSettings(w, r)
	loaded, err := s.workbooks.Upload(r.Context(), sheets.Source{Name: name, Content: content}, sanitizeInput(r.FormValue("sheet")))
	if err != nil {
		s.loadFailed(w, r, err)
		return
	}
	atomic.AddInt64(&s.appMetrics.uploads, 1)
	s.workbookSelected(w, r, &st, loaded)
}

// handleRemote loads a spreadsheet by ID or by its sharing URL.
func (s *Server) handleRemote(w http.ResponseWriter, r *http.Request) {
	if !s.workbooks.HasRemote() {
		NotFoundError("No hay hojas de cálculo remotas configuradas").Write(w)
		return
	}
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("Formato de solicitud no válido").Write(w)
		return
	}
	id := spreadsheetID(p.Get("spreadsheet_id"))
	if id == "" {
		UnprocessableEntityError("Indique el ID o la URL de la hoja de cálculo").Write(w)
		return
	}

	st := s.loadSettings(w, r)
	loaded, err := s.workbooks.Remote(r.Context(), id, p.Get("sheet"))
	if err != nil {
		s.loadFailed(w, r, err)
		return
	}
	s.workbookSelected(w, r, &st, loaded)
}

// workbookSelected stores the new selection and answers with the workspace.
func (s *Server) workbookSelected(w http.ResponseWriter, r *http.Request, st *session.Settings, loaded services.Loaded) {
	ctx := r.Context()
	st.SelectWorkbook(loaded.Fingerprint, loaded.FileName, loaded.Sheet)
	if err := s.saveSettings(ctx, st); err != nil {
		s.structured.LogError(ctx, "Failed to save session", err, log.ComponentSession, log.OpLoad, log.NewFields().WithSessionID(st.ID))
	}
	s.structured.LogWorkbookLoaded(ctx, loaded.FileName, loaded.Fingerprint, loaded.Sheet, loaded.Dataset.Synthetic,
		len(loaded.Dataset.Categories), len(loaded.Dataset.Periods))

	b := NewHTMXResponse().TriggerWorkbookLoaded(loaded.FileName, loaded.Sheet, loaded.Dataset.Synthetic)
	if loaded.Warning != "" {
		if loaded.Dataset.Synthetic {
			atomic.AddInt64(&s.appMetrics.fallbacks, 1)
		}
		b.Notify(NotifyWarning, loaded.Warning)
	} else {
		b.Notify(NotifySuccess, "Hoja " + loaded.Sheet + " cargada")
	}
	s.writeWorkspace(w, r, *st, loaded, b)
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("Formato de solicitud no válido").Write(w)
		return
	}
	form, err := ParseSettingsForm(p)
	if err != nil {
		UnprocessableEntityError("Valor no válido: " + err.Error()).Write(w)
		return
	}

	st := s.loadSettings(w, r)
	form.Apply(&st)
	if lo, hi := st.AxisMin, st.AxisMax; lo != nil && hi != nil && *lo >= *hi {
		UnprocessableEntityError("El mínimo del eje debe ser menor que el máximo").Write(w)
		return
	}

	b := NewHTMXResponse()
	if form.Sheet != nil && *form.Sheet != st.Sheet && st.Fingerprint != "" {
		st.SelectWorkbook(st.Fingerprint, st.FileName, *form.Sheet)
		loaded, err := s.workbooks.Reload(ctx, st.Fingerprint, st.Sheet)
		if err != nil {
			s.loadFailed(w, r, err)
			return
		}
		if err := s.saveSettings(ctx, &st); err != nil {
			s.structured.LogError(ctx, "Failed to save session", err, log.ComponentSession, log.OpSettings, log.NewFields().WithSessionID(st.ID))
		}
		b.TriggerWorkbookLoaded(loaded.FileName, loaded.Sheet, loaded.Dataset.Synthetic)
		if loaded.Warning != "" {
			b.Notify(NotifyWarning, loaded.Warning)
		}
		s.writeWorkspace(w, r, st, loaded, b)
		return
	}

	if err := s.saveSettings(ctx, &st); err != nil {
		s.structured.LogError(ctx, "Failed to save session", err, log.ComponentSession, log.OpSettings, log.NewFields().WithSessionID(st.ID))
	}
	s.respondWorkspace(w, r, st, b)
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("Formato de solicitud no válido").Write(w)
		return
	}
	key := p.Get("key")
	label := truncate(p.Get("label"), maxLabelRunes)

	st := s.loadSettings(w, r)
	loaded, err := s.workbooks.Reload(ctx, st.Fingerprint, st.Sheet)
	if err != nil {
		s.loadFailed(w, r, err)
		return
	}
	if !hasCategory(loaded, key) {
		UnprocessableEntityError("Categoría desconocida: " + key).Write(w)
		return
	}

	st.Rename(key, label)
	if err := s.saveSettings(ctx, &st); err != nil {
		s.structured.LogError(ctx, "Failed to save session", err, log.ComponentSession, log.OpRename, log.NewFields().WithSessionID(st.ID))
	}
	s.writeWorkspace(w, r, st, loaded, NewHTMXResponse())
}

// handleReset restores default settings but keeps the loaded workbook.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st := s.loadSettings(w, r)
	st.Reset()
	s.applyDefaults(&st)
	if err := s.saveSettings(ctx, &st); err != nil {
		s.structured.LogError(ctx, "Failed to save session", err, log.ComponentSession, log.OpReset, log.NewFields().WithSessionID(st.ID))
	}
	s.respondWorkspace(w, r, st, NewHTMXResponse().Notify(NotifySuccess, "Valores restablecidos"))
}

func hasCategory(loaded services.Loaded, key string) bool {
	for _, c := range loaded.Dataset.Categories {
		if c.Key == key {
			return true
		}
	}
	return false
}

// spreadsheetID accepts a bare ID or a docs.google.com URL.
func spreadsheetID(v string) string {
	v = strings.TrimSpace(v)
	if m := spreadsheetURL.FindStringSubmatch(v); m != nil {
		return m[1]
	}
	for _, r := range v {
		if !(r == '-' || r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return ""
		}
	}
	return v
}
