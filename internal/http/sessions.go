package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"ecoads/internal/log"
	"ecoads/internal/session"
)

// SessionCookie carries the settings ID; everything else stays server-side.
const SessionCookie = "ecoads_session"

// loadSettings returns the caller's settings, starting a new session when the
// cookie is missing, malformed or has expired.
func (s *Server) loadSettings(w http.ResponseWriter, r *http.Request) session.Settings {
	ctx := r.Context()
	if c, err := r.Cookie(SessionCookie); err == nil {
		if _, perr := uuid.Parse(c.Value); perr == nil {
			st, err := s.sessions.Get(ctx, c.Value)
			if err == nil {
				return st
			}
			if !errors.Is(err, session.ErrNotFound) {
				s.logger.WarnContext(ctx, "Session lookup failed, starting a new one",
					log.FieldSessionID, c.Value, log.FieldError, err, log.FieldComponent, log.ComponentSession)
			}
		}
	}

	st := s.newSettings()
	s.setSessionCookie(w, r, st.ID)
	if err := s.sessions.Save(ctx, st); err != nil {
		s.logger.WarnContext(ctx, "Failed to persist new session",
			log.FieldSessionID, st.ID, log.FieldError, err, log.FieldComponent, log.ComponentSession)
	}
	return st
}

func (s *Server) saveSettings(ctx context.Context, st *session.Settings) error {
	st.UpdatedAt = time.Now()
	return s.sessions.Save(ctx, *st)
}

func (s *Server) newSettings() session.Settings {
	st := session.Defaults()
	s.applyDefaults(&st)
	return st
}

// applyDefaults overlays the configured defaults on a fresh or reset session.
func (s *Server) applyDefaults(st *session.Settings) {
	st.RatePercent = s.defaults.RatePercent
	st.Policy = s.defaults.Policy
	st.Palette = s.defaults.Palette
}

func (s *Server) setSessionCookie(w http.ResponseWriter, r *http.Request, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secureCookies || r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}
