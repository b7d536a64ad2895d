// Package session holds the per-visitor analysis state: rate, filters,
// renames, axis bounds and the selected workbook sheet.
package session

import (
	"context"
	"errors"
	"maps"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"ecoads/internal/core"
)

const (
	MinRate     = 0.0
	MaxRate     = 20.0
	RateStep    = 0.1
	DefaultRate = 8.0
)

var ErrNotFound = errors.New("session not found")

// Settings is everything one visitor can change. The core never sees it
// directly; it is converted into explicit arguments on every recompute.
type Settings struct {
	ID             string            `json:"id"`
	RatePercent    float64           `json:"rate_percent"`
	HideZeros      bool              `json:"hide_zeros"`
	DropExactZeros bool              `json:"drop_exact_zeros"`
	Renames        map[string]string `json:"renames,omitempty"`
	AxisMin        *float64          `json:"axis_min,omitempty"`
	AxisMax        *float64          `json:"axis_max,omitempty"`
	Sheet          string            `json:"sheet,omitempty"`
	Fingerprint    string            `json:"fingerprint,omitempty"`
	FileName       string            `json:"file_name,omitempty"`
	Policy         string            `json:"policy"`
	Palette        string            `json:"palette"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// Defaults returns fresh settings with a new ID.
func Defaults() Settings {
	return Settings{
		ID:             uuid.NewString(),
		RatePercent:    DefaultRate,
		DropExactZeros: true,
		Policy:         core.PolicyGap,
		Palette:        core.BenefitGreen.Name,
		UpdatedAt:      time.Now(),
	}
}

// ClampRate limits r to [MinRate, MaxRate] on the 0.1 grid. NaN means the default.
func ClampRate(r float64) float64 {
	if math.IsNaN(r) {
		return DefaultRate
	}
	r = math.Max(MinRate, math.Min(MaxRate, r))
	return math.Round(r/RateStep) / 10
}

// ReconcileOptions converts the filter state for core.Reconcile.
func (s Settings) ReconcileOptions() core.ReconcileOptions {
	opts := core.DefaultReconcileOptions(s.RatePercent)
	opts.HideZeros = s.HideZeros
	opts.DropExactZeros = s.DropExactZeros
	return opts
}

// Axis returns the optional y-axis bounds.
func (s Settings) Axis() core.Axis {
	return core.Axis{Min: s.AxisMin, Max: s.AxisMax}
}

// Clone returns a deep copy so callers can mutate freely.
func (s Settings) Clone() Settings {
	out := s
	out.Renames = maps.Clone(s.Renames)
	if s.AxisMin != nil {
		v := *s.AxisMin
		out.AxisMin = &v
	}
	if s.AxisMax != nil {
		v := *s.AxisMax
		out.AxisMax = &v
	}
	return out
}

// Rename sets a display label. A blank label restores the identity.
func (s *Settings) Rename(key, label string) {
	label = strings.TrimSpace(label)
	if label == "" || label == key {
		delete(s.Renames, key)
		return
	}
	if s.Renames == nil {
		s.Renames = make(map[string]string)
	}
	s.Renames[key] = label
}

// SelectWorkbook records a new file or sheet. It reports whether the
// previous parse is stale; renames are dropped when the file changes.
func (s *Settings) SelectWorkbook(fingerprint, fileName, sheet string) (changed bool) {
	fileChanged := fingerprint != s.Fingerprint
	changed = fileChanged || sheet != s.Sheet
	if fileChanged {
		s.Renames = nil
	}
	s.Fingerprint, s.FileName, s.Sheet = fingerprint, fileName, sheet
	return changed
}

// Reset restores defaults but keeps identity and the selected workbook.
func (s *Settings) Reset() {
	d := Defaults()
	d.ID = s.ID
	d.Fingerprint, d.FileName, d.Sheet = s.Fingerprint, s.FileName, s.Sheet
	*s = d
}

// Store persists Settings per session.
type Store interface {
	Get(ctx context.Context, id string) (Settings, error)
	Save(ctx context.Context, s Settings) error
	Delete(ctx context.Context, id string) error
	CleanExpired() int
	Close() error
}
