// This file implements utilities for parsing and validating request data.
// Settings changes arrive either as HTMX form posts or as JSON from API
// clients; both go through RequestBodyParser.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"ecoads/internal/core"
	"ecoads/internal/session"
)

// maxFormBytes bounds non-upload request bodies.
const maxFormBytes = 64 << 10

// RequestBodyParser handles different content types for request body parsing.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]interface{}
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser reads the body once and stores it for parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxFormBytes))
	return p
}

// newQueryParser exposes query parameters through the same accessors, so
// read-only endpoints accept settings overrides without touching the session.
func newQueryParser(q url.Values) *RequestBodyParser {
	return &RequestBodyParser{formData: q, parsed: true}
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if p.body[0] == '{' || strings.HasPrefix(p.contentType, "application/json") {
		p.jsonData = make(map[string]interface{})
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Has reports whether key was sent at all.
func (p *RequestBodyParser) Has(key string) bool {
	if p.jsonData != nil {
		_, ok := p.jsonData[key]
		return ok
	}
	return p.formData.Has(key)
}

// Get returns the sanitized value for key. For repeated form keys the last
// value wins, which lets a hidden "false" precede a checkbox.
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if vs := p.formData[key]; len(vs) > 0 {
		return sanitizeInput(vs[len(vs)-1])
	}
	return ""
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// SettingsForm is a partial settings update; nil fields were not sent.
type SettingsForm struct {
	RatePercent    *float64
	HideZeros      *bool
	DropExactZeros *bool
	Policy         *string
	Palette        *string
	Sheet          *string
	// AxisSet is true when either bound was sent; a blank bound clears it.
	AxisSet bool
	AxisMin *float64
	AxisMax *float64
}

var errInvalidNumber = errors.New("invalid number")

// ParseSettingsForm reads rate, filters, policy, palette, axis bounds and sheet.
// "keep_exact_zeros" is the inverse of DropExactZeros.
func ParseSettingsForm(p *RequestBodyParser) (SettingsForm, error) {
	var f SettingsForm
	if p.Has("rate") {
		v, err := parseFloat(p.Get("rate"))
		if err != nil || v == nil {
			return f, fmt.Errorf("tasa de descuento: %w", errInvalidNumber)
		}
		f.RatePercent = v
	}
	if p.Has("hide_zeros") {
		b := parseBool(p.Get("hide_zeros"))
		f.HideZeros = &b
	}
	if p.Has("keep_exact_zeros") {
		b := !parseBool(p.Get("keep_exact_zeros"))
		f.DropExactZeros = &b
	}
	if p.Has("policy") {
		policy, err := core.ParseFinalPolicy(p.Get("policy"))
		if err != nil {
			return f, fmt.Errorf("cierre del gráfico: %w", err)
		}
		v := policy.Name()
		f.Policy = &v
	}
	if p.Has("palette") {
		palette, err := core.ParsePalette(p.Get("palette"))
		if err != nil {
			return f, fmt.Errorf("paleta: %w", err)
		}
		f.Palette = &palette.Name
	}
	if p.Has("sheet") {
		v := p.Get("sheet")
		f.Sheet = &v
	}
	if p.Has("axis_min") || p.Has("axis_max") {
		f.AxisSet = true
		var err error
		if f.AxisMin, err = parseFloat(p.Get("axis_min")); err != nil {
			return f, fmt.Errorf("mínimo del eje: %w", err)
		}
		if f.AxisMax, err = parseFloat(p.Get("axis_max")); err != nil {
			return f, fmt.Errorf("máximo del eje: %w", err)
		}
	}
	return f, nil
}

// Apply merges the form into st. The rate is clamped to the slider range;
// sheet selection is left to the caller since it affects the parse cache.
func (f SettingsForm) Apply(st *session.Settings) {
	if f.RatePercent != nil {
		st.RatePercent = session.ClampRate(*f.RatePercent)
	}
	if f.HideZeros != nil {
		st.HideZeros = *f.HideZeros
	}
	if f.DropExactZeros != nil {
		st.DropExactZeros = *f.DropExactZeros
	}
	if f.Policy != nil {
		st.Policy = *f.Policy
	}
	if f.Palette != nil {
		st.Palette = *f.Palette
	}
	if f.AxisSet {
		st.AxisMin, st.AxisMax = f.AxisMin, f.AxisMax
	}
}

// parseFloat accepts "1.5", "-2e6" and "1,234,567.8". A lone comma is a
// decimal comma, so "1,5" is 1.5. Blank means unset.
func parseFloat(s string) (*float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	s = strings.TrimPrefix(s, "$")
	if s == "" {
		return nil, nil
	}
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, errInvalidNumber
	}
	return &v, nil
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "on", "yes", "si", "sí":
		return true
	default:
		return false
	}
}
