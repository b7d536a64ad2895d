package core

import (
	"errors"
	"strings"
)

var (
	// ErrInvalidRate is returned when 1 + rate/100 collapses to zero.
	ErrInvalidRate = errors.New("invalid discount rate")
	// ErrEmptyDataset is returned when a load or filter leaves nothing to chart.
	ErrEmptyDataset = errors.New("empty dataset")
	ErrUnknownPolicy  = errors.New("unknown final-value policy")
	ErrUnknownPalette = errors.New("unknown palette")
)

const (
	DefaultBaselineName = "MANNED"
	DefaultTargetName   = "ADS"
)

// Category is one line item of the cost/benefit matrix.
// Key is the identity used for lookups; Label is what gets rendered.
type Category struct {
	Key       string
	Label     string
	CashFlows []float64
}

// DisplayLabel returns the label, falling back to the key.
func (c Category) DisplayLabel() string {
	if strings.TrimSpace(c.Label) == "" {
		return c.Key
	}
	return c.Label
}

// Dataset is the typed result of a workbook load.
type Dataset struct {
	Categories   []Category
	Periods      []string
	Baseline     float64
	Target       float64
	BaselineName string
	TargetName   string

	// Source is the file or spreadsheet name the data came from.
	Source    string
	Sheet     string
	Synthetic bool
}

// IsEmpty reports whether there is nothing to discount or chart.
func (d Dataset) IsEmpty() bool {
	return len(d.Categories) == 0 || len(d.Periods) == 0
}

// Names returns the anchor names with defaults applied.
func (d Dataset) Names() (baseline, target string) {
	baseline, target = d.BaselineName, d.TargetName
	if baseline == "" {
		baseline = DefaultBaselineName
	}
	if target == "" {
		target = DefaultTargetName
	}
	return baseline, target
}

// ApplyLabels returns a copy of categories with display labels taken from renames.
// Blank renames fall back to the identity key. Cash flows are shared, not copied.
func ApplyLabels(categories []Category, renames map[string]string) []Category {
	out := make([]Category, len(categories))
	for i, c := range categories {
		c.Label = c.Key
		if v, ok := renames[c.Key]; ok && strings.TrimSpace(v) != "" {
			c.Label = strings.TrimSpace(v)
		}
		out[i] = c
	}
	return out
}
