// Package memory serves datasets held in process, including the synthetic
// sample shown when no workbook could be read.
package memory

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"sync"

	"ecoads/internal/core"
	ports "ecoads/internal/sheets"
)

// SampleSheet is the sheet name reported for the synthetic dataset.
const SampleSheet = "Ejemplo"

const (
	sampleSeed      = 42
	sampleFirstYear = 2025
	sampleYears     = 20
	sampleSpread    = 500_000.0
	sampleBaseline  = 10_000_000.0
	sampleTarget    = 8_500_000.0
)

var sampleCategories = []string{
	"Operación", "Mantenimiento", "Combustible", "Neumáticos", "Personal",
	"Seguros", "Depreciación", "Costos Indirectos", "Productividad",
	"Eficiencia", "Disponibilidad", "Utilización", "Calidad", "Seguridad",
	"Medio Ambiente", "Capacitación", "Repuestos", "Servicios Externos", "Otros",
}

// Sample builds the deterministic synthetic dataset: the same seed always
// yields the same matrix.
func Sample() core.Dataset {
	rng := rand.New(rand.NewSource(sampleSeed))

	periods := make([]string, sampleYears)
	for i := range periods {
		periods[i] = strconv.Itoa(sampleFirstYear + i)
	}

	cats := make([]core.Category, len(sampleCategories))
	for i, name := range sampleCategories {
		flows := make([]float64, sampleYears)
		for j := range flows {
			flows[j] = -sampleSpread + rng.Float64()*2*sampleSpread
		}
		cats[i] = core.Category{Key: name, CashFlows: flows}
	}

	return core.Dataset{
		Categories:   cats,
		Periods:      periods,
		Baseline:     sampleBaseline,
		Target:       sampleTarget,
		BaselineName: core.DefaultBaselineName,
		TargetName:   core.DefaultTargetName,
		Source:       "sample",
		Sheet:        SampleSheet,
		Synthetic:    true,
	}
}

// Store is a Loader over named in-process datasets. Source.Name selects the
// workbook; each workbook holds its sheets in insertion order.
type Store struct {
	mu     sync.RWMutex
	books  map[string][]string
	sheets map[string]core.Dataset
}

// Ensure interface conformance
var _ ports.Loader = (*Store)(nil)

func New() *Store {
	return &Store{books: map[string][]string{}, sheets: map[string]core.Dataset{}}
}

// NewSample returns a Store holding the synthetic dataset under "sample".
func NewSample() *Store {
	s := New()
	s.Put("sample", SampleSheet, Sample())
	return s
}

func key(book, sheet string) string { return book + "\x00" + sheet }

// Put stores ds as sheet of book, replacing any previous value.
func (s *Store) Put(book, sheet string, ds core.Dataset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(book, sheet)
	if _, ok := s.sheets[k]; !ok {
		s.books[book] = append(s.books[book], sheet)
	}
	ds.Source, ds.Sheet = book, sheet
	s.sheets[k] = ds
}

// Sheets lists the sheets of the named workbook.
func (s *Store) Sheets(_ context.Context, src ports.Source) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names, ok := s.books[src.Name]
	if !ok {
		return nil, &ports.LoadError{Source: src.Name, Err: ports.ErrNoSheets}
	}
	return append([]string(nil), names...), nil
}

// Load returns a copy of the stored dataset. An empty sheet selects the first.
func (s *Store) Load(ctx context.Context, src ports.Source, sheet string) (core.Dataset, error) {
	names, err := s.Sheets(ctx, src)
	if err != nil {
		return core.Dataset{}, err
	}
	if sheet == "" {
		sheet = names[0]
	}

	s.mu.RLock()
	ds, ok := s.sheets[key(src.Name, sheet)]
	s.mu.RUnlock()
	if !ok {
		return core.Dataset{}, &ports.LoadError{Source: src.Name, Sheet: sheet,
			Err: fmt.Errorf("%w: %q", ports.ErrSheetNotFound, sheet)}
	}

	out := ds
	out.Categories = make([]core.Category, len(ds.Categories))
	for i, c := range ds.Categories {
		c.CashFlows = append([]float64(nil), c.CashFlows...)
		out.Categories[i] = c
	}
	out.Periods = append([]string(nil), ds.Periods...)
	if out.IsEmpty() {
		return out, core.ErrEmptyDataset
	}
	return out, nil
}
