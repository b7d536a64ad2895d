package sheets

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"ecoads/internal/core"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported workbook format")
	ErrSheetNotFound     = errors.New("sheet not found")
	ErrNoSheets          = errors.New("workbook has no sheets")
)

// LoadError reports an unreadable or malformed source. Callers fall back to
// synthetic data when they see one.
type LoadError struct {
	Source string
	Sheet  string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Sheet != "" {
		return fmt.Sprintf("load %q sheet %q: %v", e.Source, e.Sheet, e.Err)
	}
	return fmt.Sprintf("load %q: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Grid is read-only cell access with 1-based coordinates. Missing cells are "".
type Grid interface {
	Cell(row, col int) string
}

// MatrixGrid adapts a row-major matrix whose [0][0] sits at (RowOffset+1, ColOffset+1).
type MatrixGrid struct {
	Values    [][]string
	RowOffset int
	ColOffset int
}

func (g MatrixGrid) Cell(row, col int) string {
	r, c := row-1-g.RowOffset, col-1-g.ColOffset
	if r < 0 || r >= len(g.Values) || c < 0 || c >= len(g.Values[r]) {
		return ""
	}
	return g.Values[r][c]
}

// Extract reads the layout out of g. Rows with an empty category name are
// skipped; numeric cells that are missing or unparsable count as 0; trailing
// blank period headers shrink the period range. A result with no categories
// or no periods is returned together with core.ErrEmptyDataset.
func Extract(g Grid, layout Layout) (core.Dataset, error) {
	r, err := layout.Resolve()
	if err != nil {
		return core.Dataset{}, err
	}

	ds := core.Dataset{
		BaselineName: layout.BaselineName,
		TargetName:   layout.TargetName,
		Baseline:     ParseNumber(g.Cell(r.BaselineRow, r.BaselineCol)),
		Target:       ParseNumber(g.Cell(r.TargetRow, r.TargetCol)),
	}

	lastCol := r.FirstCol - 1
	for c := r.FirstCol; c <= r.LastCol; c++ {
		if strings.TrimSpace(g.Cell(r.PeriodRow, c)) != "" {
			lastCol = c
		}
	}
	for c := r.FirstCol; c <= lastCol; c++ {
		ds.Periods = append(ds.Periods, core.NormalizePeriodLabel(g.Cell(r.PeriodRow, c), c-r.FirstCol))
	}

	seen := make(map[string]int)
	for row := r.FirstRow; row <= r.LastRow; row++ {
		name := strings.TrimSpace(g.Cell(row, r.CategoryCol))
		if name == "" {
			continue
		}
		seen[name]++
		if n := seen[name]; n > 1 {
			name = fmt.Sprintf("%s (%d)", name, n)
		}

		flows := make([]float64, len(ds.Periods))
		for i := range flows {
			flows[i] = ParseNumber(g.Cell(row, r.FirstCol+i))
		}
		ds.Categories = append(ds.Categories, core.Category{Key: name, Label: name, CashFlows: flows})
	}

	if ds.IsEmpty() {
		return ds, fmt.Errorf("%d categories, %d periods: %w", len(ds.Categories), len(ds.Periods), core.ErrEmptyDataset)
	}
	return ds, nil
}

// ParseNumber coerces a cell to a float. Currency symbols, thousands
// separators and accounting parentheses are tolerated; anything else is 0.
func ParseNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}
	s = strings.NewReplacer("$", "", ",", "", " ", "", "\u00a0", "", "USD", "").Replace(s)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	if neg {
		return -f
	}
	return f
}
