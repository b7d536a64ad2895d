package sheets

import (
	"fmt"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"
)

// Layout names the fixed cell ranges of the evaluation workbook.
type Layout struct {
	Categories   string `yaml:"categories"`
	Periods      string `yaml:"periods"`
	Baseline     string `yaml:"baseline"`
	Target       string `yaml:"target"`
	BaselineName string `yaml:"baseline_name"`
	TargetName   string `yaml:"target_name"`
}

// DefaultLayout is the layout of the "Ev. Eco ADS" workbook.
func DefaultLayout() Layout {
	return Layout{
		Categories:   "B145:B163",
		Periods:      "D144:AK144",
		Baseline:     "C169",
		Target:       "C172",
		BaselineName: "MANNED",
		TargetName:   "ADS",
	}
}

// ParseLayout reads YAML over the defaults; omitted keys keep their default.
func ParseLayout(data []byte) (Layout, error) {
	l := DefaultLayout()
	if err := yaml.Unmarshal(data, &l); err != nil {
		return Layout{}, fmt.Errorf("parse layout: %w", err)
	}
	if _, err := l.Resolve(); err != nil {
		return Layout{}, err
	}
	return l, nil
}

// LoadLayout reads a layout file. An empty path returns DefaultLayout.
func LoadLayout(path string) (Layout, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultLayout(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Layout{}, fmt.Errorf("read layout file: %w", err)
	}
	return ParseLayout(data)
}

// Marshal renders the layout as YAML.
func (l Layout) Marshal() ([]byte, error) {
	return yaml.Marshal(l)
}

// Resolved holds 1-based coordinates of a validated Layout.
type Resolved struct {
	CategoryCol int
	FirstRow    int
	LastRow     int

	PeriodRow int
	FirstCol  int
	LastCol   int

	BaselineRow, BaselineCol int
	TargetRow, TargetCol     int
}

// Resolve validates the layout and converts it to coordinates.
func (l Layout) Resolve() (Resolved, error) {
	var problems []string
	var r Resolved

	c1, r1, c2, r2, err := parseRange(l.Categories)
	switch {
	case err != nil:
		problems = append(problems, fmt.Sprintf("categories: %v", err))
	case c1 != c2:
		problems = append(problems, fmt.Sprintf("categories %q must be a single column", l.Categories))
	default:
		r.CategoryCol, r.FirstRow, r.LastRow = c1, r1, r2
	}

	c1, r1, c2, r2, err = parseRange(l.Periods)
	switch {
	case err != nil:
		problems = append(problems, fmt.Sprintf("periods: %v", err))
	case r1 != r2:
		problems = append(problems, fmt.Sprintf("periods %q must be a single row", l.Periods))
	default:
		r.PeriodRow, r.FirstCol, r.LastCol = r1, c1, c2
	}

	if r.BaselineCol, r.BaselineRow, err = excelize.CellNameToCoordinates(strings.TrimSpace(l.Baseline)); err != nil {
		problems = append(problems, fmt.Sprintf("baseline: %v", err))
	}
	if r.TargetCol, r.TargetRow, err = excelize.CellNameToCoordinates(strings.TrimSpace(l.Target)); err != nil {
		problems = append(problems, fmt.Sprintf("target: %v", err))
	}

	if len(problems) > 0 {
		return Resolved{}, fmt.Errorf("invalid layout:\n- %s", strings.Join(problems, "\n- "))
	}
	return r, nil
}

// Bounds returns the smallest rectangle covering every referenced cell.
func (r Resolved) Bounds() (minRow, minCol, maxRow, maxCol int) {
	minRow, maxRow = r.PeriodRow, r.PeriodRow
	minCol, maxCol = r.FirstCol, r.LastCol
	grow := func(row, col int) {
		minRow, maxRow = min(minRow, row), max(maxRow, row)
		minCol, maxCol = min(minCol, col), max(maxCol, col)
	}
	grow(r.FirstRow, r.CategoryCol)
	grow(r.LastRow, r.CategoryCol)
	grow(r.BaselineRow, r.BaselineCol)
	grow(r.TargetRow, r.TargetCol)
	return minRow, minCol, maxRow, maxCol
}

// A1Range returns the bounding rectangle in A1 notation, e.g. "B144:AK172".
func (r Resolved) A1Range() (string, error) {
	minRow, minCol, maxRow, maxCol := r.Bounds()
	from, err := excelize.CoordinatesToCellName(minCol, minRow)
	if err != nil {
		return "", err
	}
	to, err := excelize.CoordinatesToCellName(maxCol, maxRow)
	if err != nil {
		return "", err
	}
	return from + ":" + to, nil
}

func parseRange(ref string) (c1, r1, c2, r2 int, err error) {
	from, to, ok := strings.Cut(strings.TrimSpace(ref), ":")
	if !ok {
		return 0, 0, 0, 0, fmt.Errorf("%q is not a range", ref)
	}
	if c1, r1, err = excelize.CellNameToCoordinates(from); err != nil {
		return 0, 0, 0, 0, err
	}
	if c2, r2, err = excelize.CellNameToCoordinates(to); err != nil {
		return 0, 0, 0, 0, err
	}
	if c1 > c2 || r1 > r2 {
		return 0, 0, 0, 0, fmt.Errorf("%q is inverted", ref)
	}
	return c1, r1, c2, r2, nil
}
