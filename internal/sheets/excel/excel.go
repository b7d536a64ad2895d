// Package excel loads the evaluation workbook from uploaded .xlsx and legacy .xls files.
package excel

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	"ecoads/internal/core"
	ports "ecoads/internal/sheets"
)

type format int

const (
	formatUnknown format = iota
	formatXLSX
	formatXLS
)

var (
	zipMagic = []byte("PK\x03\x04")
	cfbMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// Loader reads a fixed Layout out of spreadsheet uploads.
type Loader struct {
	layout ports.Layout
}

// Ensure interface conformance
var _ ports.Loader = (*Loader)(nil)

// New validates layout and returns a Loader for it.
func New(layout ports.Layout) (*Loader, error) {
	if _, err := layout.Resolve(); err != nil {
		return nil, err
	}
	return &Loader{layout: layout}, nil
}

// Layout returns the layout the loader extracts.
func (l *Loader) Layout() ports.Layout { return l.layout }

// Sheets lists sheet names in workbook order.
func (l *Loader) Sheets(ctx context.Context, src ports.Source) ([]string, error) {
	wb, err := l.open(src)
	if err != nil {
		return nil, err
	}
	defer wb.Close()
	return wb.SheetNames(), nil
}

// Load extracts one sheet. Unreadable files and unknown sheets are *LoadError;
// a readable sheet without data returns core.ErrEmptyDataset.
func (l *Loader) Load(ctx context.Context, src ports.Source, sheet string) (core.Dataset, error) {
	wb, err := l.open(src)
	if err != nil {
		return core.Dataset{}, err
	}
	defer wb.Close()

	name, err := pickSheet(wb.SheetNames(), sheet)
	if err != nil {
		return core.Dataset{}, &ports.LoadError{Source: src.Name, Sheet: sheet, Err: err}
	}

	grid, err := wb.Grid(name)
	if err != nil {
		return core.Dataset{}, &ports.LoadError{Source: src.Name, Sheet: name, Err: err}
	}

	ds, err := ports.Extract(grid, l.layout)
	ds.Source, ds.Sheet = src.Name, name
	if err != nil {
		return ds, err
	}

	slog.DebugContext(ctx, "Workbook sheet extracted",
		"source", src.Name,
		"sheet", name,
		"categories", len(ds.Categories),
		"periods", len(ds.Periods))
	return ds, nil
}

// workbook hides the difference between the two file formats.
type workbook interface {
	SheetNames() []string
	Grid(sheet string) (ports.Grid, error)
	Close() error
}

func (l *Loader) open(src ports.Source) (workbook, error) {
	if len(src.Content) == 0 {
		return nil, &ports.LoadError{Source: src.Name, Err: fmt.Errorf("empty file")}
	}
	switch detect(src) {
	case formatXLSX:
		wb, err := openXLSX(src.Content)
		if err != nil {
			return nil, &ports.LoadError{Source: src.Name, Err: err}
		}
		return wb, nil
	case formatXLS:
		wb, err := openXLS(src.Content)
		if err != nil {
			return nil, &ports.LoadError{Source: src.Name, Err: err}
		}
		return wb, nil
	default:
		return nil, &ports.LoadError{Source: src.Name, Err: ports.ErrUnsupportedFormat}
	}
}

func detect(src ports.Source) format {
	switch strings.ToLower(filepath.Ext(src.Name)) {
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		return formatXLSX
	case ".xls":
		return formatXLS
	}
	switch {
	case bytes.HasPrefix(src.Content, zipMagic):
		return formatXLSX
	case bytes.HasPrefix(src.Content, cfbMagic):
		return formatXLS
	default:
		return formatUnknown
	}
}

func pickSheet(names []string, want string) (string, error) {
	if len(names) == 0 {
		return "", ports.ErrNoSheets
	}
	want = strings.TrimSpace(want)
	if want == "" {
		return names[0], nil
	}
	for _, n := range names {
		if n == want {
			return n, nil
		}
	}
	for _, n := range names {
		if strings.EqualFold(n, want) {
			return n, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ports.ErrSheetNotFound, want)
}

type xlsxBook struct {
	f *excelize.File
}

func openXLSX(content []byte) (*xlsxBook, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content), excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	return &xlsxBook{f: f}, nil
}

func (b *xlsxBook) SheetNames() []string { return b.f.GetSheetList() }

func (b *xlsxBook) Grid(sheet string) (ports.Grid, error) {
	rows, err := b.f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	return ports.MatrixGrid{Values: rows}, nil
}

func (b *xlsxBook) Close() error { return b.f.Close() }

type xlsBook struct {
	wb *xls.WorkBook
}

// openXLS recovers from decoder panics, which malformed BIFF streams can trigger.
func openXLS(content []byte) (book *xlsBook, err error) {
	defer func() {
		if r := recover(); r != nil {
			book, err = nil, fmt.Errorf("open xls: %v", r)
		}
	}()
	wb, err := xls.OpenReader(bytes.NewReader(content), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("open xls: %w", err)
	}
	return &xlsBook{wb: wb}, nil
}

func (b *xlsBook) SheetNames() []string {
	names := make([]string, 0, b.wb.NumSheets())
	for i := 0; i < b.wb.NumSheets(); i++ {
		if s := b.wb.GetSheet(i); s != nil {
			names = append(names, s.Name)
		}
	}
	return names
}

func (b *xlsBook) Grid(sheet string) (g ports.Grid, err error) {
	defer func() {
		if r := recover(); r != nil {
			g, err = nil, fmt.Errorf("read xls sheet: %v", r)
		}
	}()
	for i := 0; i < b.wb.NumSheets(); i++ {
		s := b.wb.GetSheet(i)
		if s == nil || s.Name != sheet {
			continue
		}
		values := make([][]string, int(s.MaxRow)+1)
		for r := 0; r <= int(s.MaxRow); r++ {
			row := s.Row(r)
			if row == nil {
				continue
			}
			cells := make([]string, row.LastCol()+1)
			for c := range cells {
				cells[c] = row.Col(c)
			}
			values[r] = cells
		}
		return ports.MatrixGrid{Values: values}, nil
	}
	return nil, fmt.Errorf("%w: %q", ports.ErrSheetNotFound, sheet)
}

func (b *xlsBook) Close() error { return nil }
