package sheets

import (
	"context"

	"ecoads/internal/core"
)

// Source identifies a workbook. For uploads Content holds the file bytes;
// for remote spreadsheets Name is the spreadsheet ID and Content is empty.
type Source struct {
	Name    string
	Content []byte
}

// Ports for inbound data adapters.
type (
	// WorkbookLoader turns one sheet of a workbook into a Dataset.
	// An empty sheet name selects the first sheet.
	WorkbookLoader interface {
		Load(ctx context.Context, src Source, sheet string) (core.Dataset, error)
	}

	// SheetLister lists the selectable sheets of a workbook in order.
	SheetLister interface {
		Sheets(ctx context.Context, src Source) ([]string, error)
	}

	Loader interface {
		WorkbookLoader
		SheetLister
	}
)
