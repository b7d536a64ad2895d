package google

import (
	"strconv"
	"strings"

	ports "ecoads/internal/sheets"
)

// valuesGrid converts a values matrix (as returned by the Sheets API for a
// range starting at firstRow/firstCol) into a Grid addressed in sheet coordinates.
func valuesGrid(values [][]interface{}, firstRow, firstCol int) ports.MatrixGrid {
	rows := make([][]string, len(values))
	for i, row := range values {
		rows[i] = toStrings(row)
	}
	return ports.MatrixGrid{Values: rows, RowOffset: firstRow - 1, ColOffset: firstCol - 1}
}

func toStrings(row []interface{}) []string {
	out := make([]string, len(row))
	for i, v := range row {
		out[i] = cellString(v)
	}
	return out
}

// cellString renders UNFORMATTED_VALUE cells: numbers arrive as float64.
func cellString(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		if x {
			return "1"
		}
		return "0"
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return ""
	}
}
