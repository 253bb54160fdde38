package google

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"finca/internal/core"
	"finca/internal/sheets"
)

// Column order of the ledger sheet.
const (
	colID = iota
	colKind
	colDate
	colContributor
	colConcept
	colDescription
	colAmount
	colAttachments
)

var header = []string{"ID", "Tipo", "Fecha", "Aportante", "Concepto", "Descripción", "Monto", "Adjuntos"}

func headerValues() []interface{} {
	out := make([]interface{}, len(header))
	for i, h := range header {
		out[i] = h
	}
	return out
}

func headerMatches(row []interface{}) bool {
	if len(row) < len(header) {
		return false
	}
	for i, h := range header {
		if cellString(row, i) != h {
			return false
		}
	}
	return true
}

func rowValues(r sheets.Row) []interface{} {
	return []interface{}{
		r.ID,
		r.Kind,
		r.Date.String(),
		r.Contributor.String(),
		r.Concept,
		r.Description,
		r.Amount,
		r.Attachments,
	}
}

// parseRows converts sheet values into rows, skipping the header and blank lines.
func parseRows(values [][]interface{}) ([]sheets.Row, error) {
	rows := make([]sheets.Row, 0, len(values))
	for i, v := range values {
		if i == 0 && headerMatches(v) {
			continue
		}
		if cellString(v, colID) == "" {
			continue
		}
		r, err := parseRow(v)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		rows = append(rows, r)
	}
	return rows, nil
}

func parseRow(v []interface{}) (sheets.Row, error) {
	r := sheets.Row{
		ID:          cellString(v, colID),
		Kind:        cellString(v, colKind),
		Contributor: core.Contributor(cellString(v, colContributor)),
		Concept:     cellString(v, colConcept),
		Description: cellString(v, colDescription),
		Attachments: cellString(v, colAttachments),
	}
	if s := cellString(v, colDate); s != "" {
		d, err := core.ParseDate(s)
		if err != nil {
			return sheets.Row{}, err
		}
		r.Date = d
	}
	amount, err := parseAmount(safeGet(v, colAmount))
	if err != nil {
		return sheets.Row{}, err
	}
	r.Amount = amount
	return r, nil
}

// findRowIndex returns the zero-based index of the row whose first cell is id, or -1.
func findRowIndex(values [][]interface{}, id string) int {
	for i, v := range values {
		if cellString(v, colID) == id {
			return i
		}
	}
	return -1
}

func safeGet(row []interface{}, idx int) interface{} {
	if idx < 0 || idx >= len(row) {
		return nil
	}
	return row[idx]
}

func cellString(row []interface{}, idx int) string {
	v := safeGet(row, idx)
	if v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// parseAmount accepts numeric cells and strings in either "1234.5" or "1.234,50" form.
func parseAmount(v interface{}) (float64, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return x, nil
	case string:
		s := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(x), "$"))
		if s == "" {
			return 0, nil
		}
		if strings.Contains(s, ",") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.ReplaceAll(s, ",", ".")
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return 0, fmt.Errorf("parse amount %q: %w", x, err)
		}
		f := d.InexactFloat64()
		if math.IsInf(f, 0) {
			return 0, fmt.Errorf("parse amount %q: out of range", x)
		}
		return f, nil
	default:
		return strconv.ParseFloat(fmt.Sprint(x), 64)
	}
}
