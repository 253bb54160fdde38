// Package sheets mirrors the ledger into a spreadsheet for the family to browse.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"finca/internal/core"
)

// Row kinds as written in the sheet.
const (
	KindExpense      = "Factura"
	KindContribution = "Aporte"
)

// ErrRowNotFound is returned when an update targets a row the sheet does not have.
var ErrRowNotFound = errors.New("row not found")

// Row is one ledger line in the mirror.
type Row struct {
	ID          string
	Kind        string
	Date        core.Date
	Contributor core.Contributor
	Concept     string
	Description string
	Amount      float64
	Attachments string // space separated URLs
}

// Ports for outbound adapters.
type (
	RowWriter interface {
		// AppendRow adds r at the end of the ledger sheet and returns its range.
		// If a row with r.ID already exists it is left untouched and its
		// range is returned, so redelivered events do not duplicate rows.
		AppendRow(ctx context.Context, r Row) (ref string, err error)
		// DeleteRow removes the row carrying id. A missing row is not an error.
		DeleteRow(ctx context.Context, id string) error
		// AddAttachment appends url to the attachments cell of row id. A url
		// already listed there is not added again.
		AddAttachment(ctx context.Context, id, url string) error
	}

	RowReader interface {
		ReadRows(ctx context.Context) ([]Row, error)
	}

	Mirror interface {
		RowWriter
		RowReader
	}
)

// HasAttachment reports whether url is listed in r.Attachments.
func (r Row) HasAttachment(url string) bool {
	return slices.Contains(strings.Fields(r.Attachments), url)
}

func ExpenseRow(e core.Expense) Row {
	urls := make([]string, 0, len(e.Attachments))
	for _, a := range e.Attachments {
		urls = append(urls, a.StorageURL)
	}
	r := Row{
		ID:          e.ID,
		Kind:        KindExpense,
		Date:        e.Date,
		Concept:     e.Concept,
		Amount:      e.Amount,
		Attachments: strings.Join(urls, " "),
	}
	if e.HasDescription() {
		r.Description = e.Description
	}
	return r
}

func ContributionRow(c core.Contribution) Row {
	return Row{
		ID:          c.ID,
		Kind:        KindContribution,
		Date:        c.Date,
		Contributor: c.Contributor,
		Concept:     c.Concept,
		Amount:      c.Amount,
	}
}

// Split turns mirror rows back into ledger records for comparison.
func Split(rows []Row) ([]core.Contribution, []core.Expense, error) {
	var (
		cs []core.Contribution
		es []core.Expense
	)
	for _, r := range rows {
		switch r.Kind {
		case KindExpense:
			es = append(es, core.Expense{ID: r.ID, Concept: r.Concept, Amount: r.Amount, Date: r.Date, Description: r.Description})
		case KindContribution:
			cs = append(cs, core.Contribution{ID: r.ID, Contributor: r.Contributor, Amount: r.Amount, Concept: r.Concept, Date: r.Date})
		default:
			return nil, nil, fmt.Errorf("row %s: unknown kind %q", r.ID, r.Kind)
		}
	}
	return cs, es, nil
}
