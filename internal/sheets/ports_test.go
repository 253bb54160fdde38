package sheets

import (
	"testing"

	"finca/internal/core"
)

func TestExpenseRow(t *testing.T) {
	e := core.Expense{
		ID:          "e1",
		Date:        core.NewDate(2025, 3, 1),
		Concept:     "Abono",
		Description: "   ",
		Amount:      12.5,
		Attachments: []core.Attachment{
			{StorageURL: "memory://blobs/a.pdf"},
			{StorageURL: "memory://blobs/b.png"},
		},
	}

	r := ExpenseRow(e)
	if r.Kind != KindExpense {
		t.Fatalf("Kind = %q, want %q", r.Kind, KindExpense)
	}
	if r.Description != "" {
		t.Errorf("blank description written as %q", r.Description)
	}
	if want := "memory://blobs/a.pdf memory://blobs/b.png"; r.Attachments != want {
		t.Errorf("Attachments = %q, want %q", r.Attachments, want)
	}

	e.Description = "para el potrero"
	if got := ExpenseRow(e).Description; got != "para el potrero" {
		t.Errorf("Description = %q", got)
	}
}

func TestRowHasAttachment(t *testing.T) {
	r := Row{Attachments: "memory://blobs/a.pdf memory://blobs/ab.pdf"}
	if !r.HasAttachment("memory://blobs/ab.pdf") {
		t.Error("listed url not found")
	}
	if r.HasAttachment("memory://blobs/b.pdf") {
		t.Error("substring matched as an attachment")
	}
	if (Row{}).HasAttachment("memory://blobs/a.pdf") {
		t.Error("empty cell reported an attachment")
	}
}
