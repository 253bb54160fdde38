// Package records declares the storage ports for expenses, contributions and
// attachments. Backends live in records/memory and storage (SQLite).
package records

import (
	"context"

	"finca/internal/core"
)

type (
	// ExpenseStore persists expenses. InsertExpense assigns an id when the
	// expense has none. DeleteExpense returns core.ErrNotFound for unknown ids.
	// ListExpenses returns every expense in insertion order with attachments.
	ExpenseStore interface {
		InsertExpense(ctx context.Context, e core.Expense) (core.Expense, error)
		GetExpense(ctx context.Context, id string) (core.Expense, error)
		DeleteExpense(ctx context.Context, id string) error
		ListExpenses(ctx context.Context) ([]core.Expense, error)
	}

	// ContributionStore persists contributions with the same contract as ExpenseStore.
	ContributionStore interface {
		InsertContribution(ctx context.Context, c core.Contribution) (core.Contribution, error)
		DeleteContribution(ctx context.Context, id string) error
		ListContributions(ctx context.Context) ([]core.Contribution, error)
	}

	// AttachmentStore binds attachment metadata to an existing expense.
	// Attachments keep submission order.
	AttachmentStore interface {
		InsertAttachment(ctx context.Context, expenseID string, a core.Attachment) (core.Attachment, error)
	}

	// ExpenseBackend is everything the expense side of the ledger needs.
	ExpenseBackend interface {
		ExpenseStore
		AttachmentStore
	}
)
