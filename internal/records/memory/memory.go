package memory

import (
	"context"
	"slices"

	"github.com/google/uuid"

	"finca/internal/core"
	"finca/internal/records"
)

var (
	_ records.ExpenseBackend    = (*Store)(nil)
	_ records.ContributionStore = (*Store)(nil)
)

// Store keeps expenses, contributions and attachment metadata in memory.
type Store struct {
	expenses      *Collection[core.Expense]
	contributions *Collection[core.Contribution]
}

func New() *Store {
	return NewWithIDs(func() string { return uuid.NewString() })
}

// NewWithIDs builds a store whose ids come from newID.
func NewWithIDs(newID func() string) *Store {
	return &Store{
		expenses:      NewCollection[core.Expense](newID),
		contributions: NewCollection[core.Contribution](newID),
	}
}

func (s *Store) InsertExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	e.Attachments = slices.Clone(e.Attachments)
	if e.Attachments == nil {
		e.Attachments = []core.Attachment{}
	}
	return s.expenses.Insert(ctx, e)
}

func (s *Store) GetExpense(ctx context.Context, id string) (core.Expense, error) {
	e, err := s.expenses.Get(ctx, id)
	if err != nil {
		return core.Expense{}, err
	}
	e.Attachments = slices.Clone(e.Attachments)
	return e, nil
}

// DeleteExpense removes the expense and, with it, its attachment metadata.
func (s *Store) DeleteExpense(ctx context.Context, id string) error {
	return s.expenses.Delete(ctx, id)
}

func (s *Store) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	es, err := s.expenses.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range es {
		es[i].Attachments = slices.Clone(es[i].Attachments)
	}
	return es, nil
}

func (s *Store) InsertAttachment(ctx context.Context, expenseID string, a core.Attachment) (core.Attachment, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.ExpenseID = expenseID
	err := s.expenses.Update(ctx, expenseID, func(e core.Expense) core.Expense {
		e.Attachments = append(slices.Clone(e.Attachments), a)
		return e
	})
	if err != nil {
		return core.Attachment{}, err
	}
	return a, nil
}

func (s *Store) InsertContribution(ctx context.Context, c core.Contribution) (core.Contribution, error) {
	return s.contributions.Insert(ctx, c)
}

func (s *Store) DeleteContribution(ctx context.Context, id string) error {
	return s.contributions.Delete(ctx, id)
}

func (s *Store) ListContributions(ctx context.Context) ([]core.Contribution, error) {
	return s.contributions.List(ctx)
}
