package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finca/internal/core"
	"finca/internal/records/recordstest"
)

func TestStoreContract(t *testing.T) {
	recordstest.Run(t, func(t *testing.T) recordstest.Backend { return New() })
}

func TestCollection_DuplicateIDRejected(t *testing.T) {
	ctx := context.Background()
	c := NewCollection[core.Contribution](func() string { return "fixed" })

	_, err := c.Insert(ctx, core.Contribution{Concept: "a"})
	require.NoError(t, err)
	_, err = c.Insert(ctx, core.Contribution{Concept: "b"})
	assert.Error(t, err)
	assert.Equal(t, 1, c.Len())
}

func TestCollection_ListIsACopy(t *testing.T) {
	ctx := context.Background()
	c := NewCollection[core.Contribution](func() string { return "id" })
	_, err := c.Insert(ctx, core.Contribution{Concept: "original"})
	require.NoError(t, err)

	got, err := c.List(ctx)
	require.NoError(t, err)
	got[0].Concept = "changed"

	again, err := c.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, "original", again[0].Concept)
}

func TestCollection_UpdateKeepsID(t *testing.T) {
	ctx := context.Background()
	c := NewCollection[core.Contribution](func() string { return "id-1" })
	_, err := c.Insert(ctx, core.Contribution{Concept: "a"})
	require.NoError(t, err)

	err = c.Update(ctx, "id-1", func(r core.Contribution) core.Contribution {
		r.ID = "other"
		r.Concept = "b"
		return r
	})
	require.NoError(t, err)

	got, err := c.Get(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, "b", got.Concept)
	assert.ErrorIs(t, c.Update(ctx, "nope", func(r core.Contribution) core.Contribution { return r }), core.ErrNotFound)
}

func TestStore_ConcurrentInserts(t *testing.T) {
	ctx := context.Background()
	s := New()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.InsertContribution(ctx, core.Contribution{
				Contributor: core.PedroJose,
				Amount:      float64(i),
				Concept:     fmt.Sprintf("c%d", i),
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := s.ListContributions(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 50)
}

func TestStore_ReturnedExpenseDoesNotAliasStore(t *testing.T) {
	ctx := context.Background()
	s := New()
	e, err := s.InsertExpense(ctx, core.Expense{Concept: "x", Amount: 1})
	require.NoError(t, err)
	_, err = s.InsertAttachment(ctx, e.ID, core.Attachment{FileName: "a.pdf"})
	require.NoError(t, err)

	got, err := s.GetExpense(ctx, e.ID)
	require.NoError(t, err)
	got.Attachments[0].FileName = "mutated"

	again, err := s.GetExpense(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "a.pdf", again.Attachments[0].FileName)
}
