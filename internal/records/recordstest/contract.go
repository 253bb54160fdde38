// Package recordstest holds the behaviour every record store backend must share.
package recordstest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finca/internal/core"
	"finca/internal/records"
)

// Backend is the full set of ports a contract run exercises.
type Backend interface {
	records.ExpenseBackend
	records.ContributionStore
}

// Run checks b against the record store contract. newBackend must return an
// empty backend on every call.
func Run(t *testing.T, newBackend func(t *testing.T) Backend) {
	t.Helper()
	ctx := context.Background()

	t.Run("insert assigns id and list keeps insertion order", func(t *testing.T) {
		b := newBackend(t)
		first, err := b.InsertExpense(ctx, core.Expense{Concept: "Abono", Amount: 120, Date: core.NewDate(2025, 3, 1)})
		require.NoError(t, err)
		second, err := b.InsertExpense(ctx, core.Expense{Concept: "Gasoil", Amount: 80.5, Date: core.NewDate(2025, 2, 1), Description: "tractor"})
		require.NoError(t, err)
		assert.NotEmpty(t, first.ID)
		assert.NotEqual(t, first.ID, second.ID)

		got, err := b.ListExpenses(ctx)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, first.ID, got[0].ID)
		assert.Equal(t, "Gasoil", got[1].Concept)
		assert.Equal(t, 80.5, got[1].Amount)
		assert.Equal(t, "tractor", got[1].Description)
		assert.Equal(t, "2025-02-01", got[1].Date.String())
		assert.NotNil(t, got[0].Attachments)
	})

	t.Run("client supplied id is kept", func(t *testing.T) {
		b := newBackend(t)
		c, err := b.InsertContribution(ctx, core.Contribution{ID: "c-1", Contributor: core.AnaLucia, Amount: 10, Concept: "cuota", Date: core.NewDate(2025, 1, 2)})
		require.NoError(t, err)
		assert.Equal(t, "c-1", c.ID)
	})

	t.Run("delete removes exactly one record", func(t *testing.T) {
		b := newBackend(t)
		keep, err := b.InsertContribution(ctx, core.Contribution{Contributor: core.JuanCarlos, Amount: 100, Concept: "a", Date: core.NewDate(2025, 1, 1)})
		require.NoError(t, err)
		drop, err := b.InsertContribution(ctx, core.Contribution{Contributor: core.MariaElena, Amount: 50, Concept: "b", Date: core.NewDate(2025, 1, 2)})
		require.NoError(t, err)

		require.NoError(t, b.DeleteContribution(ctx, drop.ID))

		got, err := b.ListContributions(ctx)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, keep.ID, got[0].ID)
		assert.Equal(t, core.JuanCarlos, got[0].Contributor)
	})

	t.Run("delete of unknown id is not found and changes nothing", func(t *testing.T) {
		b := newBackend(t)
		_, err := b.InsertExpense(ctx, core.Expense{Concept: "Abono", Amount: 1, Date: core.NewDate(2025, 1, 1)})
		require.NoError(t, err)

		assert.ErrorIs(t, b.DeleteExpense(ctx, "missing"), core.ErrNotFound)
		assert.ErrorIs(t, b.DeleteContribution(ctx, "missing"), core.ErrNotFound)

		got, err := b.ListExpenses(ctx)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("get unknown expense is not found", func(t *testing.T) {
		b := newBackend(t)
		_, err := b.GetExpense(ctx, "missing")
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("attachments keep submission order", func(t *testing.T) {
		b := newBackend(t)
		e, err := b.InsertExpense(ctx, core.Expense{Concept: "Veterinario", Amount: 300, Date: core.NewDate(2025, 4, 4)})
		require.NoError(t, err)

		for _, name := range []string{"factura.pdf", "foto.jpg", "recibo.png"} {
			_, err := b.InsertAttachment(ctx, e.ID, core.Attachment{
				FileName:     name,
				MimeCategory: core.MimeImage,
				ContentType:  "image/png",
				StorageKey:   "expenses/" + e.ID + "/" + name,
				StorageURL:   "https://blob.example/" + name,
				SizeBytes:    42,
			})
			require.NoError(t, err)
		}

		got, err := b.GetExpense(ctx, e.ID)
		require.NoError(t, err)
		require.Len(t, got.Attachments, 3)
		assert.Equal(t, "factura.pdf", got.Attachments[0].FileName)
		assert.Equal(t, "foto.jpg", got.Attachments[1].FileName)
		assert.Equal(t, "recibo.png", got.Attachments[2].FileName)
		for _, a := range got.Attachments {
			assert.NotEmpty(t, a.ID)
			assert.Equal(t, e.ID, a.ExpenseID)
			assert.Equal(t, int64(42), a.SizeBytes)
		}
	})

	t.Run("attachment on unknown expense is not found", func(t *testing.T) {
		b := newBackend(t)
		_, err := b.InsertAttachment(ctx, "missing", core.Attachment{FileName: "x.pdf", StorageKey: "k"})
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("deleting an expense drops its attachments", func(t *testing.T) {
		b := newBackend(t)
		e, err := b.InsertExpense(ctx, core.Expense{Concept: "Semillas", Amount: 20, Date: core.NewDate(2025, 4, 4)})
		require.NoError(t, err)
		_, err = b.InsertAttachment(ctx, e.ID, core.Attachment{FileName: "a.pdf", MimeCategory: core.MimePDF, StorageKey: "k1"})
		require.NoError(t, err)

		require.NoError(t, b.DeleteExpense(ctx, e.ID))
		_, err = b.GetExpense(ctx, e.ID)
		assert.ErrorIs(t, err, core.ErrNotFound)
		_, err = b.InsertAttachment(ctx, e.ID, core.Attachment{FileName: "b.pdf", StorageKey: "k2"})
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("list of empty store is empty", func(t *testing.T) {
		b := newBackend(t)
		es, err := b.ListExpenses(ctx)
		require.NoError(t, err)
		assert.Empty(t, es)
		cs, err := b.ListContributions(ctx)
		require.NoError(t, err)
		assert.Empty(t, cs)
	})
}
