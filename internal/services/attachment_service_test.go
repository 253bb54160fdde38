package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finca/internal/core"
)

const mib = 1 << 20

func TestAttach_PDFStoredUnderGeneratedKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.expense(t, "Veterinario", "300")

	a, err := f.attach.Attach(ctx, signedIn, e.ID, pdfUpload("Factura Mayo.pdf", 2*mib))
	require.NoError(t, err)

	assert.Equal(t, core.MimePDF, a.MimeCategory)
	assert.Equal(t, "application/pdf", a.ContentType)
	assert.Equal(t, "Factura Mayo.pdf", a.FileName)
	assert.Equal(t, int64(2*mib), a.SizeBytes)
	assert.Equal(t, e.ID, a.ExpenseID)
	assert.True(t, strings.HasPrefix(a.StorageKey, "expenses/"+e.ID+"/"))
	assert.True(t, strings.HasSuffix(a.StorageKey, ".pdf"))
	assert.NotContains(t, a.StorageKey, "Factura")
	assert.Equal(t, "https://blobs.example/"+a.StorageKey, a.StorageURL)

	obj, ok := f.blobs.Get(a.StorageKey)
	require.True(t, ok)
	assert.Len(t, obj.Data, 2*mib)

	got, err := f.store.GetExpense(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, got.Attachments, 1)
	assert.Equal(t, a, got.Attachments[0])
}

func TestAttach_SameFileNameGetsDistinctKeys(t *testing.T) {
	f := newFixture(t)
	e := f.expense(t, "Veterinario", "300")

	first, err := f.attach.Attach(context.Background(), signedIn, e.ID, pdfUpload("factura.pdf", 1024))
	require.NoError(t, err)
	second, err := f.attach.Attach(context.Background(), signedIn, e.ID, pdfUpload("factura.pdf", 1024))
	require.NoError(t, err)
	assert.NotEqual(t, first.StorageKey, second.StorageKey)
}

func TestAttachAll_KeepsSubmissionOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.expense(t, "Obras", "900")

	saved, err := f.attach.AttachAll(ctx, signedIn, e.ID, []Upload{
		pngUpload("foto-1.png", 4096, true),
		pdfUpload("presupuesto.pdf", 2048),
		pngUpload("foto-2.png", 4096, false),
	})
	require.NoError(t, err)
	require.Len(t, saved, 3)

	got, err := f.store.GetExpense(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, got.Attachments, 3)
	assert.Equal(t, "foto-1.png", got.Attachments[0].FileName)
	assert.Equal(t, core.MimeImage, got.Attachments[0].MimeCategory)
	assert.Equal(t, "presupuesto.pdf", got.Attachments[1].FileName)
	assert.Equal(t, "foto-2.png", got.Attachments[2].FileName)
}

func TestAttachAll_StopsAtFirstFailure(t *testing.T) {
	f := newFixture(t)
	e := f.expense(t, "Obras", "900")

	saved, err := f.attach.AttachAll(context.Background(), signedIn, e.ID, []Upload{
		pdfUpload("ok.pdf", 1024),
		textUpload("notas.txt"),
		pdfUpload("never.pdf", 1024),
	})
	assert.ErrorIs(t, err, core.ErrUnsupportedFileType)
	assert.Contains(t, err.Error(), "notas.txt")
	require.Len(t, saved, 1)
	assert.Equal(t, 1, f.blobs.Len())
}

func TestAttach_TooLarge(t *testing.T) {
	f := newFixture(t)
	e := f.expense(t, "Obras", "900")

	t.Run("declared size", func(t *testing.T) {
		_, err := f.attach.Attach(context.Background(), signedIn, e.ID, pngUpload("big.png", 12*mib, true))
		assert.ErrorIs(t, err, core.ErrFileTooLarge)
	})
	t.Run("actual size", func(t *testing.T) {
		_, err := f.attach.Attach(context.Background(), signedIn, e.ID, pngUpload("big.png", 12*mib, false))
		assert.ErrorIs(t, err, core.ErrFileTooLarge)
	})
	t.Run("exactly the limit is accepted", func(t *testing.T) {
		_, err := f.attach.Attach(context.Background(), signedIn, e.ID, pdfUpload("limit.pdf", int(core.MaxAttachmentBytes)))
		assert.NoError(t, err)
	})

	got, err := f.store.GetExpense(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Len(t, got.Attachments, 1)
	assert.Equal(t, 1, f.blobs.Len())
}

func TestAttach_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.expense(t, "Obras", "900")

	_, err := f.attach.Attach(ctx, signedIn, e.ID, textUpload("notas.txt"))
	assert.ErrorIs(t, err, core.ErrUnsupportedFileType)
	assert.True(t, core.IsValidation(err))

	_, err = f.attach.Attach(ctx, signedIn, e.ID, Upload{FileName: "empty.pdf", Size: 0, Body: bytes.NewReader(nil)})
	assert.ErrorIs(t, err, core.ErrMissingField)

	_, err = f.attach.Attach(ctx, signedIn, "missing", pdfUpload("a.pdf", 1024))
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = f.attach.Attach(ctx, nil, e.ID, pdfUpload("a.pdf", 1024))
	assert.ErrorIs(t, err, core.ErrDenied)

	assert.Zero(t, f.blobs.Len())
}

func TestAttach_InsertFailureRemovesBlob(t *testing.T) {
	f := newFixture(t)
	e := f.expense(t, "Obras", "900")
	f.store.failAttachment = errDown

	_, err := f.attach.Attach(context.Background(), signedIn, e.ID, pdfUpload("a.pdf", 1024))
	assert.ErrorIs(t, err, errDown)

	assert.Zero(t, f.blobs.Len())
	assert.Len(t, f.blobs.deletes, 1)
	assert.Empty(t, f.publisher.orphans)
}

func TestAttach_CallerGoneAfterInsertKeepsBlob(t *testing.T) {
	f := newFixture(t)
	e := f.expense(t, "Obras", "900")
	ctx, cancel := context.WithCancel(context.Background())
	f.store.afterWrite = func(context.Context) { cancel() }

	_, err := f.attach.Attach(ctx, signedIn, e.ID, pdfUpload("a.pdf", 1024))
	assert.ErrorIs(t, err, context.Canceled)

	stored, err := f.store.GetExpense(context.Background(), e.ID)
	require.NoError(t, err)
	require.Len(t, stored.Attachments, 1)
	_, ok := f.blobs.Get(stored.Attachments[0].StorageKey)
	assert.True(t, ok, "attachment row must keep its blob")
	assert.Empty(t, f.blobs.deletes)
	assert.Empty(t, f.publisher.orphans)
	actions := f.publisher.actions()
	assert.Equal(t, "attachments:created", actions[len(actions)-1])
}

func TestAttach_FailedCompensationQueuesOrphan(t *testing.T) {
	f := newFixture(t)
	e := f.expense(t, "Obras", "900")
	f.store.failAttachment = errDown
	f.blobs.deleteErr = errors.New("s3 unreachable")

	_, err := f.attach.Attach(context.Background(), signedIn, e.ID, pdfUpload("a.pdf", 1024))
	assert.ErrorIs(t, err, errDown)

	require.Len(t, f.publisher.orphans, 1)
	assert.Equal(t, f.blobs.deletes[0], f.publisher.orphans[0].Key)
	assert.Equal(t, e.ID, f.publisher.orphans[0].ExpenseID)
	assert.Contains(t, f.publisher.orphans[0].Reason, "attachment insert failed")
}

func TestAttach_OrphanQueueDownStillReturnsInsertError(t *testing.T) {
	f := newFixture(t)
	e := f.expense(t, "Obras", "900")
	f.store.failAttachment = errDown
	f.blobs.deleteErr = errors.New("s3 unreachable")
	f.publisher.orphanErr = errors.New("amqp down")

	_, err := f.attach.Attach(context.Background(), signedIn, e.ID, pdfUpload("a.pdf", 1024))
	assert.ErrorIs(t, err, errDown)
	assert.Equal(t, 1, f.blobs.Len())
}

func TestAttach_ExpenseDeletedDuringUpload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.expense(t, "Obras", "900")

	f.attach.newKey = func(expenseID, ext string) string {
		require.NoError(t, f.ledger.DeleteExpense(ctx, signedIn, expenseID))
		return storageKey(expenseID, ext)
	}

	_, err := f.attach.Attach(ctx, signedIn, e.ID, pdfUpload("a.pdf", 1024))
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.Zero(t, f.blobs.Len())
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "factura.pdf", displayName(`C:\Users\ana\factura.pdf`))
	assert.Equal(t, "foto.jpg", displayName("../../foto.jpg"))
	assert.Equal(t, "archivo", displayName(""))
}
