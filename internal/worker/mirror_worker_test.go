package worker

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finca/internal/amqp"
	"finca/internal/blob"
	"finca/internal/core"
	"finca/internal/metrics"
	"finca/internal/sheets"
	sheetsmem "finca/internal/sheets/memory"
)

type failingBlobs struct {
	blob.Store
	err error
}

func (f failingBlobs) DeleteObject(context.Context, string) error { return f.err }

func newWorker(t *testing.T) (*Worker, *sheetsmem.Store, *blob.MemoryStore, *metrics.Metrics) {
	t.Helper()
	mirror := sheetsmem.New()
	blobs := blob.NewMemoryStore("")
	m := metrics.New()
	return New(mirror, blobs, m, nil), mirror, blobs, m
}

func rows(t *testing.T, m sheets.RowReader) []sheets.Row {
	t.Helper()
	out, err := m.ReadRows(context.Background())
	require.NoError(t, err)
	return out
}

func TestWorker_MirrorsCreatedRecords(t *testing.T) {
	w, mirror, _, m := newWorker(t)
	ctx := context.Background()

	e := core.Expense{ID: "e1", Concept: "Cerca", Amount: 50, Date: core.NewDate(2025, 3, 1)}
	c := core.Contribution{ID: "c1", Contributor: core.MariaElena, Amount: 80, Concept: "Cuota", Date: core.NewDate(2025, 3, 2)}

	require.NoError(t, w.HandleRecordEvent(ctx, amqp.NewExpenseCreated(e)))
	require.NoError(t, w.HandleRecordEvent(ctx, amqp.NewContributionCreated(c)))
	require.NoError(t, w.HandleRecordEvent(ctx, amqp.NewAttachmentCreated(core.Attachment{
		ID: "a1", ExpenseID: "e1", StorageURL: "memory://blobs/expenses/e1/x.pdf",
	})))

	got := rows(t, mirror)
	require.Len(t, got, 2)
	assert.Equal(t, sheets.KindExpense, got[0].Kind)
	assert.Equal(t, "memory://blobs/expenses/e1/x.pdf", got[0].Attachments)
	assert.Equal(t, core.MariaElena, got[1].Contributor)

	expected := `
# HELP finca_worker_messages_total Messages handled by the worker by queue and result.
# TYPE finca_worker_messages_total counter
finca_worker_messages_total{queue="records",result="ok"} 3
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "finca_worker_messages_total"))
}

func TestWorker_RedeliveredEventsApplyOnce(t *testing.T) {
	w, mirror, _, _ := newWorker(t)
	ctx := context.Background()

	created := amqp.NewExpenseCreated(core.Expense{ID: "e1", Concept: "Cerca", Amount: 50, Date: core.NewDate(2025, 3, 1)})
	attached := amqp.NewAttachmentCreated(core.Attachment{ID: "a1", ExpenseID: "e1", StorageURL: "memory://blobs/a.pdf"})

	for range 2 {
		require.NoError(t, w.HandleRecordEvent(ctx, created))
		require.NoError(t, w.HandleRecordEvent(ctx, attached))
	}

	got := rows(t, mirror)
	require.Len(t, got, 1)
	assert.Equal(t, "memory://blobs/a.pdf", got[0].Attachments)
}

func TestWorker_DeleteRemovesRow(t *testing.T) {
	w, mirror, _, _ := newWorker(t)
	ctx := context.Background()

	require.NoError(t, w.HandleRecordEvent(ctx, amqp.NewExpenseCreated(core.Expense{ID: "e1", Concept: "x", Amount: 1})))
	require.NoError(t, w.HandleRecordEvent(ctx, amqp.NewRecordDeleted(amqp.CollectionExpenses, "e1")))
	assert.Empty(t, rows(t, mirror))

	// redelivery of the same delete is harmless
	require.NoError(t, w.HandleRecordEvent(ctx, amqp.NewRecordDeleted(amqp.CollectionExpenses, "e1")))
}

func TestWorker_AttachmentForMissingRowIsDropped(t *testing.T) {
	w, _, _, _ := newWorker(t)
	err := w.HandleRecordEvent(context.Background(), amqp.NewAttachmentCreated(core.Attachment{ID: "a", ExpenseID: "gone"}))
	assert.NoError(t, err)
}

func TestWorker_EventWithoutPayloadFails(t *testing.T) {
	w, _, _, _ := newWorker(t)
	msg := &amqp.RecordEvent{Collection: amqp.CollectionExpenses, Action: amqp.ActionCreated, ID: "e1"}
	assert.Error(t, w.HandleRecordEvent(context.Background(), msg))
}

func TestWorker_HandleOrphanedBlob(t *testing.T) {
	w, _, blobs, _ := newWorker(t)
	ctx := context.Background()

	_, err := blobs.PutObject(ctx, "expenses/e1/k.png", "image/png", strings.NewReader("png"), 3)
	require.NoError(t, err)

	require.NoError(t, w.HandleOrphanedBlob(ctx, amqp.NewOrphanedBlob("expenses/e1/k.png", "e1", "insert failed")))
	assert.Equal(t, 0, blobs.Len())

	require.NoError(t, w.HandleOrphanedBlob(ctx, amqp.NewOrphanedBlob("expenses/e1/k.png", "e1", "again")),
		"an already deleted blob counts as reconciled")
}

func TestWorker_HandleOrphanedBlobFailure(t *testing.T) {
	down := errors.New("s3 down")
	w := New(sheetsmem.New(), failingBlobs{err: down}, nil, nil)
	err := w.HandleOrphanedBlob(context.Background(), amqp.NewOrphanedBlob("k", "", "r"))
	assert.ErrorIs(t, err, down)
}

func TestWorker_Reconcile(t *testing.T) {
	w, mirror, _, _ := newWorker(t)
	ctx := context.Background()

	_, err := mirror.AppendRow(ctx, sheets.Row{ID: "stale", Kind: sheets.KindExpense})
	require.NoError(t, err)
	_, err = mirror.AppendRow(ctx, sheets.ExpenseRow(core.Expense{ID: "e1", Concept: "kept"}))
	require.NoError(t, err)

	es := []core.Expense{{ID: "e1", Concept: "kept"}, {ID: "e2", Concept: "new"}}
	cs := []core.Contribution{{ID: "c1", Contributor: core.JuanCarlos, Amount: 5}}

	report, err := w.Reconcile(ctx, es, cs)
	require.NoError(t, err)
	assert.Equal(t, ReconcileReport{Appended: 2, Removed: 1}, report)

	ids := make([]string, 0)
	for _, r := range rows(t, mirror) {
		ids = append(ids, r.ID)
	}
	assert.ElementsMatch(t, []string{"e1", "c1", "e2"}, ids)

	report, err = w.Reconcile(ctx, es, cs)
	require.NoError(t, err)
	assert.Equal(t, ReconcileReport{}, report)
}
