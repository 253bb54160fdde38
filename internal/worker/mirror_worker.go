// Package worker consumes ledger messages: it keeps the spreadsheet mirror in
// step with the store and removes blobs the ledger gave up on.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"finca/internal/amqp"
	"finca/internal/blob"
	"finca/internal/core"
	applog "finca/internal/log"
	"finca/internal/metrics"
	"finca/internal/sheets"
)

// Worker handles record events and orphaned blob messages.
type Worker struct {
	mirror  sheets.Mirror
	blobs   blob.Store
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func New(mirror sheets.Mirror, blobs blob.Store, m *metrics.Metrics, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		mirror:  mirror,
		blobs:   blobs,
		metrics: m,
		logger:  logger.With(applog.FieldComponent, applog.ComponentWorker),
	}
}

// HandleRecordEvent applies one ledger mutation to the mirror. Returning an
// error asks the broker to redeliver.
func (w *Worker) HandleRecordEvent(ctx context.Context, msg *amqp.RecordEvent) error {
	err := w.applyRecordEvent(ctx, msg)
	w.metrics.WorkerMessage("records", err)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to mirror record event",
			applog.FieldOperation, applog.OpMirror,
			applog.FieldCollection, msg.Collection,
			applog.FieldRecordID, msg.ID,
			"action", msg.Action,
			applog.FieldError, err)
	}
	return err
}

func (w *Worker) applyRecordEvent(ctx context.Context, msg *amqp.RecordEvent) error {
	switch {
	case msg.Action == amqp.ActionCreated && msg.Collection == amqp.CollectionExpenses:
		if msg.Expense == nil {
			return fmt.Errorf("expense event %s without payload", msg.ID)
		}
		return w.append(ctx, sheets.ExpenseRow(*msg.Expense))

	case msg.Action == amqp.ActionCreated && msg.Collection == amqp.CollectionContributions:
		if msg.Contribution == nil {
			return fmt.Errorf("contribution event %s without payload", msg.ID)
		}
		return w.append(ctx, sheets.ContributionRow(*msg.Contribution))

	case msg.Action == amqp.ActionCreated && msg.Collection == amqp.CollectionAttachments:
		if msg.Attachment == nil {
			return fmt.Errorf("attachment event %s without payload", msg.ID)
		}
		err := w.mirror.AddAttachment(ctx, msg.Attachment.ExpenseID, msg.Attachment.StorageURL)
		if errors.Is(err, sheets.ErrRowNotFound) {
			// The expense was deleted before the attachment reached the mirror.
			w.logger.WarnContext(ctx, "Dropping attachment for missing row",
				applog.FieldRecordID, msg.Attachment.ExpenseID,
				applog.FieldStorageKey, msg.Attachment.StorageKey)
			return nil
		}
		return err

	case msg.Action == amqp.ActionDeleted && msg.Collection != amqp.CollectionAttachments:
		if err := w.mirror.DeleteRow(ctx, msg.ID); err != nil {
			return fmt.Errorf("delete row %s: %w", msg.ID, err)
		}
		w.logger.InfoContext(ctx, "Removed ledger row",
			applog.FieldCollection, msg.Collection, applog.FieldRecordID, msg.ID)
		return nil

	default:
		w.logger.DebugContext(ctx, "Ignoring record event",
			applog.FieldCollection, msg.Collection, "action", msg.Action, applog.FieldRecordID, msg.ID)
		return nil
	}
}

func (w *Worker) append(ctx context.Context, r sheets.Row) error {
	ref, err := w.mirror.AppendRow(ctx, r)
	if err != nil {
		return fmt.Errorf("append row %s: %w", r.ID, err)
	}
	w.logger.InfoContext(ctx, "Mirrored ledger row", applog.FieldRecordID, r.ID, "kind", r.Kind, "ref", ref)
	return nil
}

// HandleOrphanedBlob deletes a blob no attachment points to. A blob that is
// already gone counts as reconciled.
func (w *Worker) HandleOrphanedBlob(ctx context.Context, msg *amqp.OrphanedBlob) error {
	err := w.blobs.DeleteObject(ctx, msg.Key)
	if errors.Is(err, blob.ErrNotFound) {
		err = nil
	}
	w.metrics.WorkerMessage("orphans", err)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to remove orphaned blob",
			applog.FieldOperation, applog.OpReconcile,
			applog.FieldStorageKey, msg.Key,
			applog.FieldError, err)
		return fmt.Errorf("delete orphaned blob %s: %w", msg.Key, err)
	}
	w.metrics.OrphanedBlob("reconciled")
	w.logger.InfoContext(ctx, "Removed orphaned blob",
		applog.FieldStorageKey, msg.Key,
		applog.FieldRecordID, msg.ExpenseID,
		"reason", msg.Reason)
	return nil
}

// ReconcileReport summarizes a startup reconciliation.
type ReconcileReport struct {
	Appended int
	Removed  int
}

// Reconcile brings the mirror in line with the store: rows for records the
// mirror lacks are appended and rows for records the store no longer has are
// removed. It recovers from messages lost while the worker was down.
func (w *Worker) Reconcile(ctx context.Context, es []core.Expense, cs []core.Contribution) (ReconcileReport, error) {
	var report ReconcileReport
	rows, err := w.mirror.ReadRows(ctx)
	if err != nil {
		return report, fmt.Errorf("read mirror: %w", err)
	}

	mirrored := make(map[string]bool, len(rows))
	for _, r := range rows {
		mirrored[r.ID] = true
	}
	live := make(map[string]bool, len(es)+len(cs))

	want := make([]sheets.Row, 0, len(es)+len(cs))
	for _, c := range cs {
		live[c.ID] = true
		want = append(want, sheets.ContributionRow(c))
	}
	for _, e := range es {
		live[e.ID] = true
		want = append(want, sheets.ExpenseRow(e))
	}

	for _, r := range rows {
		if live[r.ID] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := w.mirror.DeleteRow(ctx, r.ID); err != nil {
			return report, fmt.Errorf("remove stale row %s: %w", r.ID, err)
		}
		report.Removed++
	}
	for _, r := range want {
		if mirrored[r.ID] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := w.append(ctx, r); err != nil {
			return report, err
		}
		report.Appended++
	}

	w.logger.InfoContext(ctx, "Mirror reconciled",
		applog.FieldOperation, applog.OpReconcile,
		"appended", report.Appended,
		"removed", report.Removed)
	return report, nil
}
