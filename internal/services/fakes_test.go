package services

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"finca/internal/amqp"
	"finca/internal/auth"
	"finca/internal/blob"
	"finca/internal/core"
	"finca/internal/records/memory"
)

var (
	signedIn = &auth.User{ID: "u1", Email: "ana@example.com", SessionID: "s1"}
	fixedNow = func() time.Time { return time.Date(2025, 5, 17, 9, 30, 0, 0, time.UTC) }
	errDown  = errors.New("database is locked")
)

type recordingPublisher struct {
	mu        sync.Mutex
	events    []*amqp.RecordEvent
	orphans   []*amqp.OrphanedBlob
	orphanErr error
}

func (p *recordingPublisher) PublishRecordEvent(_ context.Context, msg *amqp.RecordEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, msg)
	return nil
}

func (p *recordingPublisher) PublishOrphanedBlob(_ context.Context, msg *amqp.OrphanedBlob) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.orphanErr != nil {
		return p.orphanErr
	}
	p.orphans = append(p.orphans, msg)
	return nil
}

func (p *recordingPublisher) actions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Collection + ":" + e.Action
	}
	return out
}

// flakyStore wraps the memory store and can fail or block selected calls.
type flakyStore struct {
	*memory.Store
	failAttachment error
	failList       error
	listCalls      int
	mu             sync.Mutex
	afterWrite     func(ctx context.Context) // runs after a successful store write
}

func (f *flakyStore) InsertAttachment(ctx context.Context, expenseID string, a core.Attachment) (core.Attachment, error) {
	if f.failAttachment != nil {
		return core.Attachment{}, f.failAttachment
	}
	saved, err := f.Store.InsertAttachment(ctx, expenseID, a)
	f.written(ctx, err)
	return saved, err
}

func (f *flakyStore) DeleteExpense(ctx context.Context, id string) error {
	err := f.Store.DeleteExpense(ctx, id)
	f.written(ctx, err)
	return err
}

func (f *flakyStore) InsertContribution(ctx context.Context, c core.Contribution) (core.Contribution, error) {
	saved, err := f.Store.InsertContribution(ctx, c)
	f.written(ctx, err)
	return saved, err
}

func (f *flakyStore) written(ctx context.Context, err error) {
	if err == nil && f.afterWrite != nil {
		f.afterWrite(ctx)
	}
}

func (f *flakyStore) ListContributions(ctx context.Context) ([]core.Contribution, error) {
	f.mu.Lock()
	f.listCalls++
	f.mu.Unlock()
	if f.failList != nil {
		return nil, f.failList
	}
	return f.Store.ListContributions(ctx)
}

func (f *flakyStore) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

type flakyBlobs struct {
	*blob.MemoryStore
	deleteErr error
	deletes   []string
}

func (b *flakyBlobs) DeleteObject(ctx context.Context, key string) error {
	b.deletes = append(b.deletes, key)
	if b.deleteErr != nil {
		return b.deleteErr
	}
	return b.MemoryStore.DeleteObject(ctx, key)
}

type fixture struct {
	store     *flakyStore
	blobs     *flakyBlobs
	publisher *recordingPublisher
	ledger    *LedgerService
	attach    *AttachmentService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     &flakyStore{Store: memory.New()},
		blobs:     &flakyBlobs{MemoryStore: blob.NewMemoryStore("https://blobs.example")},
		publisher: &recordingPublisher{},
	}
	f.ledger = NewLedgerService(LedgerDeps{
		Expenses:      f.store,
		Contributions: f.store,
		Blobs:         f.blobs,
		Gate:          auth.NewGate("https://finca.example/login"),
		Publisher:     f.publisher,
		Now:           fixedNow,
	})
	f.attach = NewAttachmentService(f.ledger, f.blobs)
	return f
}

func (f *fixture) expense(t *testing.T, concept, amount string) core.Expense {
	t.Helper()
	e, err := f.ledger.CreateExpense(context.Background(), signedIn, core.ExpenseInput{Concept: concept, Amount: amount})
	require.NoError(t, err)
	return e
}

func pdfUpload(name string, size int) Upload {
	body := append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte("0"), size-9)...)
	return Upload{FileName: name, Size: int64(len(body)), Body: bytes.NewReader(body)}
}

func pngUpload(name string, size int, declared bool) Upload {
	header := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	body := append(header, bytes.Repeat([]byte{0}, size-len(header))...)
	up := Upload{FileName: name, Size: -1, Body: bytes.NewReader(body)}
	if declared {
		up.Size = int64(len(body))
	}
	return up
}

func textUpload(name string) Upload {
	return Upload{FileName: name, Size: -1, Body: bytes.NewReader([]byte("just some notes\n"))}
}
