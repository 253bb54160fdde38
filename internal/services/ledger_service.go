package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"finca/internal/amqp"
	"finca/internal/auth"
	"finca/internal/blob"
	"finca/internal/cache"
	"finca/internal/core"
	"finca/internal/log"
	"finca/internal/metrics"
	"finca/internal/records"
)

// Publisher sends ledger messages. The AMQP client implements it.
type Publisher interface {
	PublishRecordEvent(ctx context.Context, msg *amqp.RecordEvent) error
	PublishOrphanedBlob(ctx context.Context, msg *amqp.OrphanedBlob) error
}

// LedgerDeps wires a LedgerService. Publisher, Cache, Metrics and Logger are optional.
type LedgerDeps struct {
	Expenses      records.ExpenseBackend
	Contributions records.ContributionStore
	Blobs         blob.Store
	Gate          *auth.Gate
	Publisher     Publisher
	Cache         cache.Cache[core.Dashboard]
	Metrics       *metrics.Metrics
	Logger        *log.Logger
	RecentLimit   int
	Now           func() time.Time
}

// LedgerService runs the record lifecycle: gate, validate, persist, invalidate, announce.
// Mutations run one at a time; reads are never blocked by them.
type LedgerService struct {
	expenses      records.ExpenseBackend
	contributions records.ContributionStore
	blobs         blob.Store
	gate          *auth.Gate
	publisher     Publisher
	cache         cache.Cache[core.Dashboard]
	metrics       *metrics.Metrics
	logger        *log.Logger
	recentLimit   int
	now           func() time.Time

	mutating   chan struct{}
	generation atomic.Uint64
	loads      singleflight.Group
}

func NewLedgerService(d LedgerDeps) *LedgerService {
	if d.Cache == nil {
		d.Cache = cache.NewLRUCache[core.Dashboard](16, time.Minute)
	}
	if d.Logger == nil {
		d.Logger = log.New(log.DefaultConfig())
	}
	if d.RecentLimit <= 0 {
		d.RecentLimit = core.DefaultRecentLimit
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Gate == nil {
		d.Gate = auth.NewGate("")
	}
	return &LedgerService{
		expenses:      d.Expenses,
		contributions: d.Contributions,
		blobs:         d.Blobs,
		gate:          d.Gate,
		publisher:     d.Publisher,
		cache:         d.Cache,
		metrics:       d.Metrics,
		logger:        d.Logger.WithComponent(log.ComponentLedger),
		recentLimit:   d.RecentLimit,
		now:           d.Now,
		mutating:      make(chan struct{}, 1),
	}
}

// Contributors returns the closed contributor set for selection lists.
func (s *LedgerService) Contributors() []core.Contributor {
	return core.KnownContributors()
}

// RecentLimit is the configured dashboard default.
func (s *LedgerService) RecentLimit() int {
	return s.recentLimit
}

func (s *LedgerService) CreateExpense(ctx context.Context, u *auth.User, in core.ExpenseInput) (core.Expense, error) {
	if err := s.gate.RequireSignedIn(u); err != nil {
		return core.Expense{}, err
	}
	e, err := core.ValidateExpense(in, s.now())
	if err != nil {
		return core.Expense{}, err
	}

	var saved core.Expense
	committed, err := s.mutate(ctx, func(ctx context.Context) (err error) {
		saved, err = s.expenses.InsertExpense(ctx, e)
		return err
	})
	s.metrics.Mutation(amqp.CollectionExpenses, amqp.ActionCreated, storeErr(committed, err))
	if committed {
		s.logMutation(ctx, log.OpCreate, amqp.CollectionExpenses, saved.ID, u)
		s.publish(ctx, amqp.NewExpenseCreated(saved))
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}
	return saved, nil
}

func (s *LedgerService) CreateContribution(ctx context.Context, u *auth.User, in core.ContributionInput) (core.Contribution, error) {
	if err := s.gate.RequireSignedIn(u); err != nil {
		return core.Contribution{}, err
	}
	c, err := core.ValidateContribution(in, s.now())
	if err != nil {
		return core.Contribution{}, err
	}

	var saved core.Contribution
	committed, err := s.mutate(ctx, func(ctx context.Context) (err error) {
		saved, err = s.contributions.InsertContribution(ctx, c)
		return err
	})
	s.metrics.Mutation(amqp.CollectionContributions, amqp.ActionCreated, storeErr(committed, err))
	if committed {
		s.logMutation(ctx, log.OpCreate, amqp.CollectionContributions, saved.ID, u)
		s.publish(ctx, amqp.NewContributionCreated(saved))
	}
	if err != nil {
		return core.Contribution{}, fmt.Errorf("create contribution: %w", err)
	}
	return saved, nil
}

// DeleteExpense removes the expense and its attachments. Blobs that cannot be
// deleted are queued for reconciliation; they never fail the delete.
func (s *LedgerService) DeleteExpense(ctx context.Context, u *auth.User, id string) error {
	if err := s.gate.RequireSignedIn(u); err != nil {
		return err
	}

	var attachments []core.Attachment
	committed, err := s.mutate(ctx, func(ctx context.Context) error {
		e, err := s.expenses.GetExpense(ctx, id)
		if err != nil {
			return err
		}
		attachments = e.Attachments
		return s.expenses.DeleteExpense(ctx, id)
	})
	s.metrics.Mutation(amqp.CollectionExpenses, amqp.ActionDeleted, storeErr(committed, err))
	if committed {
		s.logMutation(ctx, log.OpDelete, amqp.CollectionExpenses, id, u)
		for _, a := range attachments {
			s.removeBlob(ctx, a.StorageKey, id, "expense deleted")
		}
		s.publish(ctx, amqp.NewRecordDeleted(amqp.CollectionExpenses, id))
	}
	if err != nil {
		return fmt.Errorf("delete expense %s: %w", id, err)
	}
	return nil
}

func (s *LedgerService) DeleteContribution(ctx context.Context, u *auth.User, id string) error {
	if err := s.gate.RequireSignedIn(u); err != nil {
		return err
	}

	committed, err := s.mutate(ctx, func(ctx context.Context) error {
		return s.contributions.DeleteContribution(ctx, id)
	})
	s.metrics.Mutation(amqp.CollectionContributions, amqp.ActionDeleted, storeErr(committed, err))
	if committed {
		s.logMutation(ctx, log.OpDelete, amqp.CollectionContributions, id, u)
		s.publish(ctx, amqp.NewRecordDeleted(amqp.CollectionContributions, id))
	}
	if err != nil {
		return fmt.Errorf("delete contribution %s: %w", id, err)
	}
	return nil
}

func (s *LedgerService) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	es, err := s.expenses.ListExpenses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return es, nil
}

func (s *LedgerService) ListContributions(ctx context.Context) ([]core.Contribution, error) {
	cs, err := s.contributions.ListContributions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list contributions: %w", err)
	}
	return cs, nil
}

// Dashboard returns totals, balance and the recent records, showing at most
// recent of each. Concurrent callers share one load.
func (s *LedgerService) Dashboard(ctx context.Context, recent int) (core.Dashboard, error) {
	gen := s.generation.Load()
	key := fmt.Sprintf("dashboard:%d:%d", gen, recent)

	if d, ok := s.cache.Get(key); ok {
		s.metrics.DashboardCache(true)
		return d, nil
	}
	s.metrics.DashboardCache(false)

	v, err, _ := s.loads.Do(key, func() (any, error) {
		d, err := s.loadDashboard(ctx, recent)
		if err != nil {
			return core.Dashboard{}, err
		}
		if s.generation.Load() == gen {
			s.cache.Set(key, d)
		}
		return d, nil
	})
	if err != nil {
		return core.Dashboard{}, fmt.Errorf("dashboard: %w", err)
	}
	return v.(core.Dashboard), nil
}

// Refresh drops cached views and reloads the dashboard with the default limit.
func (s *LedgerService) Refresh(ctx context.Context) (core.Dashboard, error) {
	s.invalidate()
	s.logger.DebugContext(ctx, "Dashboard refresh requested", log.FieldOperation, log.OpRefresh)
	return s.Dashboard(ctx, s.recentLimit)
}

func (s *LedgerService) loadDashboard(ctx context.Context, recent int) (core.Dashboard, error) {
	var (
		cs []core.Contribution
		es []core.Expense
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		cs, err = s.contributions.ListContributions(gctx)
		return err
	})
	g.Go(func() (err error) {
		es, err = s.expenses.ListExpenses(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.Dashboard{}, err
	}
	return core.BuildDashboard(cs, es, recent), nil
}

// mutate runs fn once no other mutation is running. Cached views are
// invalidated after fn whether or not the caller is still waiting.
//
// committed reports whether fn succeeded. When it did but ctx ended
// meanwhile, err is ctx.Err(): the change is stored, yet the caller gave up
// on the result. Post-commit work must key off committed, not err.
func (s *LedgerService) mutate(ctx context.Context, fn func(context.Context) error) (committed bool, err error) {
	select {
	case s.mutating <- struct{}{}:
	case <-ctx.Done():
		return false, ctx.Err()
	}
	defer func() { <-s.mutating }()

	err = fn(ctx)
	s.invalidate()
	if err != nil {
		return false, err
	}
	return true, ctx.Err()
}

// storeErr is the store's own outcome, ignoring a caller that left after a commit.
func storeErr(committed bool, err error) error {
	if committed {
		return nil
	}
	return err
}

func (s *LedgerService) invalidate() {
	s.generation.Add(1)
	s.cache.Clear()
}

func (s *LedgerService) publish(ctx context.Context, msg *amqp.RecordEvent) {
	if s.publisher == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if err := s.publisher.PublishRecordEvent(ctx, msg); err != nil {
		// the record is stored; the mirror catches up from later events
		fields := log.NewFields().WithRecord(msg.Collection, msg.ID).WithError(err)
		s.logger.ErrorContext(ctx, "Failed to publish record event", fields.ToSlice()...)
	}
}

// removeBlob deletes key, falling back to the reconciliation queue.
func (s *LedgerService) removeBlob(ctx context.Context, key, expenseID, reason string) {
	if s.blobs == nil || key == "" {
		return
	}
	ctx = context.WithoutCancel(ctx)
	err := s.blobs.DeleteObject(ctx, key)
	if err == nil || errors.Is(err, blob.ErrNotFound) {
		return
	}

	s.logger.WarnContext(ctx, "Blob delete failed, queueing for reconciliation",
		log.FieldStorageKey, key, log.FieldError, err)
	s.queueOrphan(ctx, key, expenseID, reason)
}

func (s *LedgerService) queueOrphan(ctx context.Context, key, expenseID, reason string) {
	if s.publisher != nil {
		err := s.publisher.PublishOrphanedBlob(ctx, amqp.NewOrphanedBlob(key, expenseID, reason))
		if err == nil {
			s.metrics.OrphanedBlob("queued")
			return
		}
		s.logger.ErrorContext(ctx, "Failed to queue orphaned blob", log.FieldStorageKey, key, log.FieldError, err)
	}
	s.metrics.OrphanedBlob("lost")
	s.logger.ErrorContext(ctx, "Orphaned blob left in storage",
		log.FieldStorageKey, key,
		log.FieldRecordID, expenseID,
		"reason", reason)
}

func (s *LedgerService) logMutation(ctx context.Context, op, collection, id string, u *auth.User) {
	fields := log.NewFields().WithOperation(op).WithRecord(collection, id).WithUser(u.ID)
	s.logger.InfoContext(ctx, "Ledger record "+op+"d", fields.ToSlice()...)
}
