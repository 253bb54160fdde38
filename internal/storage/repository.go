package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"finca/internal/core"
	"finca/internal/records"

	_ "modernc.org/sqlite"
)

var (
	_ records.ExpenseBackend    = (*SQLiteRepository)(nil)
	_ records.ContributionStore = (*SQLiteRepository)(nil)
)

// SQLiteRepository is the durable record store.
type SQLiteRepository struct {
	db    *sql.DB
	newID func() string
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single writer avoids SQLITE_BUSY under concurrent requests.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, newID: uuid.NewString}, nil
}

func dsn(dbPath string) string {
	return "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database answers.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, core.ErrStoreUnavailable, err)
}

func (r *SQLiteRepository) InsertExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if e.ID == "" {
		e.ID = r.newID()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (id, concept, amount, date, description) VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.Concept, e.Amount, e.Date.String(), e.Description)
	if err != nil {
		return core.Expense{}, unavailable("insert expense", err)
	}
	if e.Attachments == nil {
		e.Attachments = []core.Attachment{}
	}

	slog.DebugContext(ctx, "Expense saved to SQLite", "id", e.ID, "amount", e.Amount)
	return e, nil
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, id string) (core.Expense, error) {
	var (
		e    core.Expense
		date string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, concept, amount, date, description FROM expenses WHERE id = ?`, id).
		Scan(&e.ID, &e.Concept, &e.Amount, &date, &e.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, fmt.Errorf("get expense %q: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Expense{}, unavailable("get expense", err)
	}
	if e.Date, err = core.ParseDate(date); err != nil {
		return core.Expense{}, fmt.Errorf("get expense %q: %w", id, err)
	}

	byExpense, err := r.attachments(ctx, `WHERE expense_id = ?`, id)
	if err != nil {
		return core.Expense{}, err
	}
	e.Attachments = byExpense[id]
	if e.Attachments == nil {
		e.Attachments = []core.Attachment{}
	}
	return e, nil
}

// DeleteExpense removes the expense; its attachment rows go with it.
func (r *SQLiteRepository) DeleteExpense(ctx context.Context, id string) error {
	return r.deleteByID(ctx, "expenses", id)
}

func (r *SQLiteRepository) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, concept, amount, date, description FROM expenses ORDER BY seq`)
	if err != nil {
		return nil, unavailable("list expenses", err)
	}
	defer rows.Close()

	expenses := []core.Expense{}
	for rows.Next() {
		var (
			e    core.Expense
			date string
		)
		if err := rows.Scan(&e.ID, &e.Concept, &e.Amount, &date, &e.Description); err != nil {
			return nil, unavailable("scan expense", err)
		}
		if e.Date, err = core.ParseDate(date); err != nil {
			return nil, fmt.Errorf("expense %q: %w", e.ID, err)
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list expenses", err)
	}

	byExpense, err := r.attachments(ctx, "")
	if err != nil {
		return nil, err
	}
	for i := range expenses {
		expenses[i].Attachments = byExpense[expenses[i].ID]
		if expenses[i].Attachments == nil {
			expenses[i].Attachments = []core.Attachment{}
		}
	}
	return expenses, nil
}

// InsertAttachment appends a at the end of the expense's attachment list.
func (r *SQLiteRepository) InsertAttachment(ctx context.Context, expenseID string, a core.Attachment) (core.Attachment, error) {
	if a.ID == "" {
		a.ID = r.newID()
	}
	a.ExpenseID = expenseID

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Attachment{}, unavailable("begin attachment insert", err)
	}
	defer tx.Rollback()

	var position int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE((SELECT MAX(position) + 1 FROM attachments WHERE expense_id = e.id), 0)
		 FROM expenses e WHERE e.id = ?`, expenseID).Scan(&position)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Attachment{}, fmt.Errorf("attach to expense %q: %w", expenseID, core.ErrNotFound)
	}
	if err != nil {
		return core.Attachment{}, unavailable("attachment position", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO attachments
		 (id, expense_id, position, file_name, mime_category, content_type, storage_key, storage_url, size_bytes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, expenseID, position, a.FileName, string(a.MimeCategory), a.ContentType, a.StorageKey, a.StorageURL, a.SizeBytes)
	if err != nil {
		return core.Attachment{}, unavailable("insert attachment", err)
	}
	if err := tx.Commit(); err != nil {
		return core.Attachment{}, unavailable("commit attachment", err)
	}
	return a, nil
}

func (r *SQLiteRepository) attachments(ctx context.Context, where string, args ...any) (map[string][]core.Attachment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, expense_id, file_name, mime_category, content_type, storage_key, storage_url, size_bytes
		 FROM attachments `+where+` ORDER BY expense_id, position`, args...)
	if err != nil {
		return nil, unavailable("list attachments", err)
	}
	defer rows.Close()

	out := make(map[string][]core.Attachment)
	for rows.Next() {
		var (
			a        core.Attachment
			category string
		)
		if err := rows.Scan(&a.ID, &a.ExpenseID, &a.FileName, &category, &a.ContentType, &a.StorageKey, &a.StorageURL, &a.SizeBytes); err != nil {
			return nil, unavailable("scan attachment", err)
		}
		a.MimeCategory = core.MimeCategory(category)
		out[a.ExpenseID] = append(out[a.ExpenseID], a)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list attachments", err)
	}
	return out, nil
}

func (r *SQLiteRepository) InsertContribution(ctx context.Context, c core.Contribution) (core.Contribution, error) {
	if c.ID == "" {
		c.ID = r.newID()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO contributions (id, contributor, amount, concept, date) VALUES (?, ?, ?, ?, ?)`,
		c.ID, string(c.Contributor), c.Amount, c.Concept, c.Date.String())
	if err != nil {
		return core.Contribution{}, unavailable("insert contribution", err)
	}

	slog.DebugContext(ctx, "Contribution saved to SQLite", "id", c.ID, "contributor", c.Contributor)
	return c, nil
}

func (r *SQLiteRepository) DeleteContribution(ctx context.Context, id string) error {
	return r.deleteByID(ctx, "contributions", id)
}

func (r *SQLiteRepository) ListContributions(ctx context.Context) ([]core.Contribution, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, contributor, amount, concept, date FROM contributions ORDER BY seq`)
	if err != nil {
		return nil, unavailable("list contributions", err)
	}
	defer rows.Close()

	contributions := []core.Contribution{}
	for rows.Next() {
		var (
			c           core.Contribution
			contributor string
			date        string
		)
		if err := rows.Scan(&c.ID, &contributor, &c.Amount, &c.Concept, &date); err != nil {
			return nil, unavailable("scan contribution", err)
		}
		c.Contributor = core.Contributor(contributor)
		if c.Date, err = core.ParseDate(date); err != nil {
			return nil, fmt.Errorf("contribution %q: %w", c.ID, err)
		}
		contributions = append(contributions, c)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list contributions", err)
	}
	return contributions, nil
}

// deleteByID deletes one row of table; table is never user input.
func (r *SQLiteRepository) deleteByID(ctx context.Context, table, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return unavailable("delete from "+table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("delete from "+table, err)
	}
	if n == 0 {
		return fmt.Errorf("delete %q from %s: %w", id, table, core.ErrNotFound)
	}
	slog.DebugContext(ctx, "Record deleted from SQLite", "table", table, "id", id)
	return nil
}
