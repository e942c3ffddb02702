package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"budgeter/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteLedger implements Ledger over a local SQLite database.
type SQLiteLedger struct {
	db *sql.DB
}

func NewSQLiteLedger(dbPath string) (*SQLiteLedger, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteLedger{db: db}, nil
}

func (l *SQLiteLedger) Close() error {
	if l.db != nil {
		return l.db.Close()
	}
	return nil
}

func (l *SQLiteLedger) Budgets(ctx context.Context) ([]core.Budget, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, category_id, amount_cents, period_start, period_end
		 FROM budgets ORDER BY period_start, id`)
	if err != nil {
		return nil, fmt.Errorf("query budgets: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		var b core.Budget
		var start, end int64
		if err := rows.Scan(&b.ID, &b.CategoryID, &b.Amount.Cents, &start, &end); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		b.PeriodStart = time.Unix(start, 0).UTC()
		b.PeriodEnd = time.Unix(end, 0).UTC()
		out = append(out, b)
	}
	return out, rows.Err()
}

func (l *SQLiteLedger) Categories(ctx context.Context) ([]core.Category, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, name, color, icon, is_default, is_hidden FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Color, &c.Icon, &c.IsDefault, &c.IsHidden); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (l *SQLiteLedger) BudgetForPeriod(ctx context.Context, categoryID int64, start, end time.Time) (*core.Budget, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT id, category_id, amount_cents, period_start, period_end
		 FROM budgets
		 WHERE category_id = ? AND period_start <= ? AND period_end >= ?
		 ORDER BY period_start LIMIT 1`,
		categoryID, end.Unix(), start.Unix())

	var b core.Budget
	var ps, pe int64
	if err := row.Scan(&b.ID, &b.CategoryID, &b.Amount.Cents, &ps, &pe); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query budget for period: %w", err)
	}
	b.PeriodStart = time.Unix(ps, 0).UTC()
	b.PeriodEnd = time.Unix(pe, 0).UTC()
	return &b, nil
}

func (l *SQLiteLedger) Transactions(ctx context.Context, f TransactionFilter) ([]core.Transaction, error) {
	query := `SELECT id, amount_cents, description, category_id, type, date, created_at, updated_at
	          FROM transactions`
	var conds []string
	var args []any
	if f.CategoryID != 0 {
		conds = append(conds, "category_id = ?")
		args = append(args, f.CategoryID)
	}
	if f.Type != "" {
		conds = append(conds, "type = ?")
		args = append(args, string(f.Type))
	}
	if !f.From.IsZero() {
		conds = append(conds, "date >= ?")
		args = append(args, f.From.Unix())
	}
	if !f.To.IsZero() {
		conds = append(conds, "date <= ?")
		args = append(args, f.To.Unix())
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY date, id"

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (l *SQLiteLedger) TransactionByID(ctx context.Context, id int64) (*core.Transaction, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT id, amount_cents, description, category_id, type, date, created_at, updated_at
		 FROM transactions WHERE id = ?`, id)

	var t core.Transaction
	var typ string
	var date, created, updated int64
	err := row.Scan(&t.ID, &t.Amount.Cents, &t.Description, &t.CategoryID, &typ, &date, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query transaction by id: %w", err)
	}
	t.Type = core.TransactionType(typ)
	t.Date = time.Unix(date, 0).UTC()
	t.CreatedAt = time.Unix(created, 0).UTC()
	t.UpdatedAt = time.Unix(updated, 0).UTC()
	return &t, nil
}

func (l *SQLiteLedger) CreateBudget(ctx context.Context, b core.Budget) (*core.Budget, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}

	// Duplicate (category, exact period) pairs are an error the caller must
	// see, not a silent merge.
	var existing int64
	err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM budgets WHERE category_id = ? AND period_start = ? AND period_end = ?`,
		b.CategoryID, b.PeriodStart.Unix(), b.PeriodEnd.Unix()).Scan(&existing)
	if err != nil {
		return nil, fmt.Errorf("check duplicate budget: %w", err)
	}
	if existing > 0 {
		return nil, core.ErrDuplicateBudget
	}

	res, err := l.db.ExecContext(ctx,
		`INSERT INTO budgets (category_id, amount_cents, period_start, period_end) VALUES (?, ?, ?, ?)`,
		b.CategoryID, b.Amount.Cents, b.PeriodStart.Unix(), b.PeriodEnd.Unix())
	if err != nil {
		return nil, fmt.Errorf("insert budget: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("budget insert id: %w", err)
	}
	b.ID = id

	slog.InfoContext(ctx, "Budget created",
		"id", b.ID,
		"category_id", b.CategoryID,
		"amount_cents", b.Amount.Cents)

	return &b, nil
}

func (l *SQLiteLedger) UpdateBudget(ctx context.Context, b core.Budget) error {
	if err := b.Validate(); err != nil {
		return err
	}

	res, err := l.db.ExecContext(ctx,
		`UPDATE budgets SET amount_cents = ?, period_start = ?, period_end = ? WHERE id = ?`,
		b.Amount.Cents, b.PeriodStart.Unix(), b.PeriodEnd.Unix(), b.ID)
	if err != nil {
		return fmt.Errorf("update budget: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update budget rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}

	slog.InfoContext(ctx, "Budget updated", "id", b.ID, "amount_cents", b.Amount.Cents)
	return nil
}

func (l *SQLiteLedger) DeleteBudget(ctx context.Context, id int64) error {
	res, err := l.db.ExecContext(ctx, `DELETE FROM budgets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete budget rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}

	slog.InfoContext(ctx, "Budget deleted", "id", id)
	return nil
}

// CreateTransaction is part of the surrounding app's CRUD surface; the
// engine itself never writes transactions.
func (l *SQLiteLedger) CreateTransaction(ctx context.Context, t core.Transaction) (*core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	res, err := l.db.ExecContext(ctx,
		`INSERT INTO transactions (amount_cents, description, category_id, type, date, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.Amount.Cents, t.Description, t.CategoryID, string(t.Type), t.Date.Unix(), now.Unix(), now.Unix())
	if err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("transaction insert id: %w", err)
	}
	t.ID = id
	t.CreatedAt = now
	t.UpdatedAt = now

	slog.InfoContext(ctx, "Transaction created",
		"id", t.ID,
		"category_id", t.CategoryID,
		"type", string(t.Type),
		"amount_cents", t.Amount.Cents)

	return &t, nil
}

// CreateCategory seeds a category row. Used by the app and by tests.
func (l *SQLiteLedger) CreateCategory(ctx context.Context, c core.Category) (*core.Category, error) {
	res, err := l.db.ExecContext(ctx,
		`INSERT INTO categories (name, color, icon, is_default, is_hidden) VALUES (?, ?, ?, ?, ?)`,
		c.Name, c.Color, c.Icon, c.IsDefault, c.IsHidden)
	if err != nil {
		return nil, fmt.Errorf("insert category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("category insert id: %w", err)
	}
	c.ID = id
	return &c, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var t core.Transaction
	var typ string
	var date, created, updated int64
	err := row.Scan(&t.ID, &t.Amount.Cents, &t.Description, &t.CategoryID, &typ, &date, &created, &updated)
	if err != nil {
		return t, fmt.Errorf("scan transaction: %w", err)
	}
	t.Type = core.TransactionType(typ)
	t.Date = time.Unix(date, 0).UTC()
	t.CreatedAt = time.Unix(created, 0).UTC()
	t.UpdatedAt = time.Unix(updated, 0).UTC()
	return t, nil
}
