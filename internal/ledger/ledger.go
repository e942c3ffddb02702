// Package ledger holds the persistent store contract the budget engine
// consumes, plus the SQLite and in-memory implementations.
package ledger

import (
	"context"
	"time"

	"budgeter/internal/core"
)

// TransactionFilter narrows a transaction query. Zero values mean
// "no constraint"; set filters are AND-combined.
type TransactionFilter struct {
	CategoryID int64
	Type       core.TransactionType
	From       time.Time
	To         time.Time
}

// Matches reports whether t satisfies every set constraint.
func (f TransactionFilter) Matches(t core.Transaction) bool {
	if f.CategoryID != 0 && t.CategoryID != f.CategoryID {
		return false
	}
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	if !f.From.IsZero() && t.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && t.Date.After(f.To) {
		return false
	}
	return true
}

// Accessor is the read contract the engine consumes. Implementations must
// guarantee referential integrity: every transaction and budget references
// an existing category.
type Accessor interface {
	Budgets(ctx context.Context) ([]core.Budget, error)
	Categories(ctx context.Context) ([]core.Category, error)

	// BudgetForPeriod returns the category's budget whose period overlaps
	// [start, end], or nil when none exists.
	BudgetForPeriod(ctx context.Context, categoryID int64, start, end time.Time) (*core.Budget, error)

	Transactions(ctx context.Context, f TransactionFilter) ([]core.Transaction, error)

	// TransactionByID returns nil when the id is unknown.
	TransactionByID(ctx context.Context, id int64) (*core.Transaction, error)
}

// Mutator is the budget write surface used by the surrounding application,
// not by the engine itself.
type Mutator interface {
	CreateBudget(ctx context.Context, b core.Budget) (*core.Budget, error)
	UpdateBudget(ctx context.Context, b core.Budget) error
	DeleteBudget(ctx context.Context, id int64) error
}

// Ledger is the full contract: reads for the engine, writes for the app.
type Ledger interface {
	Accessor
	Mutator
}
