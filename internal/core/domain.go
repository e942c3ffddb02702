package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Expense TransactionType = "expense"
	Income  TransactionType = "income"
)

type (
	TransactionType string

	Money struct {
		Cents int64
	}

	// Transaction is a single ledger record. Amount is always positive;
	// the type decides whether it counts against a budget.
	Transaction struct {
		ID          int64
		Amount      Money
		Description string
		CategoryID  int64
		Type        TransactionType
		Date        time.Time
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}

	Category struct {
		ID        int64
		Name      string
		Color     string
		Icon      string
		IsDefault bool
		IsHidden  bool
	}

	// Budget caps spending for one category over a contiguous period.
	// At most one budget exists per (category, exact period) pair.
	Budget struct {
		ID          int64
		CategoryID  int64
		Amount      Money
		PeriodStart time.Time
		PeriodEnd   time.Time
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
	ErrInvalidType      = errors.New("invalid transaction type")
	ErrInvalidPeriod    = errors.New("period end must be after period start")
	ErrDuplicateBudget  = errors.New("budget already exists for category and period")
	ErrMissingCategory  = errors.New("missing category reference")
	ErrNotFound         = errors.New("not found")
)

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (t TransactionType) Validate() error {
	switch t {
	case Expense, Income:
		return nil
	default:
		return ErrInvalidType
	}
}

func (t Transaction) Validate() error {
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if t.CategoryID <= 0 {
		return ErrMissingCategory
	}
	if err := t.Type.Validate(); err != nil {
		return err
	}
	if t.Date.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

func (b Budget) Validate() error {
	if err := b.Amount.Validate(); err != nil {
		return err
	}
	if b.CategoryID <= 0 {
		return ErrMissingCategory
	}
	if b.PeriodStart.IsZero() || b.PeriodEnd.IsZero() {
		return errors.New("period dates cannot be zero")
	}
	if !b.PeriodEnd.After(b.PeriodStart) {
		return ErrInvalidPeriod
	}
	return nil
}

// Contains reports whether d falls within the budget period, inclusive of
// both endpoints.
func (b Budget) Contains(d time.Time) bool {
	return !d.Before(b.PeriodStart) && !d.After(b.PeriodEnd)
}

// Overlaps reports whether the budget period intersects [start, end].
func (b Budget) Overlaps(start, end time.Time) bool {
	return !b.PeriodEnd.Before(start) && !b.PeriodStart.After(end)
}
