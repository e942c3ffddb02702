package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"budgeter/internal/core"
)

// MemoryLedger is a mutex-guarded in-memory Ledger. It is the default
// backend for local runs and the test double for the engine; Calls records
// per-method invocation counts so tests can assert cache behavior.
type MemoryLedger struct {
	mu     sync.Mutex
	nextID int64

	categories   []core.Category
	transactions []core.Transaction
	budgets      []core.Budget

	calls map[string]int
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{nextID: 1, calls: make(map[string]int)}
}

// Calls returns how many times the named Accessor method has run.
func (m *MemoryLedger) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

func (m *MemoryLedger) Budgets(_ context.Context) ([]core.Budget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["Budgets"]++
	return append([]core.Budget(nil), m.budgets...), nil
}

func (m *MemoryLedger) Categories(_ context.Context) ([]core.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["Categories"]++
	return append([]core.Category(nil), m.categories...), nil
}

func (m *MemoryLedger) BudgetForPeriod(_ context.Context, categoryID int64, start, end time.Time) (*core.Budget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["BudgetForPeriod"]++
	for _, b := range m.budgets {
		if b.CategoryID == categoryID && b.Overlaps(start, end) {
			found := b
			return &found, nil
		}
	}
	return nil, nil
}

func (m *MemoryLedger) Transactions(_ context.Context, f TransactionFilter) ([]core.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["Transactions"]++
	var out []core.Transaction
	for _, t := range m.transactions {
		if f.Matches(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].ID < out[j].ID
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out, nil
}

func (m *MemoryLedger) TransactionByID(_ context.Context, id int64) (*core.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["TransactionByID"]++
	for _, t := range m.transactions {
		if t.ID == id {
			found := t
			return &found, nil
		}
	}
	return nil, nil
}

func (m *MemoryLedger) CreateBudget(_ context.Context, b core.Budget) (*core.Budget, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.budgets {
		if existing.CategoryID == b.CategoryID &&
			existing.PeriodStart.Equal(b.PeriodStart) &&
			existing.PeriodEnd.Equal(b.PeriodEnd) {
			return nil, core.ErrDuplicateBudget
		}
	}
	b.ID = m.nextID
	m.nextID++
	m.budgets = append(m.budgets, b)
	return &b, nil
}

func (m *MemoryLedger) UpdateBudget(_ context.Context, b core.Budget) error {
	if err := b.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.budgets {
		if existing.ID == b.ID {
			m.budgets[i] = b
			return nil
		}
	}
	return core.ErrNotFound
}

func (m *MemoryLedger) DeleteBudget(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.budgets {
		if existing.ID == id {
			m.budgets = append(m.budgets[:i], m.budgets[i+1:]...)
			return nil
		}
	}
	return core.ErrNotFound
}

// CreateTransaction implements TransactionWriter.
func (m *MemoryLedger) CreateTransaction(_ context.Context, t core.Transaction) (*core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	created := m.AddTransaction(t)
	return &created, nil
}

// AddCategory inserts a category and returns it with its assigned id.
func (m *MemoryLedger) AddCategory(c core.Category) core.Category {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = m.nextID
	m.nextID++
	m.categories = append(m.categories, c)
	return c
}

// AddTransaction inserts a transaction and returns it with its assigned id.
func (m *MemoryLedger) AddTransaction(t core.Transaction) core.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = m.nextID
	m.nextID++
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	t.UpdatedAt = t.CreatedAt
	m.transactions = append(m.transactions, t)
	return t
}
