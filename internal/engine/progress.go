package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"budgeter/internal/cache"
	"budgeter/internal/core"
	"budgeter/internal/ledger"
)

const (
	unknownCategoryName  = "Unknown Category"
	unknownCategoryColor = "#757575"
)

// ProgressCalculator derives per-budget progress records from raw ledger
// data. Results are cached per method and arguments with a short TTL;
// concurrent callers for one key share a single ledger read.
type ProgressCalculator struct {
	store ledger.Accessor

	progressLists *cache.Loader[[]core.BudgetProgress]
	singles       *cache.Loader[*core.BudgetProgress]
	unbudgeted    *cache.Loader[[]core.UnbudgetedSpending]
}

func NewProgressCalculator(store ledger.Accessor, ttl time.Duration, mgr *cache.Manager) *ProgressCalculator {
	lists := cache.NewLRUCache[[]core.BudgetProgress](64, ttl)
	singles := cache.NewLRUCache[*core.BudgetProgress](256, ttl)
	unbudgeted := cache.NewLRUCache[[]core.UnbudgetedSpending](64, ttl)
	if mgr != nil {
		mgr.Register(lists)
		mgr.Register(singles)
		mgr.Register(unbudgeted)
	}
	return &ProgressCalculator{
		store:         store,
		progressLists: cache.NewLoader(lists),
		singles:       cache.NewLoader(singles),
		unbudgeted:    cache.NewLoader(unbudgeted),
	}
}

// ForPeriod returns progress for every budget whose period intersects
// [start, end]. Spend is always summed over each budget's own period, not
// the query window.
func (p *ProgressCalculator) ForPeriod(ctx context.Context, start, end time.Time) ([]core.BudgetProgress, error) {
	key := fmt.Sprintf("progressForPeriod:%d:%d", start.Unix(), end.Unix())
	return p.progressLists.GetOrLoad(key, func() ([]core.BudgetProgress, error) {
		return p.computeForPeriod(ctx, start, end)
	})
}

// ForCurrentMonth returns progress for every budget intersecting the
// current calendar month.
func (p *ProgressCalculator) ForCurrentMonth(ctx context.Context) ([]core.BudgetProgress, error) {
	start, end := MonthBounds(time.Now().UTC())
	return p.ForPeriod(ctx, start, end)
}

// ForBudget returns progress for one budget, or nil when the id is unknown.
func (p *ProgressCalculator) ForBudget(ctx context.Context, budgetID int64) (*core.BudgetProgress, error) {
	key := fmt.Sprintf("progressForBudget:%d", budgetID)
	return p.singles.GetOrLoad(key, func() (*core.BudgetProgress, error) {
		budgets, err := p.store.Budgets(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch budgets: %w", err)
		}
		for _, b := range budgets {
			if b.ID != budgetID {
				continue
			}
			cats, err := p.categoriesByID(ctx)
			if err != nil {
				return nil, err
			}
			prog, err := p.progressFor(ctx, b, cats)
			if err != nil {
				return nil, err
			}
			return &prog, nil
		}
		return nil, nil
	})
}

// Unbudgeted returns expense activity in [start, end] for categories with
// no budget covering the window, sorted by spend descending.
func (p *ProgressCalculator) Unbudgeted(ctx context.Context, start, end time.Time) ([]core.UnbudgetedSpending, error) {
	key := fmt.Sprintf("unbudgetedSpending:%d:%d", start.Unix(), end.Unix())
	return p.unbudgeted.GetOrLoad(key, func() ([]core.UnbudgetedSpending, error) {
		budgets, err := p.store.Budgets(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch budgets: %w", err)
		}
		budgeted := make(map[int64]bool)
		for _, b := range budgets {
			if b.Overlaps(start, end) {
				budgeted[b.CategoryID] = true
			}
		}

		txns, err := p.store.Transactions(ctx, ledger.TransactionFilter{
			Type: core.Expense,
			From: start,
			To:   end,
		})
		if err != nil {
			return nil, fmt.Errorf("fetch transactions: %w", err)
		}

		spend := make(map[int64]int64)
		for _, t := range txns {
			if budgeted[t.CategoryID] {
				continue
			}
			spend[t.CategoryID] += t.Amount.Cents
		}
		if len(spend) == 0 {
			return nil, nil
		}

		cats, err := p.categoriesByID(ctx)
		if err != nil {
			return nil, err
		}

		out := make([]core.UnbudgetedSpending, 0, len(spend))
		for catID, cents := range spend {
			name, color := unknownCategoryName, unknownCategoryColor
			if c, ok := cats[catID]; ok {
				name, color = c.Name, c.Color
			}
			out = append(out, core.UnbudgetedSpending{
				CategoryID:    catID,
				CategoryName:  name,
				CategoryColor: color,
				SpentAmount:   core.Money{Cents: cents},
			})
		}
		sort.Slice(out, func(i, j int) bool {
			if out[i].SpentAmount.Cents == out[j].SpentAmount.Cents {
				return out[i].CategoryID < out[j].CategoryID
			}
			return out[i].SpentAmount.Cents > out[j].SpentAmount.Cents
		})
		return out, nil
	})
}

// ClearTransactionScoped drops progress and unbudgeted-spending entries.
// Analytics caches are owned by the Analyzer and untouched here.
func (p *ProgressCalculator) ClearTransactionScoped() {
	p.progressLists.Clear()
	p.singles.Clear()
	p.unbudgeted.Clear()
}

// ClearAll drops every cached entry.
func (p *ProgressCalculator) ClearAll() {
	p.ClearTransactionScoped()
}

func (p *ProgressCalculator) computeForPeriod(ctx context.Context, start, end time.Time) ([]core.BudgetProgress, error) {
	budgets, err := p.store.Budgets(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch budgets: %w", err)
	}

	cats, err := p.categoriesByID(ctx)
	if err != nil {
		return nil, err
	}

	var out []core.BudgetProgress
	for _, b := range budgets {
		if !b.Overlaps(start, end) {
			continue
		}
		prog, err := p.progressFor(ctx, b, cats)
		if err != nil {
			return nil, err
		}
		out = append(out, prog)
	}
	return out, nil
}

func (p *ProgressCalculator) progressFor(ctx context.Context, b core.Budget, cats map[int64]core.Category) (core.BudgetProgress, error) {
	txns, err := p.store.Transactions(ctx, ledger.TransactionFilter{
		CategoryID: b.CategoryID,
		Type:       core.Expense,
		From:       b.PeriodStart,
		To:         b.PeriodEnd,
	})
	if err != nil {
		return core.BudgetProgress{}, fmt.Errorf("fetch transactions for budget %d: %w", b.ID, err)
	}

	var spent int64
	for _, t := range txns {
		spent += t.Amount.Cents
	}

	name, color := unknownCategoryName, unknownCategoryColor
	if c, ok := cats[b.CategoryID]; ok {
		name, color = c.Name, c.Color
	}

	pct := core.PercentageUsed(core.Money{Cents: spent}, b.Amount)
	return core.BudgetProgress{
		BudgetID:       b.ID,
		CategoryID:     b.CategoryID,
		CategoryName:   name,
		CategoryColor:  color,
		BudgetedAmount: b.Amount,
		SpentAmount:    core.Money{Cents: spent},
		Remaining:      core.Money{Cents: b.Amount.Cents - spent},
		PercentageUsed: pct,
		Status:         core.StatusForPercentage(pct),
	}, nil
}

func (p *ProgressCalculator) categoriesByID(ctx context.Context) (map[int64]core.Category, error) {
	cats, err := p.store.Categories(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch categories: %w", err)
	}
	byID := make(map[int64]core.Category, len(cats))
	for _, c := range cats {
		byID[c.ID] = c
	}
	return byID, nil
}

// MonthBounds returns the first and last instant of t's calendar month.
func MonthBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0).Add(-time.Second)
	return start, end
}
