package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"budgeter/internal/bus"
	"budgeter/internal/cache"
	"budgeter/internal/core"
	"budgeter/internal/ledger"
)

// AlertEvaluator turns budget progress into threshold alerts, computes
// transaction-level budget impact, and owns the per-category debounce that
// collapses bursts of transaction notifications into one evaluation.
//
// Alert state is process-local: acknowledgment does not survive a restart.
type AlertEvaluator struct {
	store    ledger.Accessor
	progress *ProgressCalculator
	events   *bus.Bus

	impact *cache.Loader[*core.BudgetImpact]

	debounce time.Duration

	mu      sync.Mutex
	timers  map[int64]*time.Timer
	current map[int64]*core.BudgetAlert // keyed by budget id
}

func NewAlertEvaluator(store ledger.Accessor, progress *ProgressCalculator, events *bus.Bus, ttl, debounce time.Duration, mgr *cache.Manager) *AlertEvaluator {
	impactCache := cache.NewLRUCache[*core.BudgetImpact](256, ttl)
	if mgr != nil {
		mgr.Register(impactCache)
	}
	return &AlertEvaluator{
		store:    store,
		progress: progress,
		events:   events,
		impact:   cache.NewLoader(impactCache),
		debounce: debounce,
		timers:   make(map[int64]*time.Timer),
		current:  make(map[int64]*core.BudgetAlert),
	}
}

// CheckThresholds evaluates the category's active budget and returns at
// most one alert: the highest applicable tier. Categories with no active
// budget, or under the approaching threshold, yield no alert.
func (e *AlertEvaluator) CheckThresholds(ctx context.Context, categoryID int64) ([]core.BudgetAlert, error) {
	now := time.Now().UTC()
	budget, err := e.store.BudgetForPeriod(ctx, categoryID, now, now)
	if err != nil {
		return nil, fmt.Errorf("fetch active budget: %w", err)
	}
	if budget == nil {
		return nil, nil
	}

	prog, err := e.progress.ForBudget(ctx, budget.ID)
	if err != nil {
		return nil, err
	}
	if prog == nil {
		return nil, nil
	}

	tier, severity, ok := core.TierForPercentage(prog.PercentageUsed)

	e.mu.Lock()
	defer e.mu.Unlock()

	if !ok {
		delete(e.current, budget.ID)
		return nil, nil
	}

	fresh := core.BudgetAlert{
		ID:               uuid.NewString(),
		BudgetID:         budget.ID,
		CategoryID:       categoryID,
		CategoryName:     prog.CategoryName,
		CategoryColor:    prog.CategoryColor,
		AlertType:        tier,
		Severity:         severity,
		Message:          alertMessage(tier, prog),
		SuggestedActions: suggestedActions(tier, prog),
		BudgetAmount:     prog.BudgetedAmount,
		SpentAmount:      prog.SpentAmount,
		RemainingAmount:  prog.Remaining,
		PercentageUsed:   prog.PercentageUsed,
		CreatedAt:        now,
	}

	// Keep the existing alert instance while nothing material changed so
	// its id and acknowledgment survive re-evaluation.
	if prev, exists := e.current[budget.ID]; exists &&
		prev.AlertType == fresh.AlertType &&
		prev.SpentAmount == fresh.SpentAmount &&
		prev.PercentageUsed == fresh.PercentageUsed {
		return []core.BudgetAlert{*prev}, nil
	}

	e.current[budget.ID] = &fresh
	return []core.BudgetAlert{fresh}, nil
}

// ActiveAlerts evaluates every category and returns all unacknowledged
// alerts currently over any threshold.
func (e *AlertEvaluator) ActiveAlerts(ctx context.Context) ([]core.BudgetAlert, error) {
	cats, err := e.store.Categories(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch categories: %w", err)
	}

	var out []core.BudgetAlert
	for _, c := range cats {
		alerts, err := e.CheckThresholds(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		for _, a := range alerts {
			if !a.Acknowledged {
				out = append(out, a)
			}
		}
	}
	return out, nil
}

// OverBudgetCategories returns the over_budget alerts across all
// categories, sorted by percentage used descending.
func (e *AlertEvaluator) OverBudgetCategories(ctx context.Context) ([]core.BudgetAlert, error) {
	cats, err := e.store.Categories(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch categories: %w", err)
	}

	var out []core.BudgetAlert
	for _, c := range cats {
		alerts, err := e.CheckThresholds(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		for _, a := range alerts {
			if a.AlertType == core.AlertOverBudget {
				out = append(out, a)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].PercentageUsed > out[j].PercentageUsed
	})
	return out, nil
}

// Acknowledge marks the alert as seen. Returns ErrNotFound for ids the
// evaluator is not currently holding.
func (e *AlertEvaluator) Acknowledge(alertID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, a := range e.current {
		if a.ID == alertID {
			a.Acknowledged = true
			return nil
		}
	}
	return core.ErrNotFound
}

// BudgetImpact reports how one expense transaction moved its category's
// budget. Income transactions and categories without an active budget
// yield nil. The pre-transaction state is reconstructed by subtracting the
// transaction's own amount from current spend, avoiding a second query.
func (e *AlertEvaluator) BudgetImpact(ctx context.Context, transactionID int64) (*core.BudgetImpact, error) {
	key := fmt.Sprintf("budgetImpact:%d", transactionID)
	return e.impact.GetOrLoad(key, func() (*core.BudgetImpact, error) {
		tx, err := e.store.TransactionByID(ctx, transactionID)
		if err != nil {
			return nil, fmt.Errorf("fetch transaction: %w", err)
		}
		if tx == nil || tx.Type == core.Income {
			return nil, nil
		}

		budget, err := e.store.BudgetForPeriod(ctx, tx.CategoryID, tx.Date, tx.Date)
		if err != nil {
			return nil, fmt.Errorf("fetch budget for transaction: %w", err)
		}
		if budget == nil {
			return nil, nil
		}

		prog, err := e.progress.ForBudget(ctx, budget.ID)
		if err != nil {
			return nil, err
		}
		if prog == nil {
			return nil, nil
		}

		spentBefore := prog.SpentAmount.Cents - tx.Amount.Cents
		pctBefore := core.PercentageUsed(core.Money{Cents: spentBefore}, prog.BudgetedAmount)

		alerts, err := e.CheckThresholds(ctx, tx.CategoryID)
		if err != nil {
			return nil, err
		}

		return &core.BudgetImpact{
			TransactionID:    tx.ID,
			CategoryID:       tx.CategoryID,
			CategoryName:     prog.CategoryName,
			BudgetID:         budget.ID,
			BudgetAmount:     prog.BudgetedAmount,
			SpentBefore:      core.Money{Cents: spentBefore},
			SpentAfter:       prog.SpentAmount,
			RemainingBefore:  core.Money{Cents: prog.BudgetedAmount.Cents - spentBefore},
			RemainingAfter:   prog.Remaining,
			PercentageBefore: pctBefore,
			PercentageAfter:  prog.PercentageUsed,
			StatusBefore:     core.StatusForPercentage(pctBefore),
			StatusAfter:      prog.Status,
			Alerts:           alerts,
		}, nil
	})
}

// ReductionSuggestions returns spending-reduction guidance for an
// over-budget category, empty for categories at or under budget.
func (e *AlertEvaluator) ReductionSuggestions(ctx context.Context, categoryID int64) ([]string, error) {
	prog, err := e.activeProgress(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if prog == nil || prog.Status != core.StatusOver {
		return []string{}, nil
	}

	overage := prog.SpentAmount.Cents - prog.BudgetedAmount.Cents
	suggestions := []string{
		fmt.Sprintf("Cut %.2f this month to get back on budget: about %.2f per week or %.2f per day",
			core.Money{Cents: overage}.Units(),
			core.Money{Cents: overage / 4}.Units(),
			core.Money{Cents: overage / 30}.Units()),
	}
	return append(suggestions, categorySuggestions(prog.CategoryName)...), nil
}

// RecoveryProgress returns a plan for finishing the period back under
// budget, or nil when the category is not over budget.
func (e *AlertEvaluator) RecoveryProgress(ctx context.Context, categoryID int64) (*core.RecoveryInfo, error) {
	now := time.Now().UTC()
	budget, err := e.store.BudgetForPeriod(ctx, categoryID, now, now)
	if err != nil {
		return nil, fmt.Errorf("fetch active budget: %w", err)
	}
	if budget == nil {
		return nil, nil
	}

	prog, err := e.progress.ForBudget(ctx, budget.ID)
	if err != nil {
		return nil, err
	}
	if prog == nil || prog.Status != core.StatusOver {
		return nil, nil
	}

	overage := prog.SpentAmount.Cents - prog.BudgetedAmount.Cents

	// The end date counts as a full remaining day; floor at one so the
	// daily recommendation stays finite on the last day.
	days := int(budget.PeriodEnd.Sub(now).Hours()/24) + 1
	if days < 1 {
		days = 1
	}

	remaining := prog.Remaining.Cents
	if remaining < 0 {
		remaining = 0
	}

	return &core.RecoveryInfo{
		CategoryID:          categoryID,
		BudgetID:            budget.ID,
		OverageAmount:       core.Money{Cents: overage},
		TargetReduction:     core.Money{Cents: overage},
		DaysRemaining:       days,
		RecommendedDailyCap: core.Money{Cents: remaining / int64(days)},
	}, nil
}

// ScheduleEvaluation (re)arms the category's debounce timer. A burst of
// notifications for one category collapses into a single threshold check
// once the window elapses without another notification.
func (e *AlertEvaluator) ScheduleEvaluation(categoryID int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if t, ok := e.timers[categoryID]; ok {
		t.Stop()
	}
	e.timers[categoryID] = time.AfterFunc(e.debounce, func() {
		e.mu.Lock()
		delete(e.timers, categoryID)
		e.mu.Unlock()
		e.evaluate(categoryID)
	})
}

func (e *AlertEvaluator) evaluate(categoryID int64) {
	ctx := context.Background()
	alerts, err := e.CheckThresholds(ctx, categoryID)
	if err != nil {
		slog.ErrorContext(ctx, "Debounced alert evaluation failed",
			"category_id", categoryID, "error", err)
		return
	}
	if len(alerts) == 0 {
		return
	}
	e.events.EmitBudgetAlertsUpdated(bus.AlertsUpdated{
		CategoryID: categoryID,
		Alerts:     alerts,
	})
}

// ClearTransactionScoped drops cached impact results. Called alongside the
// Progress Calculator's transaction-scoped clear.
func (e *AlertEvaluator) ClearTransactionScoped() {
	e.impact.Clear()
}

// Close stops every pending debounce timer.
func (e *AlertEvaluator) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, t := range e.timers {
		t.Stop()
		delete(e.timers, id)
	}
}

func (e *AlertEvaluator) activeProgress(ctx context.Context, categoryID int64) (*core.BudgetProgress, error) {
	now := time.Now().UTC()
	budget, err := e.store.BudgetForPeriod(ctx, categoryID, now, now)
	if err != nil {
		return nil, fmt.Errorf("fetch active budget: %w", err)
	}
	if budget == nil {
		return nil, nil
	}
	return e.progress.ForBudget(ctx, budget.ID)
}

func alertMessage(tier core.AlertType, prog *core.BudgetProgress) string {
	switch tier {
	case core.AlertOverBudget:
		return fmt.Sprintf("%s is over budget by %.2f (%d%% used)",
			prog.CategoryName, core.Money{Cents: -prog.Remaining.Cents}.Units(), prog.PercentageUsed)
	case core.AlertAtLimit:
		return fmt.Sprintf("%s has reached its budget limit", prog.CategoryName)
	default:
		return fmt.Sprintf("%s is at %d%% of its budget with %.2f remaining",
			prog.CategoryName, prog.PercentageUsed, prog.Remaining.Units())
	}
}

func suggestedActions(tier core.AlertType, prog *core.BudgetProgress) []string {
	switch tier {
	case core.AlertOverBudget:
		return []string{
			"Pause non-essential spending in this category",
			"Review the largest recent transactions",
			"Consider raising the budget if the overage is recurring",
		}
	case core.AlertAtLimit:
		return []string{
			"Hold off on further spending until the period ends",
			"Review upcoming planned purchases in this category",
		}
	default:
		return []string{
			fmt.Sprintf("You have %.2f left for the rest of the period", prog.Remaining.Units()),
			"Space out remaining purchases to stay under the limit",
		}
	}
}

func categorySuggestions(categoryName string) []string {
	name := strings.ToLower(categoryName)
	switch {
	case strings.Contains(name, "dining"), strings.Contains(name, "restaurant"), strings.Contains(name, "food"):
		return []string{
			"Cook at home instead of eating out",
			"Bring lunch to work a few days a week",
			"Look for happy hour or lunch specials when you do go out",
		}
	case strings.Contains(name, "shopping"), strings.Contains(name, "clothing"):
		return []string{
			"Apply a 48-hour wait rule before non-essential purchases",
			"Unsubscribe from promotional emails for a month",
			"Check for secondhand options first",
		}
	case strings.Contains(name, "transport"), strings.Contains(name, "gas"), strings.Contains(name, "fuel"):
		return []string{
			"Combine errands into fewer trips",
			"Use public transit or carpool where possible",
			"Compare fuel prices before filling up",
		}
	case strings.Contains(name, "entertainment"), strings.Contains(name, "subscriptions"):
		return []string{
			"Audit subscriptions and cancel ones you rarely use",
			"Look for free local events this month",
		}
	default:
		return []string{
			"Review this category's recent transactions for one-off charges",
			"Set a weekly check-in to track this category until the period ends",
		}
	}
}
