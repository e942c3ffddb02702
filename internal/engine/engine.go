// Package engine is the budget intelligence core: it derives budget
// progress from raw ledger data, evaluates threshold alerts, and aggregates
// multi-month analytics. It reacts to change notifications by invalidating
// caches and scheduling debounced re-evaluation.
package engine

import (
	"time"

	"budgeter/internal/bus"
	"budgeter/internal/cache"
	"budgeter/internal/ledger"
)

// Options tunes cache lifetimes and the alert debounce window. Zero values
// fall back to defaults.
type Options struct {
	ProgressTTL     time.Duration
	AnalyticsTTL    time.Duration
	DebounceWindow  time.Duration
	CleanupInterval time.Duration
}

func (o *Options) withDefaults() {
	if o.ProgressTTL <= 0 {
		o.ProgressTTL = 5 * time.Minute
	}
	if o.AnalyticsTTL <= 0 {
		o.AnalyticsTTL = 2 * time.Minute
	}
	if o.DebounceWindow <= 0 {
		o.DebounceWindow = 500 * time.Millisecond
	}
	if o.CleanupInterval <= 0 {
		o.CleanupInterval = time.Minute
	}
}

// Engine bundles the three calculators around one ledger and one bus.
// Construct one per application session and pass it by reference; all
// cached state lives inside the instance.
type Engine struct {
	Progress  *ProgressCalculator
	Alerts    *AlertEvaluator
	Analytics *Analyzer

	caches      *cache.Manager
	unsubscribe []func()
}

func New(store ledger.Accessor, events *bus.Bus, opts Options) *Engine {
	opts.withDefaults()

	mgr := cache.NewManager()
	progress := NewProgressCalculator(store, opts.ProgressTTL, mgr)
	alerts := NewAlertEvaluator(store, progress, events, opts.ProgressTTL, opts.DebounceWindow, mgr)
	analytics := NewAnalyzer(store, opts.AnalyticsTTL, mgr)
	mgr.StartCleanup(opts.CleanupInterval)

	eng := &Engine{
		Progress:  progress,
		Alerts:    alerts,
		Analytics: analytics,
		caches:    mgr,
	}

	eng.unsubscribe = append(eng.unsubscribe,
		events.OnTransactionChanged(eng.onTransactionChanged),
		events.OnBudgetChanged(eng.onBudgetChanged),
	)
	return eng
}

// onTransactionChanged invalidates transaction-scoped caches and, for new
// transactions, arms the category's debounced alert evaluation.
func (e *Engine) onTransactionChanged(ev bus.TransactionChange) {
	e.Progress.ClearTransactionScoped()
	e.Alerts.ClearTransactionScoped()
	e.Analytics.ClearCache()

	if ev.Type == bus.ChangeCreated {
		e.Alerts.ScheduleEvaluation(ev.CategoryID)
	}
}

// onBudgetChanged wipes everything: a changed limit moves every derived
// number for that category's periods.
func (e *Engine) onBudgetChanged(ev bus.BudgetChange) {
	e.Progress.ClearAll()
	e.Alerts.ClearTransactionScoped()
	e.Analytics.ClearCache()
}

// Close detaches from the bus and stops timers and cache cleanup.
func (e *Engine) Close() {
	for _, off := range e.unsubscribe {
		off()
	}
	e.Alerts.Close()
	e.caches.Stop()
}
