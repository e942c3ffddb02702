// Package bus is the in-process change-notification fabric between the
// surrounding application and the budget engine. Mutation events fan out
// synchronously to subscribed handlers; the engine re-emits alert updates
// after debounced evaluation.
package bus

import (
	"sync"

	"budgeter/internal/core"
)

const (
	ChangeCreated ChangeType = "created"
	ChangeUpdated ChangeType = "updated"
	ChangeDeleted ChangeType = "deleted"
)

type (
	ChangeType string

	// TransactionChange announces a transaction mutation in the ledger.
	TransactionChange struct {
		Type           ChangeType
		TransactionID  int64
		CategoryID     int64
		Amount         core.Money
		PreviousAmount *core.Money
	}

	// BudgetChange announces a budget mutation in the ledger.
	BudgetChange struct {
		Type       ChangeType
		BudgetID   int64
		CategoryID int64
		Amount     core.Money
	}

	// AlertsUpdated carries freshly evaluated alerts for one category so
	// listeners can merge them into a displayed list by alert id.
	AlertsUpdated struct {
		CategoryID int64
		Alerts     []core.BudgetAlert
	}
)

// Bus dispatches change notifications to registered handlers. Emission is
// synchronous: by the time Emit returns, every handler has run, so a caller
// that mutates, emits, then reads observes its own write.
type Bus struct {
	mu             sync.Mutex
	nextID         int
	txHandlers     map[int]func(TransactionChange)
	budgetHandlers map[int]func(BudgetChange)
	alertHandlers  map[int]func(AlertsUpdated)
}

func New() *Bus {
	return &Bus{
		txHandlers:     make(map[int]func(TransactionChange)),
		budgetHandlers: make(map[int]func(BudgetChange)),
		alertHandlers:  make(map[int]func(AlertsUpdated)),
	}
}

// OnTransactionChanged registers a handler and returns its unsubscribe func.
func (b *Bus) OnTransactionChanged(h func(TransactionChange)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.txHandlers[id] = h
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.txHandlers, id)
	}
}

// OnBudgetChanged registers a handler and returns its unsubscribe func.
func (b *Bus) OnBudgetChanged(h func(BudgetChange)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.budgetHandlers[id] = h
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.budgetHandlers, id)
	}
}

// OnBudgetAlertsUpdated registers a handler and returns its unsubscribe func.
func (b *Bus) OnBudgetAlertsUpdated(h func(AlertsUpdated)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.alertHandlers[id] = h
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.alertHandlers, id)
	}
}

// EmitTransactionChanged dispatches ev to every transaction handler.
func (b *Bus) EmitTransactionChanged(ev TransactionChange) {
	for _, h := range b.snapshotTx() {
		h(ev)
	}
}

// EmitBudgetChanged dispatches ev to every budget handler.
func (b *Bus) EmitBudgetChanged(ev BudgetChange) {
	for _, h := range b.snapshotBudget() {
		h(ev)
	}
}

// EmitBudgetAlertsUpdated dispatches ev to every alert handler.
func (b *Bus) EmitBudgetAlertsUpdated(ev AlertsUpdated) {
	for _, h := range b.snapshotAlert() {
		h(ev)
	}
}

// Handlers are copied out before dispatch so a handler may unsubscribe
// itself (or register others) without deadlocking on the bus mutex.
func (b *Bus) snapshotTx() []func(TransactionChange) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]func(TransactionChange), 0, len(b.txHandlers))
	for _, h := range b.txHandlers {
		out = append(out, h)
	}
	return out
}

func (b *Bus) snapshotBudget() []func(BudgetChange) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]func(BudgetChange), 0, len(b.budgetHandlers))
	for _, h := range b.budgetHandlers {
		out = append(out, h)
	}
	return out
}

func (b *Bus) snapshotAlert() []func(AlertsUpdated) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]func(AlertsUpdated), 0, len(b.alertHandlers))
	for _, h := range b.alertHandlers {
		out = append(out, h)
	}
	return out
}
