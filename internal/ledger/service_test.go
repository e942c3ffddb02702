package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"budgeter/internal/bus"
	"budgeter/internal/core"
)

func TestServiceEmitsBudgetChanges(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryLedger()
	events := bus.New()
	svc := NewService(store, store, events)

	var got []bus.BudgetChange
	events.OnBudgetChanged(func(ev bus.BudgetChange) { got = append(got, ev) })

	cat := store.AddCategory(core.Category{Name: "Rent"})
	created, err := svc.CreateBudget(ctx, core.Budget{
		CategoryID:  cat.ID,
		Amount:      core.Money{Cents: 120000},
		PeriodStart: day(2025, time.August, 1),
		PeriodEnd:   day(2025, time.August, 31),
	})
	if err != nil {
		t.Fatalf("CreateBudget() error = %v", err)
	}

	updated := *created
	updated.Amount = core.Money{Cents: 130000}
	if err := svc.UpdateBudget(ctx, updated); err != nil {
		t.Fatalf("UpdateBudget() error = %v", err)
	}

	if err := svc.DeleteBudget(ctx, created.ID); err != nil {
		t.Fatalf("DeleteBudget() error = %v", err)
	}

	if len(got) != 3 {
		t.Fatalf("expected 3 budget changes, got %d", len(got))
	}
	wantTypes := []bus.ChangeType{bus.ChangeCreated, bus.ChangeUpdated, bus.ChangeDeleted}
	for i, want := range wantTypes {
		if got[i].Type != want {
			t.Errorf("change %d type = %q, want %q", i, got[i].Type, want)
		}
		if got[i].BudgetID != created.ID || got[i].CategoryID != cat.ID {
			t.Errorf("change %d identity = budget %d / category %d", i, got[i].BudgetID, got[i].CategoryID)
		}
	}
	if got[2].Amount.Cents != 130000 {
		t.Errorf("delete change carries amount %d, want last written 130000", got[2].Amount.Cents)
	}
}

func TestServiceFailedWriteEmitsNothing(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryLedger()
	events := bus.New()
	svc := NewService(store, store, events)

	emitted := 0
	events.OnBudgetChanged(func(bus.BudgetChange) { emitted++ })

	err := svc.UpdateBudget(ctx, core.Budget{
		ID:          99,
		CategoryID:  1,
		Amount:      core.Money{Cents: 100},
		PeriodStart: day(2025, time.August, 1),
		PeriodEnd:   day(2025, time.August, 31),
	})
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("UpdateBudget() error = %v, want ErrNotFound", err)
	}
	if emitted != 0 {
		t.Errorf("failed write emitted %d changes, want 0", emitted)
	}
}

func TestServiceEmitsTransactionCreated(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryLedger()
	events := bus.New()
	svc := NewService(store, store, events)

	var got []bus.TransactionChange
	events.OnTransactionChanged(func(ev bus.TransactionChange) { got = append(got, ev) })

	cat := store.AddCategory(core.Category{Name: "Dining"})
	created, err := svc.CreateTransaction(ctx, core.Transaction{
		Amount:      core.Money{Cents: 4500},
		Description: "lunch",
		CategoryID:  cat.ID,
		Type:        core.Expense,
		Date:        day(2025, time.August, 12),
	})
	if err != nil {
		t.Fatalf("CreateTransaction() error = %v", err)
	}

	if len(got) != 1 {
		t.Fatalf("expected 1 transaction change, got %d", len(got))
	}
	if got[0].Type != bus.ChangeCreated || got[0].TransactionID != created.ID {
		t.Errorf("unexpected change %+v", got[0])
	}
}

func TestServiceRejectsTransactionsWithoutWriter(t *testing.T) {
	svc := NewService(NewMemoryLedger(), nil, bus.New())
	_, err := svc.CreateTransaction(context.Background(), core.Transaction{
		Amount:      core.Money{Cents: 100},
		Description: "x",
		CategoryID:  1,
		Type:        core.Expense,
		Date:        day(2025, time.August, 1),
	})
	if err == nil {
		t.Error("expected error when backend has no transaction writer")
	}
}
