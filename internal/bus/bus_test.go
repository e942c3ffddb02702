package bus

import (
	"testing"

	"budgeter/internal/core"
)

func TestTransactionChangedDispatch(t *testing.T) {
	b := New()

	var got []TransactionChange
	off := b.OnTransactionChanged(func(ev TransactionChange) {
		got = append(got, ev)
	})

	ev := TransactionChange{
		Type:          ChangeCreated,
		TransactionID: 10,
		CategoryID:    3,
		Amount:        core.Money{Cents: 2500},
	}
	b.EmitTransactionChanged(ev)

	if len(got) != 1 {
		t.Fatalf("handler ran %d times, want 1", len(got))
	}
	if got[0] != ev {
		t.Errorf("handler received %+v, want %+v", got[0], ev)
	}

	off()
	b.EmitTransactionChanged(ev)
	if len(got) != 1 {
		t.Error("unsubscribed handler should not receive events")
	}
}

func TestBudgetChangedDispatchToAll(t *testing.T) {
	b := New()

	count := 0
	b.OnBudgetChanged(func(BudgetChange) { count++ })
	b.OnBudgetChanged(func(BudgetChange) { count++ })

	b.EmitBudgetChanged(BudgetChange{Type: ChangeUpdated, BudgetID: 1, CategoryID: 2})
	if count != 2 {
		t.Errorf("expected both handlers to run, got %d", count)
	}
}

func TestAlertsUpdatedDispatch(t *testing.T) {
	b := New()

	var got AlertsUpdated
	b.OnBudgetAlertsUpdated(func(ev AlertsUpdated) { got = ev })

	b.EmitBudgetAlertsUpdated(AlertsUpdated{
		CategoryID: 7,
		Alerts:     []core.BudgetAlert{{ID: "a1", CategoryID: 7}},
	})

	if got.CategoryID != 7 || len(got.Alerts) != 1 {
		t.Errorf("handler received %+v", got)
	}
}

func TestHandlerMayUnsubscribeDuringDispatch(t *testing.T) {
	b := New()

	var off func()
	ran := 0
	off = b.OnTransactionChanged(func(TransactionChange) {
		ran++
		off()
	})

	b.EmitTransactionChanged(TransactionChange{Type: ChangeDeleted})
	b.EmitTransactionChanged(TransactionChange{Type: ChangeDeleted})

	if ran != 1 {
		t.Errorf("handler ran %d times, want 1", ran)
	}
}
