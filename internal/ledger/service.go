package ledger

import (
	"context"
	"fmt"

	"budgeter/internal/bus"
	"budgeter/internal/core"
)

// TransactionWriter is implemented by backends that accept new transactions.
type TransactionWriter interface {
	CreateTransaction(ctx context.Context, t core.Transaction) (*core.Transaction, error)
}

// Service orchestrates ledger mutations and change notification: every
// successful write is announced on the bus so the engine can invalidate
// caches and re-evaluate alerts.
type Service struct {
	store  Ledger
	writer TransactionWriter
	events *bus.Bus
}

func NewService(store Ledger, writer TransactionWriter, events *bus.Bus) *Service {
	return &Service{store: store, writer: writer, events: events}
}

// CreateBudget validates, writes, and announces a new budget.
func (s *Service) CreateBudget(ctx context.Context, b core.Budget) (*core.Budget, error) {
	created, err := s.store.CreateBudget(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("create budget: %w", err)
	}

	s.events.EmitBudgetChanged(bus.BudgetChange{
		Type:       bus.ChangeCreated,
		BudgetID:   created.ID,
		CategoryID: created.CategoryID,
		Amount:     created.Amount,
	})
	return created, nil
}

// UpdateBudget writes and announces a budget amount or period change.
func (s *Service) UpdateBudget(ctx context.Context, b core.Budget) error {
	if err := s.store.UpdateBudget(ctx, b); err != nil {
		return fmt.Errorf("update budget: %w", err)
	}

	s.events.EmitBudgetChanged(bus.BudgetChange{
		Type:       bus.ChangeUpdated,
		BudgetID:   b.ID,
		CategoryID: b.CategoryID,
		Amount:     b.Amount,
	})
	return nil
}

// DeleteBudget removes and announces a budget deletion.
func (s *Service) DeleteBudget(ctx context.Context, id int64) error {
	// Capture identity fields before the row disappears; the change payload
	// needs them for scoped invalidation downstream.
	var categoryID int64
	var amount core.Money
	budgets, err := s.store.Budgets(ctx)
	if err != nil {
		return fmt.Errorf("load budget before delete: %w", err)
	}
	for _, b := range budgets {
		if b.ID == id {
			categoryID = b.CategoryID
			amount = b.Amount
			break
		}
	}

	if err := s.store.DeleteBudget(ctx, id); err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}

	s.events.EmitBudgetChanged(bus.BudgetChange{
		Type:       bus.ChangeDeleted,
		BudgetID:   id,
		CategoryID: categoryID,
		Amount:     amount,
	})
	return nil
}

// CreateTransaction validates, writes, and announces a new transaction.
func (s *Service) CreateTransaction(ctx context.Context, t core.Transaction) (*core.Transaction, error) {
	if s.writer == nil {
		return nil, fmt.Errorf("backend does not accept transactions")
	}
	created, err := s.writer.CreateTransaction(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}

	s.events.EmitTransactionChanged(bus.TransactionChange{
		Type:          bus.ChangeCreated,
		TransactionID: created.ID,
		CategoryID:    created.CategoryID,
		Amount:        created.Amount,
	})
	return created, nil
}
