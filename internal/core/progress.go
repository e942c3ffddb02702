package core

import "math"

const (
	StatusUnder       BudgetStatus = "under"
	StatusApproaching BudgetStatus = "approaching"
	StatusOver        BudgetStatus = "over"
)

// Real-time status thresholds, in percent of budget used. These are the
// prospective alerting thresholds; analytics uses its own retrospective set.
const (
	ApproachingThreshold = 75
	LimitThreshold       = 100
)

type BudgetStatus string

// BudgetProgress compares actual spend against one budget for its period.
// Derived on read, never persisted.
type BudgetProgress struct {
	BudgetID       int64        `json:"budget_id"`
	CategoryID     int64        `json:"category_id"`
	CategoryName   string       `json:"category_name"`
	CategoryColor  string       `json:"category_color"`
	BudgetedAmount Money        `json:"budgeted_amount"`
	SpentAmount    Money        `json:"spent_amount"`
	Remaining      Money        `json:"remaining_amount"`
	PercentageUsed int          `json:"percentage_used"`
	Status         BudgetStatus `json:"status"`
}

// UnbudgetedSpending is expense activity in a category with no budget
// covering the period.
type UnbudgetedSpending struct {
	CategoryID    int64  `json:"category_id"`
	CategoryName  string `json:"category_name"`
	CategoryColor string `json:"category_color"`
	SpentAmount   Money  `json:"spent_amount"`
}

// PercentageUsed computes the used percentage, rounded to the nearest
// integer. Zero when budgeted is zero.
func PercentageUsed(spent, budgeted Money) int {
	if budgeted.Cents == 0 {
		return 0
	}
	return int(math.Round(float64(spent.Cents) / float64(budgeted.Cents) * 100))
}

// StatusForPercentage classifies progress. It is a pure function of the
// used percentage and is total: every value maps to a status.
func StatusForPercentage(p int) BudgetStatus {
	switch {
	case p < ApproachingThreshold:
		return StatusUnder
	case p <= LimitThreshold:
		return StatusApproaching
	default:
		return StatusOver
	}
}
