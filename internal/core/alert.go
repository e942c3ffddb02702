package core

import "time"

const (
	AlertApproaching AlertType = "approaching"
	AlertAtLimit     AlertType = "at_limit"
	AlertOverBudget  AlertType = "over_budget"

	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

type (
	AlertType string
	Severity  string

	// BudgetAlert is an ephemeral, in-memory alert derived from budget
	// progress. Acknowledgment is process-local and never persisted.
	BudgetAlert struct {
		ID               string    `json:"id"`
		BudgetID         int64     `json:"budget_id"`
		CategoryID       int64     `json:"category_id"`
		CategoryName     string    `json:"category_name"`
		CategoryColor    string    `json:"category_color"`
		AlertType        AlertType `json:"alert_type"`
		Severity         Severity  `json:"severity"`
		Message          string    `json:"message"`
		SuggestedActions []string  `json:"suggested_actions"`
		BudgetAmount     Money     `json:"budget_amount"`
		SpentAmount      Money     `json:"spent_amount"`
		RemainingAmount  Money     `json:"remaining_amount"`
		PercentageUsed   int       `json:"percentage_used"`
		TransactionID    int64     `json:"transaction_id,omitempty"`
		CreatedAt        time.Time `json:"created_at"`
		Acknowledged     bool      `json:"acknowledged"`
	}

	// BudgetImpact shows how a single transaction moved its category's
	// budget state. Before is reconstructed by subtracting the transaction
	// amount from the current spend.
	BudgetImpact struct {
		TransactionID    int64         `json:"transaction_id"`
		CategoryID       int64         `json:"category_id"`
		CategoryName     string        `json:"category_name"`
		BudgetID         int64         `json:"budget_id"`
		BudgetAmount     Money         `json:"budget_amount"`
		SpentBefore      Money         `json:"spent_before"`
		SpentAfter       Money         `json:"spent_after"`
		RemainingBefore  Money         `json:"remaining_before"`
		RemainingAfter   Money         `json:"remaining_after"`
		PercentageBefore int           `json:"percentage_before"`
		PercentageAfter  int           `json:"percentage_after"`
		StatusBefore     BudgetStatus  `json:"status_before"`
		StatusAfter      BudgetStatus  `json:"status_after"`
		Alerts           []BudgetAlert `json:"alerts"`
	}

	// RecoveryInfo guides an over-budget category back under its limit
	// within the remaining days of the active period.
	RecoveryInfo struct {
		CategoryID           int64 `json:"category_id"`
		BudgetID             int64 `json:"budget_id"`
		OverageAmount        Money `json:"overage_amount"`
		TargetReduction      Money `json:"target_reduction"`
		DaysRemaining        int   `json:"days_remaining"`
		RecommendedDailyCap  Money `json:"recommended_daily_cap"`
	}
)

// TierForPercentage maps a used percentage to its alert tier. The second
// return is false below the approaching threshold: no alert applies.
func TierForPercentage(p int) (AlertType, Severity, bool) {
	switch {
	case p < ApproachingThreshold:
		return "", "", false
	case p < LimitThreshold:
		return AlertApproaching, SeverityWarning, true
	case p == LimitThreshold:
		return AlertAtLimit, SeverityWarning, true
	default:
		return AlertOverBudget, SeverityError, true
	}
}
