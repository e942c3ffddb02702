package core

// Retrospective per-month category thresholds, in percent of budget used.
// Deliberately looser than the real-time alert thresholds: analytics judges
// finished months, alerts warn about the month in flight.
const (
	MonthUnderThreshold   = 90
	MonthOnTrackThreshold = 100

	// StreakSuccessRate is the per-month success rate a month must reach
	// to count toward a streak.
	StreakSuccessRate = 80.0
)

const (
	MonthStatusUnder   MonthCategoryStatus = "under"
	MonthStatusOnTrack MonthCategoryStatus = "on_track"
	MonthStatusOver    MonthCategoryStatus = "over"

	TrendImproving CategoryTrend = "improving"
	TrendStable    CategoryTrend = "stable"
	TrendWorsening CategoryTrend = "worsening"

	DirectionUp     TrendDirection = "up"
	DirectionDown   TrendDirection = "down"
	DirectionStable TrendDirection = "stable"

	ImprovementImproving Improvement = "improving"
	ImprovementDeclining Improvement = "declining"
	ImprovementStable    Improvement = "stable"
)

type (
	MonthCategoryStatus string
	CategoryTrend       string
	TrendDirection      string
	Improvement         string

	// MonthCategoryPerformance is one category's result within a month.
	MonthCategoryPerformance struct {
		CategoryID     int64               `json:"category_id"`
		CategoryName   string              `json:"category_name"`
		Budgeted       Money               `json:"budgeted_amount"`
		Spent          Money               `json:"spent_amount"`
		PercentageUsed int                 `json:"percentage_used"`
		Status         MonthCategoryStatus `json:"status"`
		Met            bool                `json:"met"`
		Recommendation string              `json:"recommendation,omitempty"`
	}

	// MonthlyBudgetPerformance aggregates one calendar month.
	MonthlyBudgetPerformance struct {
		Year          int                        `json:"year"`
		Month         int                        `json:"month"`
		TotalBudgeted Money                      `json:"total_budgeted"`
		TotalSpent    Money                      `json:"total_spent"`
		BudgetsMet    int                        `json:"budgets_met"`
		TotalBudgets  int                        `json:"total_budgets"`
		SuccessRate   float64                    `json:"success_rate"`
		Categories    []MonthCategoryPerformance `json:"categories"`
	}

	// CategoryPerformance aggregates one category across several months.
	CategoryPerformance struct {
		CategoryID       int64         `json:"category_id"`
		CategoryName     string        `json:"category_name"`
		MonthsBudgeted   int           `json:"months_budgeted"`
		TotalBudgeted    Money         `json:"total_budgeted"`
		TotalSpent       Money         `json:"total_spent"`
		Utilization      float64       `json:"utilization_percentage"`
		Trend            CategoryTrend `json:"trend"`
		ConsistencyScore float64       `json:"consistency_score"`
	}

	// SpendingTrend is one period in a spend series with its delta from
	// the immediately preceding period.
	SpendingTrend struct {
		Year             int            `json:"year"`
		Month            int            `json:"month"`
		Spent            Money          `json:"spent_amount"`
		ChangeFromPrev   Money          `json:"change_from_previous"`
		ChangePercentage float64        `json:"change_percentage"`
		Direction        TrendDirection `json:"trend_direction"`
	}

	// BudgetSuccessMetrics summarizes budget adherence over a window.
	BudgetSuccessMetrics struct {
		OverallSuccessRate      float64       `json:"overall_success_rate"`
		CurrentStreak           int           `json:"current_streak"`
		BestStreak              int           `json:"best_streak"`
		AverageOverspend        Money         `json:"average_overspend"`
		MostSuccessfulCategory  string        `json:"most_successful_category"`
		MostChallengingCategory string        `json:"most_challenging_category"`
		ImprovementTrend        Improvement   `json:"improvement_trend"`
	}
)

// MonthStatusForPercentage classifies a category's month retrospectively.
func MonthStatusForPercentage(p int) MonthCategoryStatus {
	switch {
	case p <= MonthUnderThreshold:
		return MonthStatusUnder
	case p <= MonthOnTrackThreshold:
		return MonthStatusOnTrack
	default:
		return MonthStatusOver
	}
}
