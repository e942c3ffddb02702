package engine

import (
	"context"
	"strings"
	"testing"
	"time"

	"budgeter/internal/core"
	"budgeter/internal/ledger"
)

// monthStart returns the first instant of the month offset months from now
// (0 is the current month, -1 the previous one).
func monthStart(offset int) time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, offset, 0)
}

func seedMonth(t *testing.T, store *ledger.MemoryLedger, categoryID int64, offset int, budgeted, spent int64) {
	t.Helper()
	start, end := MonthBounds(monthStart(offset))
	if budgeted > 0 {
		_, err := store.CreateBudget(context.Background(), core.Budget{
			CategoryID:  categoryID,
			Amount:      core.Money{Cents: budgeted},
			PeriodStart: start,
			PeriodEnd:   end,
		})
		if err != nil {
			t.Fatalf("CreateBudget() error = %v", err)
		}
	}
	if spent > 0 {
		store.AddTransaction(core.Transaction{
			CategoryID:  categoryID,
			Type:        core.Expense,
			Amount:      core.Money{Cents: spent},
			Description: "seed",
			Date:        start.Add(36 * time.Hour),
		})
	}
}

func TestMonthlyPerformance(t *testing.T) {
	store := ledger.NewMemoryLedger()
	cat := store.AddCategory(core.Category{Name: "Groceries"})
	seedMonth(t, store, cat.ID, 0, 50000, 45000)

	a := NewAnalyzer(store, time.Minute, nil)
	// A three-month window: the two empty months must be omitted.
	got, err := a.MonthlyPerformance(context.Background(), monthStart(-2), time.Now().UTC())
	if err != nil {
		t.Fatalf("MonthlyPerformance() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d months, want 1 (empty months omitted)", len(got))
	}

	m := got[0]
	now := time.Now().UTC()
	if m.Year != now.Year() || m.Month != int(now.Month()) {
		t.Errorf("month = %d-%02d", m.Year, m.Month)
	}
	if m.TotalBudgets != 1 || m.BudgetsMet != 1 {
		t.Errorf("budgets met %d/%d, want 1/1", m.BudgetsMet, m.TotalBudgets)
	}
	if m.SuccessRate != 100 {
		t.Errorf("SuccessRate = %v, want 100", m.SuccessRate)
	}
	if len(m.Categories) != 1 {
		t.Fatalf("got %d categories, want 1", len(m.Categories))
	}
	c := m.Categories[0]
	if c.PercentageUsed != 90 || c.Status != core.MonthStatusUnder {
		t.Errorf("category = %d%% %q, want 90%% under", c.PercentageUsed, c.Status)
	}
	if !c.Met {
		t.Error("category within budget not marked met")
	}
}

func TestMonthlyPerformanceFlagsUnbudgetedSpend(t *testing.T) {
	store := ledger.NewMemoryLedger()
	budgetedCat := store.AddCategory(core.Category{Name: "Groceries"})
	freeCat := store.AddCategory(core.Category{Name: "Gadgets"})
	seedMonth(t, store, budgetedCat.ID, 0, 50000, 20000)
	seedMonth(t, store, freeCat.ID, 0, 0, 7500)

	a := NewAnalyzer(store, time.Minute, nil)
	got, err := a.MonthlyPerformance(context.Background(), monthStart(0), time.Now().UTC())
	if err != nil {
		t.Fatalf("MonthlyPerformance() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d months, want 1", len(got))
	}

	m := got[0]
	if len(m.Categories) != 2 {
		t.Fatalf("got %d categories, want 2", len(m.Categories))
	}
	var free *core.MonthCategoryPerformance
	for i := range m.Categories {
		if m.Categories[i].CategoryID == freeCat.ID {
			free = &m.Categories[i]
		}
	}
	if free == nil {
		t.Fatal("unbudgeted category missing from report")
	}
	if free.Status != core.MonthStatusOver {
		t.Errorf("unbudgeted status = %q, want %q", free.Status, core.MonthStatusOver)
	}
	if free.Recommendation == "" {
		t.Error("unbudgeted category has no recommendation")
	}
	if m.TotalSpent.Cents != 27500 {
		t.Errorf("TotalSpent = %d, want 27500", m.TotalSpent.Cents)
	}
	if m.TotalBudgets != 1 {
		t.Errorf("TotalBudgets = %d, want 1 (unbudgeted spend is not a budget)", m.TotalBudgets)
	}
}

func TestSuccessMetrics(t *testing.T) {
	store := ledger.NewMemoryLedger()
	cat := store.AddCategory(core.Category{Name: "Dining"})
	seedMonth(t, store, cat.ID, -2, 50000, 60000) // failed, 10000 over
	seedMonth(t, store, cat.ID, -1, 50000, 40000) // met
	seedMonth(t, store, cat.ID, 0, 50000, 45000)  // met

	a := NewAnalyzer(store, time.Minute, nil)
	got, err := a.SuccessMetrics(context.Background(), 3)
	if err != nil {
		t.Fatalf("SuccessMetrics() error = %v", err)
	}

	if got.OverallSuccessRate < 66 || got.OverallSuccessRate > 67 {
		t.Errorf("OverallSuccessRate = %v, want ~66.7", got.OverallSuccessRate)
	}
	if got.CurrentStreak != 2 {
		t.Errorf("CurrentStreak = %d, want 2", got.CurrentStreak)
	}
	if got.BestStreak != 2 {
		t.Errorf("BestStreak = %d, want 2", got.BestStreak)
	}
	if got.AverageOverspend.Cents != 10000/3 {
		t.Errorf("AverageOverspend = %d, want %d", got.AverageOverspend.Cents, 10000/3)
	}
	if got.MostChallengingCategory != "Dining" || got.MostSuccessfulCategory != "Dining" {
		t.Errorf("category picks = %q / %q", got.MostChallengingCategory, got.MostSuccessfulCategory)
	}
	if got.ImprovementTrend != core.ImprovementImproving {
		t.Errorf("ImprovementTrend = %q, want %q", got.ImprovementTrend, core.ImprovementImproving)
	}
}

func TestCategoryPerformance(t *testing.T) {
	store := ledger.NewMemoryLedger()
	hot := store.AddCategory(core.Category{Name: "Dining"})
	cool := store.AddCategory(core.Category{Name: "Groceries"})
	seedMonth(t, store, hot.ID, -2, 30000, 36000)
	seedMonth(t, store, hot.ID, -1, 30000, 33000)
	seedMonth(t, store, hot.ID, 0, 30000, 30000)
	seedMonth(t, store, cool.ID, -2, 50000, 25000)
	seedMonth(t, store, cool.ID, -1, 50000, 25000)
	seedMonth(t, store, cool.ID, 0, 50000, 25000)

	a := NewAnalyzer(store, time.Minute, nil)
	got, err := a.CategoryPerformance(context.Background(), 3)
	if err != nil {
		t.Fatalf("CategoryPerformance() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d categories, want 2", len(got))
	}

	// Sorted by utilization descending: Dining 110%, Groceries 50%.
	if got[0].CategoryName != "Dining" {
		t.Fatalf("first category = %q, want Dining", got[0].CategoryName)
	}
	if got[0].Utilization < 109.9 || got[0].Utilization > 110.1 {
		t.Errorf("Dining utilization = %v, want 110", got[0].Utilization)
	}
	if got[0].MonthsBudgeted != 3 {
		t.Errorf("Dining MonthsBudgeted = %d, want 3", got[0].MonthsBudgeted)
	}
	if got[0].Trend != core.TrendImproving {
		t.Errorf("Dining trend = %q, want improving (spend falling two months running)", got[0].Trend)
	}

	if got[1].CategoryName != "Groceries" {
		t.Fatalf("second category = %q, want Groceries", got[1].CategoryName)
	}
	if got[1].Trend != core.TrendStable {
		t.Errorf("Groceries trend = %q, want stable", got[1].Trend)
	}
	if got[1].ConsistencyScore != 1 {
		t.Errorf("Groceries ConsistencyScore = %v, want 1 (identical spend each month)", got[1].ConsistencyScore)
	}
}

func TestSpendingTrends(t *testing.T) {
	store := ledger.NewMemoryLedger()
	cat := store.AddCategory(core.Category{Name: "Dining"})
	seedMonth(t, store, cat.ID, -2, 0, 10000)
	seedMonth(t, store, cat.ID, -1, 0, 20000)
	seedMonth(t, store, cat.ID, 0, 0, 20500)

	a := NewAnalyzer(store, time.Minute, nil)
	got, err := a.SpendingTrends(context.Background(), cat.ID, 3)
	if err != nil {
		t.Fatalf("SpendingTrends() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d periods, want 3", len(got))
	}

	first := got[0]
	if first.ChangeFromPrev.Cents != 0 || first.ChangePercentage != 0 || first.Direction != core.DirectionStable {
		t.Errorf("first period must report zero change, got %+v", first)
	}

	second := got[1]
	if second.ChangePercentage != 100 || second.Direction != core.DirectionUp {
		t.Errorf("second period = %+v, want +100%% up", second)
	}

	third := got[2]
	if third.Direction != core.DirectionStable {
		t.Errorf("2.5%% change classified %q, want stable", third.Direction)
	}
	if third.ChangeFromPrev.Cents != 500 {
		t.Errorf("third ChangeFromPrev = %d, want 500", third.ChangeFromPrev.Cents)
	}
}

func TestSpendingTrendsFromZeroBaseline(t *testing.T) {
	store := ledger.NewMemoryLedger()
	cat := store.AddCategory(core.Category{Name: "Dining"})
	seedMonth(t, store, cat.ID, 0, 0, 5000)

	a := NewAnalyzer(store, time.Minute, nil)
	got, err := a.SpendingTrends(context.Background(), cat.ID, 2)
	if err != nil {
		t.Fatalf("SpendingTrends() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d periods, want 2", len(got))
	}
	if got[1].ChangePercentage != 100 || got[1].Direction != core.DirectionUp {
		t.Errorf("spend appearing from zero = %+v, want +100%% up", got[1])
	}
}

func TestInsights(t *testing.T) {
	a := NewAnalyzer(ledger.NewMemoryLedger(), time.Minute, nil)

	t.Run("fewer than two months", func(t *testing.T) {
		got := a.Insights([]core.MonthlyBudgetPerformance{{Year: 2025, Month: 7, SuccessRate: 100}})
		if len(got) != 0 {
			t.Errorf("single month produced insights: %v", got)
		}
	})

	t.Run("success rate improvement", func(t *testing.T) {
		got := a.Insights([]core.MonthlyBudgetPerformance{
			{Year: 2025, Month: 6, SuccessRate: 60},
			{Year: 2025, Month: 7, SuccessRate: 80},
		})
		if len(got) == 0 {
			t.Fatal("no insights for a 20-point improvement")
		}
		if !strings.Contains(got[0], "20 points") || !strings.Contains(got[0], "60%") || !strings.Contains(got[0], "80%") {
			t.Errorf("insight = %q", got[0])
		}
	})

	t.Run("worst over-budget category", func(t *testing.T) {
		latest := core.MonthlyBudgetPerformance{
			Year: 2025, Month: 7, SuccessRate: 50,
			TotalBudgeted: core.Money{Cents: 100000},
			TotalSpent:    core.Money{Cents: 95000},
			Categories: []core.MonthCategoryPerformance{
				{CategoryID: 1, CategoryName: "Dining", Budgeted: core.Money{Cents: 40000}, Spent: core.Money{Cents: 52000}, PercentageUsed: 130, Status: core.MonthStatusOver},
				{CategoryID: 2, CategoryName: "Shopping", Budgeted: core.Money{Cents: 60000}, Spent: core.Money{Cents: 43000}, PercentageUsed: 72, Status: core.MonthStatusUnder, Met: true},
			},
		}
		got := a.Insights([]core.MonthlyBudgetPerformance{
			{Year: 2025, Month: 6, SuccessRate: 50},
			latest,
		})

		found := false
		for _, line := range got {
			if strings.Contains(line, "Dining") && strings.Contains(line, "130%") {
				found = true
			}
		}
		if !found {
			t.Errorf("no worst-over-budget insight in %v", got)
		}
	})
}

func TestStreaks(t *testing.T) {
	month := func(rate float64) core.MonthlyBudgetPerformance {
		return core.MonthlyBudgetPerformance{SuccessRate: rate}
	}

	tests := []struct {
		name        string
		months      []core.MonthlyBudgetPerformance
		wantCurrent int
		wantBest    int
	}{
		{"empty", nil, 0, 0},
		{"all qualifying", []core.MonthlyBudgetPerformance{month(100), month(80), month(90)}, 3, 3},
		{"latest fails", []core.MonthlyBudgetPerformance{month(100), month(100), month(50)}, 0, 2},
		{"broken run", []core.MonthlyBudgetPerformance{month(100), month(50), month(100), month(100)}, 2, 2},
		{"best older than current", []core.MonthlyBudgetPerformance{month(90), month(90), month(90), month(50), month(85)}, 1, 3},
		{"threshold is inclusive", []core.MonthlyBudgetPerformance{month(80)}, 1, 1},
		{"just below threshold", []core.MonthlyBudgetPerformance{month(79.9)}, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			current, best := streaks(tt.months)
			if current != tt.wantCurrent || best != tt.wantBest {
				t.Errorf("streaks() = %d, %d; want %d, %d", current, best, tt.wantCurrent, tt.wantBest)
			}
		})
	}
}

func TestSpendTrend(t *testing.T) {
	tests := []struct {
		name   string
		spends []int64
		want   core.CategoryTrend
	}{
		{"too few samples", []int64{100, 90}, core.TrendStable},
		{"both deltas falling", []int64{300, 200, 100}, core.TrendImproving},
		{"both deltas rising", []int64{100, 200, 300}, core.TrendWorsening},
		{"mixed", []int64{100, 300, 200}, core.TrendStable},
		{"only recent three count", []int64{1, 500, 400, 300}, core.TrendImproving},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := spendTrend(tt.spends); got != tt.want {
				t.Errorf("spendTrend(%v) = %q, want %q", tt.spends, got, tt.want)
			}
		})
	}
}

func TestConsistencyScore(t *testing.T) {
	if got := consistencyScore(nil); got != 0 {
		t.Errorf("consistencyScore(nil) = %v, want 0", got)
	}
	if got := consistencyScore([]int64{0, 0}); got != 0 {
		t.Errorf("zero mean score = %v, want 0", got)
	}
	if got := consistencyScore([]int64{500, 500, 500}); got != 1 {
		t.Errorf("identical samples score = %v, want 1", got)
	}
	wild := consistencyScore([]int64{100, 10000, 50})
	steady := consistencyScore([]int64{900, 1000, 1100})
	if wild >= steady {
		t.Errorf("volatile series scored %v, steady %v; want volatile lower", wild, steady)
	}
}
