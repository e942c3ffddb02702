package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"budgeter/internal/cache"
	"budgeter/internal/core"
	"budgeter/internal/ledger"
)

// Analyzer aggregates multi-month budget history into performance, trend,
// and success analytics. Analytics is advisory: a failed month or category
// is logged and skipped rather than aborting the whole report.
type Analyzer struct {
	store ledger.Accessor

	monthly *cache.Loader[[]core.MonthlyBudgetPerformance]
	catPerf *cache.Loader[[]core.CategoryPerformance]
	success *cache.Loader[core.BudgetSuccessMetrics]
	trends  *cache.Loader[[]core.SpendingTrend]
}

func NewAnalyzer(store ledger.Accessor, ttl time.Duration, mgr *cache.Manager) *Analyzer {
	monthly := cache.NewLRUCache[[]core.MonthlyBudgetPerformance](32, ttl)
	catPerf := cache.NewLRUCache[[]core.CategoryPerformance](32, ttl)
	success := cache.NewLRUCache[core.BudgetSuccessMetrics](32, ttl)
	trends := cache.NewLRUCache[[]core.SpendingTrend](64, ttl)
	if mgr != nil {
		mgr.Register(monthly)
		mgr.Register(catPerf)
		mgr.Register(success)
		mgr.Register(trends)
	}
	return &Analyzer{
		store:   store,
		monthly: cache.NewLoader(monthly),
		catPerf: cache.NewLoader(catPerf),
		success: cache.NewLoader(success),
		trends:  cache.NewLoader(trends),
	}
}

// MonthlyPerformance returns one entry per calendar month in [start, end].
// Months with neither budgets nor spend are omitted; months with budgets
// but zero spend are included.
func (a *Analyzer) MonthlyPerformance(ctx context.Context, start, end time.Time) ([]core.MonthlyBudgetPerformance, error) {
	key := fmt.Sprintf("monthlyPerformance:%d:%d", start.Unix(), end.Unix())
	return a.monthly.GetOrLoad(key, func() ([]core.MonthlyBudgetPerformance, error) {
		return a.computeMonthly(ctx, start, end)
	})
}

func (a *Analyzer) computeMonthly(ctx context.Context, start, end time.Time) ([]core.MonthlyBudgetPerformance, error) {
	budgets, err := a.store.Budgets(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch budgets: %w", err)
	}
	cats, err := a.store.Categories(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch categories: %w", err)
	}
	names := make(map[int64]string, len(cats))
	for _, c := range cats {
		names[c.ID] = c.Name
	}

	var out []core.MonthlyBudgetPerformance
	for cur := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC); !cur.After(end); cur = cur.AddDate(0, 1, 0) {
		monthStart, monthEnd := MonthBounds(cur)

		txns, err := a.store.Transactions(ctx, ledger.TransactionFilter{
			Type: core.Expense,
			From: monthStart,
			To:   monthEnd,
		})
		if err != nil {
			// A bad month should not sink the whole report.
			slog.WarnContext(ctx, "Skipping month in performance report",
				"year", cur.Year(), "month", int(cur.Month()), "error", err)
			continue
		}

		spend := make(map[int64]int64)
		for _, t := range txns {
			spend[t.CategoryID] += t.Amount.Cents
		}

		perf := core.MonthlyBudgetPerformance{
			Year:  cur.Year(),
			Month: int(cur.Month()),
		}

		budgetedCats := make(map[int64]bool)
		for _, b := range budgets {
			if !b.Overlaps(monthStart, monthEnd) {
				continue
			}
			budgetedCats[b.CategoryID] = true
			spent := spend[b.CategoryID]
			pct := core.PercentageUsed(core.Money{Cents: spent}, b.Amount)
			met := spent <= b.Amount.Cents

			name := names[b.CategoryID]
			if name == "" {
				name = unknownCategoryName
			}
			perf.Categories = append(perf.Categories, core.MonthCategoryPerformance{
				CategoryID:     b.CategoryID,
				CategoryName:   name,
				Budgeted:       b.Amount,
				Spent:          core.Money{Cents: spent},
				PercentageUsed: pct,
				Status:         core.MonthStatusForPercentage(pct),
				Met:            met,
			})

			perf.TotalBudgeted.Cents += b.Amount.Cents
			perf.TotalSpent.Cents += spent
			perf.TotalBudgets++
			if met {
				perf.BudgetsMet++
			}
		}

		// Spending with no budget that month is always flagged as over.
		for catID, spent := range spend {
			if budgetedCats[catID] || spent == 0 {
				continue
			}
			name := names[catID]
			if name == "" {
				name = unknownCategoryName
			}
			perf.Categories = append(perf.Categories, core.MonthCategoryPerformance{
				CategoryID:     catID,
				CategoryName:   name,
				Spent:          core.Money{Cents: spent},
				Status:         core.MonthStatusOver,
				Recommendation: "Consider setting a budget for this category",
			})
			perf.TotalSpent.Cents += spent
		}

		if perf.TotalBudgets == 0 && perf.TotalSpent.Cents == 0 {
			continue
		}

		if perf.TotalBudgets > 0 {
			perf.SuccessRate = float64(perf.BudgetsMet) / float64(perf.TotalBudgets) * 100
		}

		sort.Slice(perf.Categories, func(i, j int) bool {
			return perf.Categories[i].CategoryID < perf.Categories[j].CategoryID
		})
		out = append(out, perf)
	}
	return out, nil
}

// CategoryPerformance aggregates each budgeted category over the most
// recent periodMonths calendar months, sorted by utilization descending.
func (a *Analyzer) CategoryPerformance(ctx context.Context, periodMonths int) ([]core.CategoryPerformance, error) {
	key := fmt.Sprintf("categoryPerformance:%d", periodMonths)
	return a.catPerf.GetOrLoad(key, func() ([]core.CategoryPerformance, error) {
		start, end := windowForMonths(periodMonths)
		monthly, err := a.MonthlyPerformance(ctx, start, end)
		if err != nil {
			return nil, err
		}

		type agg struct {
			name     string
			budgeted int64
			spent    int64
			months   int
			spends   []int64 // chronological, budgeted months only
		}
		byCat := make(map[int64]*agg)
		var order []int64

		for _, month := range monthly {
			for _, c := range month.Categories {
				if c.Budgeted.Cents == 0 {
					continue
				}
				entry, ok := byCat[c.CategoryID]
				if !ok {
					entry = &agg{name: c.CategoryName}
					byCat[c.CategoryID] = entry
					order = append(order, c.CategoryID)
				}
				entry.budgeted += c.Budgeted.Cents
				entry.spent += c.Spent.Cents
				entry.months++
				entry.spends = append(entry.spends, c.Spent.Cents)
			}
		}

		out := make([]core.CategoryPerformance, 0, len(order))
		for _, catID := range order {
			entry := byCat[catID]
			var utilization float64
			if entry.budgeted > 0 {
				utilization = float64(entry.spent) / float64(entry.budgeted) * 100
			}
			out = append(out, core.CategoryPerformance{
				CategoryID:       catID,
				CategoryName:     entry.name,
				MonthsBudgeted:   entry.months,
				TotalBudgeted:    core.Money{Cents: entry.budgeted},
				TotalSpent:       core.Money{Cents: entry.spent},
				Utilization:      utilization,
				Trend:            spendTrend(entry.spends),
				ConsistencyScore: consistencyScore(entry.spends),
			})
		}
		sort.Slice(out, func(i, j int) bool {
			if out[i].Utilization == out[j].Utilization {
				return out[i].CategoryID < out[j].CategoryID
			}
			return out[i].Utilization > out[j].Utilization
		})
		return out, nil
	})
}

// SuccessMetrics summarizes budget adherence over the most recent
// periodMonths months.
func (a *Analyzer) SuccessMetrics(ctx context.Context, periodMonths int) (core.BudgetSuccessMetrics, error) {
	key := fmt.Sprintf("successMetrics:%d", periodMonths)
	return a.success.GetOrLoad(key, func() (core.BudgetSuccessMetrics, error) {
		start, end := windowForMonths(periodMonths)
		monthly, err := a.MonthlyPerformance(ctx, start, end)
		if err != nil {
			return core.BudgetSuccessMetrics{}, err
		}

		metrics := core.BudgetSuccessMetrics{ImprovementTrend: core.ImprovementStable}

		var totalMet, totalBudgets int
		var overspendSum int64
		for _, m := range monthly {
			totalMet += m.BudgetsMet
			totalBudgets += m.TotalBudgets
			if over := m.TotalSpent.Cents - m.TotalBudgeted.Cents; over > 0 {
				overspendSum += over
			}
		}
		if totalBudgets > 0 {
			metrics.OverallSuccessRate = float64(totalMet) / float64(totalBudgets) * 100
		}
		if len(monthly) > 0 {
			metrics.AverageOverspend = core.Money{Cents: overspendSum / int64(len(monthly))}
		}

		metrics.CurrentStreak, metrics.BestStreak = streaks(monthly)

		perf, err := a.CategoryPerformance(ctx, periodMonths)
		if err != nil {
			return core.BudgetSuccessMetrics{}, err
		}
		if len(perf) > 0 {
			// perf is sorted by utilization descending.
			metrics.MostChallengingCategory = perf[0].CategoryName
			metrics.MostSuccessfulCategory = perf[len(perf)-1].CategoryName
		}

		// Improvement compares the ends of the most recent 3-month slice;
		// undefined with fewer months of data.
		if len(monthly) >= 3 {
			slice := monthly[len(monthly)-3:]
			switch diff := slice[2].SuccessRate - slice[0].SuccessRate; {
			case diff > 10:
				metrics.ImprovementTrend = core.ImprovementImproving
			case diff < -10:
				metrics.ImprovementTrend = core.ImprovementDeclining
			}
		}
		return metrics, nil
	})
}

// SpendingTrends returns the per-month spend series for one category
// (categoryID 0 means all categories) over the most recent periodMonths
// months. The first period always reports zero change.
func (a *Analyzer) SpendingTrends(ctx context.Context, categoryID int64, periodMonths int) ([]core.SpendingTrend, error) {
	key := fmt.Sprintf("spendingTrends:%d:%d", categoryID, periodMonths)
	return a.trends.GetOrLoad(key, func() ([]core.SpendingTrend, error) {
		start, end := windowForMonths(periodMonths)

		var out []core.SpendingTrend
		var prev int64
		for cur := start; !cur.After(end); cur = cur.AddDate(0, 1, 0) {
			monthStart, monthEnd := MonthBounds(cur)
			txns, err := a.store.Transactions(ctx, ledger.TransactionFilter{
				CategoryID: categoryID,
				Type:       core.Expense,
				From:       monthStart,
				To:         monthEnd,
			})
			if err != nil {
				return nil, fmt.Errorf("fetch transactions for %d-%02d: %w", cur.Year(), int(cur.Month()), err)
			}
			var spent int64
			for _, t := range txns {
				spent += t.Amount.Cents
			}

			trend := core.SpendingTrend{
				Year:      cur.Year(),
				Month:     int(cur.Month()),
				Spent:     core.Money{Cents: spent},
				Direction: core.DirectionStable,
			}
			if len(out) > 0 {
				change := spent - prev
				trend.ChangeFromPrev = core.Money{Cents: change}
				switch {
				case prev > 0:
					trend.ChangePercentage = float64(change) / float64(prev) * 100
				case spent > 0:
					trend.ChangePercentage = 100
				}
				switch {
				case math.Abs(trend.ChangePercentage) < 5:
					trend.Direction = core.DirectionStable
				case change > 0:
					trend.Direction = core.DirectionUp
				default:
					trend.Direction = core.DirectionDown
				}
			}
			out = append(out, trend)
			prev = spent
		}
		return out, nil
	})
}

// Insights derives narrative strings from the last two months of a
// performance series. Fewer than two months yields no insights; a missing
// qualifying condition simply omits that line.
func (a *Analyzer) Insights(performance []core.MonthlyBudgetPerformance) []string {
	if len(performance) < 2 {
		return []string{}
	}

	prev := performance[len(performance)-2]
	latest := performance[len(performance)-1]
	var out []string

	switch swing := latest.SuccessRate - prev.SuccessRate; {
	case swing > 10:
		out = append(out, fmt.Sprintf(
			"Budget success rate improved by %.0f points month over month (%.0f%% to %.0f%%)",
			swing, prev.SuccessRate, latest.SuccessRate))
	case swing < -10:
		out = append(out, fmt.Sprintf(
			"Budget success rate dropped by %.0f points month over month (%.0f%% to %.0f%%)",
			-swing, prev.SuccessRate, latest.SuccessRate))
	}

	if latest.TotalBudgeted.Cents > 0 {
		utilization := float64(latest.TotalSpent.Cents) / float64(latest.TotalBudgeted.Cents) * 100
		switch {
		case utilization < 80:
			out = append(out, fmt.Sprintf(
				"Overall utilization was only %.0f%% last month; some budgets may have room to tighten", utilization))
		case utilization > 105:
			out = append(out, fmt.Sprintf(
				"Spending ran at %.0f%% of total budgets last month", utilization))
		}
	}

	if worst, ok := worstOverBudget(latest); ok {
		out = append(out, fmt.Sprintf(
			"%s was the furthest over budget last month at %d%% of its limit",
			worst.CategoryName, worst.PercentageUsed))
	}

	if steady, ok := steadiestCategory(performance, latest); ok {
		out = append(out, fmt.Sprintf(
			"%s spending has been consistent and within budget", steady))
	}

	return out
}

// ClearCache wipes every analytics cache, independent of the Progress
// Calculator's caches.
func (a *Analyzer) ClearCache() {
	a.monthly.Clear()
	a.catPerf.Clear()
	a.success.Clear()
	a.trends.Clear()
}

func worstOverBudget(month core.MonthlyBudgetPerformance) (core.MonthCategoryPerformance, bool) {
	var worst core.MonthCategoryPerformance
	found := false
	for _, c := range month.Categories {
		if c.Status != core.MonthStatusOver || c.Budgeted.Cents == 0 {
			continue
		}
		if !found || c.PercentageUsed > worst.PercentageUsed {
			worst = c
			found = true
		}
	}
	return worst, found
}

func steadiestCategory(performance []core.MonthlyBudgetPerformance, latest core.MonthlyBudgetPerformance) (string, bool) {
	spends := make(map[int64][]int64)
	names := make(map[int64]string)
	for _, month := range performance {
		for _, c := range month.Categories {
			if c.Budgeted.Cents == 0 {
				continue
			}
			spends[c.CategoryID] = append(spends[c.CategoryID], c.Spent.Cents)
			names[c.CategoryID] = c.CategoryName
		}
	}

	overNow := make(map[int64]bool)
	for _, c := range latest.Categories {
		if c.Status == core.MonthStatusOver {
			overNow[c.CategoryID] = true
		}
	}

	bestScore := 0.8
	var bestID int64
	found := false
	for catID, samples := range spends {
		if overNow[catID] {
			continue
		}
		if score := consistencyScore(samples); score > bestScore {
			bestScore = score
			bestID = catID
			found = true
		}
	}
	if !found {
		return "", false
	}
	return names[bestID], true
}

// spendTrend classifies the three most recent monthly spends: improving
// when both month-over-month deltas fall, worsening when both rise.
func spendTrend(spends []int64) core.CategoryTrend {
	if len(spends) < 3 {
		return core.TrendStable
	}
	recent := spends[len(spends)-3:]
	d1 := recent[1] - recent[0]
	d2 := recent[2] - recent[1]
	switch {
	case d1 < 0 && d2 < 0:
		return core.TrendImproving
	case d1 > 0 && d2 > 0:
		return core.TrendWorsening
	default:
		return core.TrendStable
	}
}

// consistencyScore is 1 minus the coefficient of variation of the spend
// samples, clipped at 0. A zero mean scores 0.
func consistencyScore(samples []int64) float64 {
	if len(samples) == 0 {
		return 0
	}
	mean := meanOf(samples)
	if mean == 0 {
		return 0
	}
	var sumSq float64
	for _, s := range samples {
		d := float64(s) - mean
		sumSq += d * d
	}
	stddev := math.Sqrt(sumSq / float64(len(samples)))
	return math.Max(0, 1-stddev/mean)
}

func meanOf(samples []int64) float64 {
	var sum int64
	for _, s := range samples {
		sum += s
	}
	return float64(sum) / float64(len(samples))
}

// streaks scans months most-recent-first against the 80% success bar.
// The current streak is the qualifying run touching the latest month; it
// is 0 when that month misses the bar.
func streaks(monthly []core.MonthlyBudgetPerformance) (current, best int) {
	for i := len(monthly) - 1; i >= 0; i-- {
		if monthly[i].SuccessRate < core.StreakSuccessRate {
			break
		}
		current++
	}

	run := 0
	for i := len(monthly) - 1; i >= 0; i-- {
		if monthly[i].SuccessRate >= core.StreakSuccessRate {
			run++
			if run > best {
				best = run
			}
		} else {
			run = 0
		}
	}
	return current, best
}

// windowForMonths returns the bounds of the most recent n calendar months,
// current month included.
func windowForMonths(n int) (time.Time, time.Time) {
	if n < 1 {
		n = 1
	}
	now := time.Now().UTC()
	_, end := MonthBounds(now)
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(n - 1), 0)
	return start, end
}
