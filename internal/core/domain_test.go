package core

import (
	"errors"
	"testing"
	"time"
)

func TestTransactionValidate(t *testing.T) {
	valid := Transaction{
		Amount:      Money{Cents: 1250},
		Description: "Groceries",
		CategoryID:  1,
		Type:        Expense,
		Date:        time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
	}

	if err := valid.Validate(); err != nil {
		t.Fatalf("valid transaction should pass validation: %v", err)
	}

	t.Run("rejects non-positive amount", func(t *testing.T) {
		tx := valid
		tx.Amount = Money{Cents: 0}
		if !errors.Is(tx.Validate(), ErrInvalidAmount) {
			t.Error("expected ErrInvalidAmount")
		}
	})

	t.Run("rejects empty description", func(t *testing.T) {
		tx := valid
		tx.Description = "   "
		if !errors.Is(tx.Validate(), ErrEmptyDescription) {
			t.Error("expected ErrEmptyDescription")
		}
	})

	t.Run("rejects unknown type", func(t *testing.T) {
		tx := valid
		tx.Type = "transfer"
		if !errors.Is(tx.Validate(), ErrInvalidType) {
			t.Error("expected ErrInvalidType")
		}
	})

	t.Run("rejects missing category", func(t *testing.T) {
		tx := valid
		tx.CategoryID = 0
		if !errors.Is(tx.Validate(), ErrMissingCategory) {
			t.Error("expected ErrMissingCategory")
		}
	})
}

func TestBudgetValidate(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 31, 23, 59, 59, 0, time.UTC)

	valid := Budget{CategoryID: 1, Amount: Money{Cents: 50000}, PeriodStart: start, PeriodEnd: end}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid budget should pass validation: %v", err)
	}

	t.Run("rejects inverted period", func(t *testing.T) {
		b := valid
		b.PeriodStart, b.PeriodEnd = end, start
		if !errors.Is(b.Validate(), ErrInvalidPeriod) {
			t.Error("expected ErrInvalidPeriod")
		}
	})

	t.Run("rejects equal start and end", func(t *testing.T) {
		b := valid
		b.PeriodEnd = b.PeriodStart
		if !errors.Is(b.Validate(), ErrInvalidPeriod) {
			t.Error("expected ErrInvalidPeriod")
		}
	})
}

func TestBudgetContainsAndOverlaps(t *testing.T) {
	b := Budget{
		PeriodStart: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2026, 3, 31, 23, 59, 59, 0, time.UTC),
	}

	if !b.Contains(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Error("period start should be inclusive")
	}
	if !b.Contains(time.Date(2026, 3, 31, 23, 59, 59, 0, time.UTC)) {
		t.Error("period end should be inclusive")
	}
	if b.Contains(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)) {
		t.Error("day after period end should be excluded")
	}

	if !b.Overlaps(time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC), time.Date(2026, 4, 20, 0, 0, 0, 0, time.UTC)) {
		t.Error("partially overlapping window should match")
	}
	if b.Overlaps(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC)) {
		t.Error("disjoint window should not match")
	}
}

func TestPercentageUsed(t *testing.T) {
	cases := []struct {
		name     string
		spent    int64
		budgeted int64
		want     int
	}{
		{"half", 25000, 50000, 50},
		{"at limit", 50000, 50000, 100},
		{"over", 60000, 50000, 120},
		{"rounds up", 1005, 2000, 50},
		{"rounds half up", 1010, 2000, 51},
		{"zero budget", 10000, 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := PercentageUsed(Money{Cents: tc.spent}, Money{Cents: tc.budgeted})
			if got != tc.want {
				t.Errorf("PercentageUsed(%d, %d) = %d, want %d", tc.spent, tc.budgeted, got, tc.want)
			}
		})
	}
}

func TestStatusForPercentage(t *testing.T) {
	// Real-time thresholds: <75 under, 75-100 approaching, >100 over.
	cases := []struct {
		p    int
		want BudgetStatus
	}{
		{0, StatusUnder},
		{50, StatusUnder},
		{74, StatusUnder},
		{75, StatusApproaching},
		{99, StatusApproaching},
		{100, StatusApproaching},
		{101, StatusOver},
		{250, StatusOver},
	}
	for _, tc := range cases {
		if got := StatusForPercentage(tc.p); got != tc.want {
			t.Errorf("StatusForPercentage(%d) = %q, want %q", tc.p, got, tc.want)
		}
	}
}

func TestTierForPercentage(t *testing.T) {
	t.Run("below threshold has no tier", func(t *testing.T) {
		if _, _, ok := TierForPercentage(74); ok {
			t.Error("74%% should not produce an alert tier")
		}
	})

	cases := []struct {
		p            int
		wantTier     AlertType
		wantSeverity Severity
	}{
		{75, AlertApproaching, SeverityWarning},
		{99, AlertApproaching, SeverityWarning},
		{100, AlertAtLimit, SeverityWarning},
		{101, AlertOverBudget, SeverityError},
		{120, AlertOverBudget, SeverityError},
	}
	for _, tc := range cases {
		tier, severity, ok := TierForPercentage(tc.p)
		if !ok {
			t.Errorf("TierForPercentage(%d) should produce a tier", tc.p)
			continue
		}
		if tier != tc.wantTier || severity != tc.wantSeverity {
			t.Errorf("TierForPercentage(%d) = %q/%q, want %q/%q", tc.p, tier, severity, tc.wantTier, tc.wantSeverity)
		}
	}
}

// The retrospective month thresholds are intentionally distinct from the
// real-time alert thresholds above: analytics judges finished months.
func TestMonthStatusForPercentage(t *testing.T) {
	cases := []struct {
		p    int
		want MonthCategoryStatus
	}{
		{0, MonthStatusUnder},
		{90, MonthStatusUnder},
		{91, MonthStatusOnTrack},
		{100, MonthStatusOnTrack},
		{101, MonthStatusOver},
	}
	for _, tc := range cases {
		if got := MonthStatusForPercentage(tc.p); got != tc.want {
			t.Errorf("MonthStatusForPercentage(%d) = %q, want %q", tc.p, got, tc.want)
		}
	}
}
