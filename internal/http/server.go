// Package http exposes the budget engine over a small JSON API. Rendering
// and presentation belong to the surrounding UI, not here.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"budgeter/internal/core"
	"budgeter/internal/engine"
	"budgeter/internal/ledger"
	applog "budgeter/internal/log"
)

type Server struct {
	engine  *engine.Engine
	service *ledger.Service
}

// NewServer builds the API server with sensible timeouts.
func NewServer(addr string, eng *engine.Engine, service *ledger.Service) *http.Server {
	s := &Server{engine: eng, service: service}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/progress", s.handleProgress)
	mux.HandleFunc("GET /api/progress/{budgetID}", s.handleProgressForBudget)
	mux.HandleFunc("GET /api/unbudgeted", s.handleUnbudgeted)

	mux.HandleFunc("GET /api/alerts", s.handleActiveAlerts)
	mux.HandleFunc("GET /api/alerts/over-budget", s.handleOverBudget)
	mux.HandleFunc("POST /api/alerts/{alertID}/acknowledge", s.handleAcknowledge)

	mux.HandleFunc("GET /api/categories/{categoryID}/alerts", s.handleCheckThresholds)
	mux.HandleFunc("GET /api/categories/{categoryID}/suggestions", s.handleSuggestions)
	mux.HandleFunc("GET /api/categories/{categoryID}/recovery", s.handleRecovery)
	mux.HandleFunc("GET /api/transactions/{transactionID}/impact", s.handleImpact)

	mux.HandleFunc("GET /api/analytics/monthly", s.handleMonthlyPerformance)
	mux.HandleFunc("GET /api/analytics/categories", s.handleCategoryPerformance)
	mux.HandleFunc("GET /api/analytics/success", s.handleSuccessMetrics)
	mux.HandleFunc("GET /api/analytics/trends", s.handleSpendingTrends)
	mux.HandleFunc("GET /api/analytics/insights", s.handleInsights)

	mux.HandleFunc("POST /api/budgets", s.handleCreateBudget)
	mux.HandleFunc("PUT /api/budgets/{budgetID}", s.handleUpdateBudget)
	mux.HandleFunc("DELETE /api/budgets/{budgetID}", s.handleDeleteBudget)
	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)

	return &http.Server{
		Addr:           addr,
		Handler:        requestLogging(mux),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16,
	}
}

func requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("Request handled",
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldDuration, time.Since(start).Milliseconds())
	})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	start, end, ok, err := parsePeriod(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid period: use start/end as YYYY-MM-DD")
		return
	}

	var progress []core.BudgetProgress
	if ok {
		progress, err = s.engine.Progress.ForPeriod(r.Context(), start, end)
	} else {
		progress, err = s.engine.Progress.ForCurrentMonth(r.Context())
	}
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (s *Server) handleProgressForBudget(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "budgetID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid budget id")
		return
	}
	progress, err := s.engine.Progress.ForBudget(r.Context(), id)
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}
	if progress == nil {
		writeError(w, http.StatusNotFound, "budget not found")
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (s *Server) handleUnbudgeted(w http.ResponseWriter, r *http.Request) {
	start, end, ok, err := parsePeriod(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid period: use start/end as YYYY-MM-DD")
		return
	}
	if !ok {
		start, end = engine.MonthBounds(time.Now().UTC())
	}
	spending, err := s.engine.Progress.Unbudgeted(r.Context(), start, end)
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, spending)
}

func (s *Server) handleActiveAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := s.engine.Alerts.ActiveAlerts(r.Context())
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (s *Server) handleOverBudget(w http.ResponseWriter, r *http.Request) {
	alerts, err := s.engine.Alerts.OverBudgetCategories(r.Context())
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (s *Server) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	alertID := r.PathValue("alertID")
	if err := s.engine.Alerts.Acknowledge(alertID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			writeError(w, http.StatusNotFound, "alert not found")
			return
		}
		writeUpstreamError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCheckThresholds(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "categoryID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid category id")
		return
	}
	alerts, err := s.engine.Alerts.CheckThresholds(r.Context(), id)
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "categoryID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid category id")
		return
	}
	suggestions, err := s.engine.Alerts.ReductionSuggestions(r.Context(), id)
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, suggestions)
}

func (s *Server) handleRecovery(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "categoryID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid category id")
		return
	}
	info, err := s.engine.Alerts.RecoveryProgress(r.Context(), id)
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}
	if info == nil {
		writeError(w, http.StatusNotFound, "category is not over budget")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleImpact(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "transactionID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}
	impact, err := s.engine.Alerts.BudgetImpact(r.Context(), id)
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}
	if impact == nil {
		writeError(w, http.StatusNotFound, "no budget impact for transaction")
		return
	}
	writeJSON(w, http.StatusOK, impact)
}

func (s *Server) handleMonthlyPerformance(w http.ResponseWriter, r *http.Request) {
	start, end, ok, err := parsePeriod(r)
	if err != nil || !ok {
		writeError(w, http.StatusBadRequest, "start and end are required as YYYY-MM-DD")
		return
	}
	performance, err := s.engine.Analytics.MonthlyPerformance(r.Context(), start, end)
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, performance)
}

func (s *Server) handleCategoryPerformance(w http.ResponseWriter, r *http.Request) {
	months := queryInt(r, "months", 6)
	performance, err := s.engine.Analytics.CategoryPerformance(r.Context(), months)
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, performance)
}

func (s *Server) handleSuccessMetrics(w http.ResponseWriter, r *http.Request) {
	months := queryInt(r, "months", 6)
	metrics, err := s.engine.Analytics.SuccessMetrics(r.Context(), months)
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, metrics)
}

func (s *Server) handleSpendingTrends(w http.ResponseWriter, r *http.Request) {
	months := queryInt(r, "months", 6)
	categoryID := int64(queryInt(r, "category_id", 0))
	trends, err := s.engine.Analytics.SpendingTrends(r.Context(), categoryID, months)
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trends)
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	start, end, ok, err := parsePeriod(r)
	if err != nil || !ok {
		writeError(w, http.StatusBadRequest, "start and end are required as YYYY-MM-DD")
		return
	}
	performance, err := s.engine.Analytics.MonthlyPerformance(r.Context(), start, end)
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Analytics.Insights(performance))
}

type budgetRequest struct {
	CategoryID  int64  `json:"category_id"`
	AmountCents int64  `json:"amount_cents"`
	Amount      string `json:"amount,omitempty"` // decimal string alternative to amount_cents
	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	b, ok := s.decodeBudget(w, r, 0)
	if !ok {
		return
	}
	created, err := s.service.CreateBudget(r.Context(), b)
	if err != nil {
		writeMutationError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "budgetID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid budget id")
		return
	}
	b, ok := s.decodeBudget(w, r, id)
	if !ok {
		return
	}
	if err := s.service.UpdateBudget(r.Context(), b); err != nil {
		writeMutationError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "budgetID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid budget id")
		return
	}
	if err := s.service.DeleteBudget(r.Context(), id); err != nil {
		writeMutationError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type transactionRequest struct {
	AmountCents int64  `json:"amount_cents"`
	Amount      string `json:"amount,omitempty"` // decimal string alternative to amount_cents
	Description string `json:"description"`
	CategoryID  int64  `json:"category_id"`
	Type        string `json:"type"`
	Date        string `json:"date"`
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	cents, ok := resolveAmount(w, req.AmountCents, req.Amount)
	if !ok {
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date: use YYYY-MM-DD")
		return
	}
	created, err := s.service.CreateTransaction(r.Context(), core.Transaction{
		Amount:      core.Money{Cents: cents},
		Description: req.Description,
		CategoryID:  req.CategoryID,
		Type:        core.TransactionType(req.Type),
		Date:        date.UTC(),
	})
	if err != nil {
		writeMutationError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) decodeBudget(w http.ResponseWriter, r *http.Request, id int64) (core.Budget, bool) {
	var req budgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return core.Budget{}, false
	}
	cents, ok := resolveAmount(w, req.AmountCents, req.Amount)
	if !ok {
		return core.Budget{}, false
	}
	start, err := time.Parse("2006-01-02", req.PeriodStart)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid period_start: use YYYY-MM-DD")
		return core.Budget{}, false
	}
	end, err := time.Parse("2006-01-02", req.PeriodEnd)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid period_end: use YYYY-MM-DD")
		return core.Budget{}, false
	}
	return core.Budget{
		ID:          id,
		CategoryID:  req.CategoryID,
		Amount:      core.Money{Cents: cents},
		PeriodStart: start.UTC(),
		// The period runs through the end of its final day.
		PeriodEnd: end.UTC().Add(24*time.Hour - time.Second),
	}, true
}
