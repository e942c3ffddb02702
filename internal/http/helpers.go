package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"budgeter/internal/core"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeUpstreamError surfaces a ledger/engine failure as a retry-capable
// error state. Financial reads are never silently replaced by zeros.
func writeUpstreamError(w http.ResponseWriter, r *http.Request, err error) {
	slog.ErrorContext(r.Context(), "Request failed",
		"method", r.Method, "path", r.URL.Path, "error", err)
	writeError(w, http.StatusBadGateway, "ledger unavailable, retry")
}

func writeMutationError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, core.ErrDuplicateBudget):
		writeError(w, http.StatusConflict, "a budget already exists for this category and period")
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidPeriod),
		errors.Is(err, core.ErrInvalidType),
		errors.Is(err, core.ErrEmptyDescription),
		errors.Is(err, core.ErrMissingCategory):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeUpstreamError(w, r, err)
	}
}

// parsePeriod reads optional start/end query parameters (YYYY-MM-DD).
// ok is false when neither is supplied; supplying only one is an error.
func parsePeriod(r *http.Request) (start, end time.Time, ok bool, err error) {
	startStr := strings.TrimSpace(r.URL.Query().Get("start"))
	endStr := strings.TrimSpace(r.URL.Query().Get("end"))
	if startStr == "" && endStr == "" {
		return time.Time{}, time.Time{}, false, nil
	}
	if startStr == "" || endStr == "" {
		return time.Time{}, time.Time{}, false, errors.New("both start and end are required")
	}
	start, err = time.Parse("2006-01-02", startStr)
	if err != nil {
		return time.Time{}, time.Time{}, false, err
	}
	end, err = time.Parse("2006-01-02", endStr)
	if err != nil {
		return time.Time{}, time.Time{}, false, err
	}
	// Run the window through the end of its final day.
	end = end.Add(24*time.Hour - time.Second)
	return start.UTC(), end.UTC(), true, nil
}

// resolveAmount prefers amount_cents; a non-empty decimal amount string is
// parsed when cents are absent. A bad decimal is reported to the client.
func resolveAmount(w http.ResponseWriter, cents int64, decimal string) (int64, bool) {
	if cents != 0 || decimal == "" {
		return cents, true
	}
	parsed, err := core.ParseDecimalToCents(decimal)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount: use a positive decimal like 12.34")
		return 0, false
	}
	return parsed, true
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, name string, fallback int) int {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
