package joblog

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

// Handler exposes recent ingestion attempts as JSON. Recovery from failed
// attempts is driven by operators reading this log, not by transport
// redelivery.
type Handler struct {
	repo Repository
}

// NewHTTPHandler wraps the repository with a read-only endpoint.
func NewHTTPHandler(repo Repository) http.Handler {
	return &Handler{repo: repo}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			http.Error(w, fmt.Sprintf("invalid limit: %q", raw), http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	attempts, err := h.repo.List(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(attempts)
}
