package ingest

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rpattn/entity-lookup/internal/domain"
)

// Handler exposes the bucket notification webhook. The object store only
// cares that the event was accepted; the attempt's business outcome lives
// in the job log.
type Handler struct {
	service *Service
}

// NewHTTPHandler wraps the service with the webhook endpoint.
func NewHTTPHandler(service *Service) http.Handler {
	return &Handler{service: service}
}

// notificationPayload is the shape MinIO posts to webhook targets. Records
// carries the raw S3 event detail; only the top-level fields matter here.
type notificationPayload struct {
	EventName string          `json:"EventName"`
	Key       string          `json:"Key"`
	Records   json.RawMessage `json:"Records"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var payload notificationPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid notification body: %v", err), http.StatusBadRequest)
		return
	}
	if payload.Key == "" {
		http.Error(w, "notification has no object key", http.StatusBadRequest)
		return
	}

	event := domain.Notification{EventName: payload.EventName, Key: payload.Key}
	attempt := h.service.Handle(r.Context(), event)

	// Always acknowledged once the attempt concluded; redelivery is the
	// transport's concern only when this response never arrives.
	writeJSON(w, http.StatusOK, map[string]string{"status": string(attempt.Status)})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
