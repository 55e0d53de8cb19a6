package handler

import (
	"log/slog"
	"net/http"

	"github.com/DukeRupert/bwg/internal/detection"
	"github.com/DukeRupert/bwg/internal/metrics"
	"github.com/DukeRupert/bwg/internal/service"
)

// WebhookHandler receives detection workflow callbacks.
//
// Routes:
//   - POST /api/webhooks/n8n-callback -> Callback
//   - GET  /api/webhooks/n8n-callback/{reportId} -> GetCallback
//
// The routes are wrapped by the webhook secret middleware in main.
type WebhookHandler struct {
	reconciler *service.Reconciler
	logger     *slog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(reconciler *service.Reconciler, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		reconciler: reconciler,
		logger:     logger,
	}
}

// RegisterRoutes registers webhook routes, each wrapped by auth.
func (h *WebhookHandler) RegisterRoutes(mux *http.ServeMux, auth func(http.Handler) http.Handler) {
	mux.Handle("POST /api/webhooks/n8n-callback", auth(http.HandlerFunc(h.Callback)))
	mux.Handle("GET /api/webhooks/n8n-callback/{reportId}", auth(http.HandlerFunc(h.GetCallback)))
}

// Callback merges detection results into a report.
func (h *WebhookHandler) Callback(w http.ResponseWriter, r *http.Request) {
	const op = "WebhookHandler.Callback"

	body, err := readBody(w, r, op)
	if err != nil {
		metrics.WebhookCallback("invalid")
		ErrorResponse(w, r, h.logger, err)
		return
	}

	cb, err := detection.ParseCallback(body,
		r.Header.Get(detection.HeaderWebhookID),
		r.Header.Get(detection.HeaderWorkflowID),
	)
	if err != nil {
		metrics.WebhookCallback("invalid")
		ErrorResponse(w, r, h.logger, err)
		return
	}

	result, err := h.reconciler.HandleCallback(r.Context(), cb)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    result,
	})
}

// GetCallback returns the stored detection state of a report.
func (h *WebhookHandler) GetCallback(w http.ResponseWriter, r *http.Request) {
	const op = "WebhookHandler.GetCallback"

	id, err := pathUUID(r, op, "reportId")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	view, err := h.reconciler.GetCallback(r.Context(), id)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}
