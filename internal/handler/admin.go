package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/DukeRupert/bwg/internal/notify"
	"github.com/DukeRupert/bwg/internal/scheduler"
)

// Sweeper runs the expiry sweep on demand.
type Sweeper interface {
	RunExpirySweep(ctx context.Context) (*scheduler.SweepResult, error)
}

// PendingDispatcher runs the notification dispatch on demand.
type PendingDispatcher interface {
	DispatchPending(ctx context.Context) (*notify.DispatchResult, error)
}

// AdminHandler exposes manual triggers for the periodic jobs.
type AdminHandler struct {
	sweeper    Sweeper
	dispatcher PendingDispatcher
	logger     *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(sweeper Sweeper, dispatcher PendingDispatcher, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		sweeper:    sweeper,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// RegisterRoutes registers admin routes, each wrapped by requireAdmin.
func (h *AdminHandler) RegisterRoutes(
	mux *http.ServeMux,
	requireAdmin func(http.Handler) http.Handler,
) {
	mux.Handle("POST /api/admin/reports/expire", requireAdmin(http.HandlerFunc(h.RunExpirySweep)))
	mux.Handle("POST /api/admin/notifications/dispatch", requireAdmin(http.HandlerFunc(h.DispatchNotifications)))
}

// RunExpirySweep resolves every expired PENDING report now.
func (h *AdminHandler) RunExpirySweep(w http.ResponseWriter, r *http.Request) {
	result, err := h.sweeper.RunExpirySweep(r.Context())
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	h.logger.Info("manual expiry sweep", "processed", result.ProcessedCount, "skipped", result.SkippedCount)
	writeJSON(w, http.StatusOK, result)
}

// DispatchNotifications sends due officer notifications now.
func (h *AdminHandler) DispatchNotifications(w http.ResponseWriter, r *http.Request) {
	result, err := h.dispatcher.DispatchPending(r.Context())
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
