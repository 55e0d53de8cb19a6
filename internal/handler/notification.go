package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/DukeRupert/bwg/internal/domain"
	"github.com/DukeRupert/bwg/internal/notify"
)

// NotificationHandler serves the officer inbox.
type NotificationHandler struct {
	inbox  *notify.Inbox
	logger *slog.Logger
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(inbox *notify.Inbox, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		inbox:  inbox,
		logger: logger,
	}
}

// RegisterRoutes registers inbox routes on the provided mux.
func (h *NotificationHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/officers/{id}/notifications", h.List)
	mux.HandleFunc("GET /api/officers/{id}/notifications/unread-count", h.UnreadCount)
	mux.HandleFunc("PATCH /api/officers/{id}/notifications/{nid}/read", h.MarkRead)
}

// List returns a page of the officer's notifications.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	const op = "NotificationHandler.List"

	officerID, err := pathUUID(r, op, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	var filter domain.NotificationFilter
	if raw := r.URL.Query().Get("unread"); raw != "" {
		if filter.UnreadOnly, err = strconv.ParseBool(raw); err != nil {
			ErrorResponse(w, r, h.logger, domain.NewValidationError(op, "unread", "must be true or false"))
			return
		}
	}
	if filter.Limit, err = queryInt(r, op, "limit"); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if filter.Offset, err = queryInt(r, op, "offset"); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	result, err := h.inbox.List(r.Context(), officerID, filter)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// UnreadCount returns the number of unread notifications.
func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	const op = "NotificationHandler.UnreadCount"

	officerID, err := pathUUID(r, op, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	count, err := h.inbox.UnreadCount(r.Context(), officerID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"unread": count})
}

// MarkRead marks one notification as read.
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	const op = "NotificationHandler.MarkRead"

	officerID, err := pathUUID(r, op, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	notificationID, err := pathUUID(r, op, "nid")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if err := h.inbox.MarkRead(r.Context(), officerID, notificationID); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
