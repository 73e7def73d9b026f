package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jeanElossy/api-paynoval-sub000/internal/repository"
)

// NotificationHandler serves the in-app notification projection. Rows are
// written by the ledger in the same transaction as the state transition;
// this surface only reads and acknowledges them.
type NotificationHandler struct {
	ledger *repository.LedgerStore
}

func NewNotificationHandler(ledger *repository.LedgerStore) *NotificationHandler {
	return &NotificationHandler{ledger: ledger}
}

// List returns the actor's notifications, newest first.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}

	limit, offset := 50, 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	notifications, err := h.ledger.Queries().ListNotifications(r.Context(), actorID, limit, offset)
	if err != nil {
		respondLedgerError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"notifications": notifications,
		"count":         len(notifications),
	})
}

// MarkRead acknowledges one notification. Scoped to the actor so a user can
// never acknowledge someone else's row.
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "notification/invalid-id", "Invalid notification id")
		return
	}

	rows, err := h.ledger.Queries().MarkNotificationRead(r.Context(), id, actorID)
	if err != nil {
		respondLedgerError(w, r, err)
		return
	}
	if rows == 0 {
		RespondError(w, r, http.StatusNotFound, "notification/not-found", "notification not found")
		return
	}
	RespondJSON(w, http.StatusOK, map[string]bool{"success": true})
}
