package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jeanElossy/api-paynoval-sub000/internal/ledger"
	"github.com/jeanElossy/api-paynoval-sub000/internal/repository"
)

// AdminHandler carries the role-gated override operations. Every route here
// sits behind RequireRole("admin"); the actor id is recorded in the audit
// trail.
type AdminHandler struct {
	svc *ledger.Service
}

func NewAdminHandler(svc *ledger.Service) *AdminHandler {
	return &AdminHandler{svc: svc}
}

func (h *AdminHandler) transferID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "transaction/invalid-id", "Invalid transaction id")
		return uuid.Nil, false
	}
	return id, true
}

func decodeReason(r *http.Request) string {
	var req struct {
		Reason string `json:"reason"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	return req.Reason
}

// List returns transfers matching query filters.
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := repository.TransferFilter{Limit: 50}
	q := r.URL.Query()
	if v := q.Get("status"); v != "" {
		filter.Status = v
	}
	if v := q.Get("senderId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			RespondError(w, r, http.StatusBadRequest, "request/invalid-filter", "senderId must be a valid user id")
			return
		}
		filter.SenderID = &id
	}
	if v := q.Get("receiverId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			RespondError(w, r, http.StatusBadRequest, "request/invalid-filter", "receiverId must be a valid user id")
			return
		}
		filter.ReceiverID = &id
	}
	if v := q.Get("flagged"); v != "" {
		flagged := v == "true"
		filter.Flagged = &flagged
	}
	if v := q.Get("archived"); v != "" {
		archived := v == "true"
		filter.Archived = &archived
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			filter.Offset = n
		}
	}

	transfers, err := h.svc.List(r.Context(), filter)
	if err != nil {
		respondLedgerError(w, r, err)
		return
	}
	views := make([]transactionView, 0, len(transfers))
	for i := range transfers {
		views = append(views, viewOf(&transfers[i]))
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": views,
		"count":        len(views),
	})
}

func (h *AdminHandler) Get(w http.ResponseWriter, r *http.Request) {
	actorID, isAdmin, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}
	id, ok := h.transferID(w, r)
	if !ok {
		return
	}
	t, err := h.svc.Get(r.Context(), id, actorID, isAdmin)
	if err != nil {
		respondLedgerError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, viewOf(t))
}

// Refund reverses a confirmed transfer once.
func (h *AdminHandler) Refund(w http.ResponseWriter, r *http.Request) {
	adminID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}
	id, ok := h.transferID(w, r)
	if !ok {
		return
	}
	t, err := h.svc.Refund(r.Context(), id, adminID, decodeReason(r))
	if err != nil {
		respondLedgerError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "transaction": viewOf(t)})
}

// Validate force-confirms a pending transfer without moving funds.
func (h *AdminHandler) Validate(w http.ResponseWriter, r *http.Request) {
	adminID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}
	id, ok := h.transferID(w, r)
	if !ok {
		return
	}
	t, err := h.svc.Validate(r.Context(), id, adminID, decodeReason(r))
	if err != nil {
		respondLedgerError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "transaction": viewOf(t)})
}

// Reassign points a pending transfer at a different receiver.
func (h *AdminHandler) Reassign(w http.ResponseWriter, r *http.Request) {
	adminID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}
	id, ok := h.transferID(w, r)
	if !ok {
		return
	}
	var req struct {
		NewReceiverID string `json:"newReceiverId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	newReceiverID, err := uuid.Parse(req.NewReceiverID)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "transaction/invalid-id", "newReceiverId must be a valid user id")
		return
	}
	t, err := h.svc.Reassign(r.Context(), id, adminID, newReceiverID)
	if err != nil {
		respondLedgerError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "transaction": viewOf(t)})
}

// Archive toggles the archived flag.
func (h *AdminHandler) Archive(w http.ResponseWriter, r *http.Request) {
	adminID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}
	id, ok := h.transferID(w, r)
	if !ok {
		return
	}
	var req struct {
		Archived *bool `json:"archived"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	archived := true
	if req.Archived != nil {
		archived = *req.Archived
	}
	t, err := h.svc.Archive(r.Context(), id, adminID, archived)
	if err != nil {
		respondLedgerError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "transaction": viewOf(t)})
}

// Flag toggles the compliance review flag.
func (h *AdminHandler) Flag(w http.ResponseWriter, r *http.Request) {
	adminID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}
	id, ok := h.transferID(w, r)
	if !ok {
		return
	}
	var req struct {
		Flagged *bool  `json:"flagged"`
		Reason  string `json:"reason"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	flagged := true
	if req.Flagged != nil {
		flagged = *req.Flagged
	}
	t, err := h.svc.Flag(r.Context(), id, adminID, flagged, req.Reason)
	if err != nil {
		respondLedgerError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "transaction": viewOf(t)})
}

// Relaunch bumps the relaunch counter and re-notifies the parties.
func (h *AdminHandler) Relaunch(w http.ResponseWriter, r *http.Request) {
	adminID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}
	id, ok := h.transferID(w, r)
	if !ok {
		return
	}
	t, err := h.svc.Relaunch(r.Context(), id, adminID)
	if err != nil {
		respondLedgerError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "transaction": viewOf(t)})
}

// Cancel aborts a pending transfer on the sender's behalf.
func (h *AdminHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	adminID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}
	id, ok := h.transferID(w, r)
	if !ok {
		return
	}
	result, err := h.svc.Cancel(r.Context(), id, adminID, true, decodeReason(r))
	if err != nil {
		respondLedgerError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"refunded": centsString(result.RefundCents),
	})
}
