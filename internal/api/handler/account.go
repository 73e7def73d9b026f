package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/jeanElossy/api-paynoval-sub000/internal/domain"
	"github.com/jeanElossy/api-paynoval-sub000/internal/models"
	"github.com/jeanElossy/api-paynoval-sub000/internal/repository"
)

type AccountHandler struct {
	balances *repository.BalanceStore
}

func NewAccountHandler(balances *repository.BalanceStore) *AccountHandler {
	return &AccountHandler{balances: balances}
}

// CreateUser registers a user. Balances are created lazily on first credit,
// so no balance row is written here.
func (h *AccountHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email   string `json:"email"`
		Name    string `json:"name"`
		Country string `json:"country"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		RespondError(w, r, http.StatusBadRequest, "user/invalid-email", "a valid email is required")
		return
	}
	if req.Name == "" {
		RespondError(w, r, http.StatusBadRequest, "user/missing-name", "name is required")
		return
	}

	user := &models.User{
		ID:      uuid.New(),
		Email:   req.Email,
		Name:    req.Name,
		Role:    domain.RoleUser,
		Country: req.Country,
	}
	if err := h.balances.Queries().CreateUser(r.Context(), user); err != nil {
		if status, problemType, message, ok := mapDBError(err); ok {
			RespondError(w, r, status, problemType, message)
			return
		}
		RespondError(w, r, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	RespondJSON(w, http.StatusCreated, user)
}

// Me returns the authenticated user's profile.
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}
	user, err := h.balances.Queries().GetUser(r.Context(), actorID)
	if err != nil {
		respondLedgerError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, user)
}

// Balance returns the authenticated user's balance. A user who was never
// credited reads as zero.
func (h *AccountHandler) Balance(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}
	balance, err := h.balances.Queries().GetBalance(r.Context(), actorID)
	if err != nil {
		respondLedgerError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"ownerId":  balance.OwnerID.String(),
		"amount":   centsString(balance.AmountCents),
		"currency": balance.Currency,
		"version":  balance.Version,
	})
}
