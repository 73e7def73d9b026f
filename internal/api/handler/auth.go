package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/jeanElossy/api-paynoval-sub000/internal/api/middleware"
	"github.com/jeanElossy/api-paynoval-sub000/internal/repository"
)

type AuthHandler struct {
	balances *repository.BalanceStore
}

func NewAuthHandler(balances *repository.BalanceStore) *AuthHandler {
	return &AuthHandler{balances: balances}
}

// Login issues a bearer token for a known user. Development stand-in for the
// real identity provider; credentials are not checked.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	uid, err := uuid.Parse(req.UserID)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "auth/invalid-user", "Invalid user_id")
		return
	}

	user, err := h.balances.Queries().GetUser(r.Context(), uid)
	if err != nil {
		RespondError(w, r, http.StatusNotFound, "auth/unknown-user", "User not found")
		return
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": uid.String(),
		"role":    user.Role,
		"iss":     middleware.JWTIssuer(),
		"aud":     middleware.JWTAudience(),
		"exp":     time.Now().Add(24 * time.Hour).Unix(),
	})

	tokenString, err := token.SignedString(middleware.JWTSecret())
	if err != nil {
		RespondError(w, r, http.StatusInternalServerError, "auth/signing-failed", "Failed to sign token")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]string{"token": tokenString})
}
