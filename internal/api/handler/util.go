package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jeanElossy/api-paynoval-sub000/internal/api/middleware"
	"github.com/jeanElossy/api-paynoval-sub000/internal/api/problem"
	"github.com/jeanElossy/api-paynoval-sub000/internal/domain"
)

// RespondJSON writes a JSON response.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// RespondError writes an error response.
func RespondError(w http.ResponseWriter, r *http.Request, status int, problemType, message string) {
	if problemType != "" && problemType != "about:blank" && !strings.HasPrefix(problemType, "http") {
		problemType = problem.Type(problemType)
	}
	problem.Write(w, r, status, problemType, http.StatusText(status), message)
}

func requestActor(r *http.Request) (uuid.UUID, bool, error) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		return uuid.Nil, false, errors.New("missing user in auth context")
	}

	actorID, err := uuid.Parse(userID)
	if err != nil {
		return uuid.Nil, false, errors.New("invalid user_id in auth context")
	}

	return actorID, middleware.UserRoleFromContext(r.Context()) == domain.RoleAdmin, nil
}

// mapDomainError translates ledger sentinels to their HTTP shape. Returns
// false for errors that are not part of the taxonomy; those surface as 500s
// without leaking detail.
func mapDomainError(err error) (status int, problemType, message string, ok bool) {
	switch {
	case errors.Is(err, domain.ErrInvalidAmount):
		return http.StatusBadRequest, "transaction/invalid-amount", "amount must be a positive 2-decimal value and fee non-negative", true
	case errors.Is(err, domain.ErrSelfTransfer):
		return http.StatusBadRequest, "transaction/self-transfer", "sender and receiver must differ", true
	case errors.Is(err, domain.ErrRecipientNotFound):
		return http.StatusNotFound, "transaction/recipient-not-found", "recipient not found", true
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "transaction/not-found", "transaction not found", true
	case errors.Is(err, domain.ErrAlreadyProcessed):
		return http.StatusConflict, "transaction/already-processed", "transaction is not in a state that allows this operation", true
	case errors.Is(err, domain.ErrInvalidSecret):
		return http.StatusUnauthorized, "transaction/invalid-secret", "verification token mismatch; transaction cancelled", true
	case errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusBadRequest, "transaction/insufficient-funds", "insufficient funds", true
	case errors.Is(err, domain.ErrInsufficientRecipientFunds):
		return http.StatusBadRequest, "transaction/insufficient-recipient-funds", "recipient balance cannot cover the refund", true
	case errors.Is(err, domain.ErrInvalidOperationKind):
		return http.StatusBadRequest, "internal-payment/invalid-kind", "unknown or malformed operation kind", true
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "auth/forbidden", "not allowed to operate on this transaction", true
	case errors.Is(err, domain.ErrAMLRejected):
		return http.StatusForbidden, "compliance/rejected", "operation rejected by compliance screening", true
	default:
		return 0, "", "", false
	}
}

func mapDBError(err error) (status int, problemType, message string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return 0, "", "", false
	}

	switch pgErr.Code {
	case "23505": // unique_violation
		return http.StatusConflict, "db/unique-violation", "resource already exists", true
	case "23503": // foreign_key_violation
		return http.StatusBadRequest, "db/foreign-key-violation", "invalid reference", true
	case "23514": // check_violation
		return http.StatusBadRequest, "db/check-violation", "request violates data constraints", true
	case "23502": // not_null_violation
		return http.StatusBadRequest, "db/not-null-violation", "missing required field", true
	default:
		return 0, "", "", false
	}
}

// respondLedgerError applies the domain taxonomy, then the database
// taxonomy, then falls back to an opaque 500.
func respondLedgerError(w http.ResponseWriter, r *http.Request, err error) {
	if status, problemType, message, ok := mapDomainError(err); ok {
		RespondError(w, r, status, problemType, message)
		return
	}
	if status, problemType, message, ok := mapDBError(err); ok {
		RespondError(w, r, status, problemType, message)
		return
	}
	RespondError(w, r, http.StatusInternalServerError, "internal", "internal error")
}
