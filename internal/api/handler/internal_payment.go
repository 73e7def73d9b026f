package handler

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jeanElossy/api-paynoval-sub000/internal/idempotency"
	"github.com/jeanElossy/api-paynoval-sub000/internal/ledger"
)

// InternalPaymentHandler serves service-to-service administrative payments.
// Routes are gated by the internal-token middleware, not user auth.
type InternalPaymentHandler struct {
	svc *ledger.Service
}

func NewInternalPaymentHandler(svc *ledger.Service) *InternalPaymentHandler {
	return &InternalPaymentHandler{svc: svc}
}

func (h *InternalPaymentHandler) Execute(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Kind           string         `json:"kind"`
		Amount         string         `json:"amount"`
		CurrencySymbol string         `json:"currencySymbol"`
		FromUserID     string         `json:"fromUserId"`
		ToUserID       string         `json:"toUserId"`
		Reference      string         `json:"reference"`
		Description    string         `json:"description"`
		Country        string         `json:"country"`
		Metadata       map[string]any `json:"metadata"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	kind, err := ledger.ParseKind(req.Kind)
	if err != nil {
		respondLedgerError(w, r, err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "transaction/invalid-amount", "amount must be a decimal string")
		return
	}

	// Party references must be native user ids, never free-form strings.
	var fromID, toID uuid.UUID
	if req.FromUserID != "" {
		if fromID, err = uuid.Parse(req.FromUserID); err != nil {
			RespondError(w, r, http.StatusBadRequest, "internal-payment/invalid-party", "fromUserId must be a valid user id")
			return
		}
	}
	if req.ToUserID != "" {
		if toID, err = uuid.Parse(req.ToUserID); err != nil {
			RespondError(w, r, http.StatusBadRequest, "internal-payment/invalid-party", "toUserId must be a valid user id")
			return
		}
	}

	key := idempotency.KeyFromRequest(r)
	if key == "" {
		key = idempotency.DeriveKey(req.FromUserID, req.ToUserID, amount.StringFixed(2),
			req.CurrencySymbol, req.CurrencySymbol, req.Country, req.Kind)
	}

	result, err := h.svc.ExecuteInternalPayment(r.Context(), ledger.InternalPaymentCmd{
		Kind:           kind,
		Amount:         amount,
		Currency:       req.CurrencySymbol,
		FromUserID:     fromID,
		ToUserID:       toID,
		Reference:      req.Reference,
		Description:    req.Description,
		IdempotencyKey: key,
		Metadata:       req.Metadata,
	})
	if err != nil {
		respondLedgerError(w, r, err)
		return
	}

	status := http.StatusCreated
	body := map[string]interface{}{
		"transactionId": result.Transfer.ID.String(),
		"reference":     result.Transfer.Reference,
		"kind":          result.Kind.String(),
		"mode":          result.Mode.String(),
	}
	if result.Idempotent {
		status = http.StatusOK
		body["idempotent"] = true
	}
	RespondJSON(w, status, body)
}
