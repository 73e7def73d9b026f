package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jeanElossy/api-paynoval-sub000/internal/idempotency"
	"github.com/jeanElossy/api-paynoval-sub000/internal/ledger"
	"github.com/jeanElossy/api-paynoval-sub000/internal/models"
)

type TransactionHandler struct {
	svc *ledger.Service
}

func NewTransactionHandler(svc *ledger.Service) *TransactionHandler {
	return &TransactionHandler{svc: svc}
}

type transactionView struct {
	TransactionID    string `json:"transactionId"`
	Reference        string `json:"reference"`
	Status           string `json:"status"`
	SenderID         string `json:"senderId"`
	ReceiverID       string `json:"receiverId"`
	Amount           string `json:"amount"`
	Fees             string `json:"fees"`
	NetAmount        string `json:"netAmount"`
	SenderCurrency   string `json:"senderCurrency"`
	ReceiverCurrency string `json:"receiverCurrency"`
	ExchangeRate     string `json:"exchangeRate"`
	LocalAmount      string `json:"localAmount"`
	Description      string `json:"description,omitempty"`
	Kind             string `json:"kind,omitempty"`
	Flagged          bool   `json:"flagged,omitempty"`
	Archived         bool   `json:"archived,omitempty"`
	RelaunchCount    int32  `json:"relaunchCount,omitempty"`
	CreatedAt        string `json:"createdAt"`
}

func viewOf(t *models.Transfer) transactionView {
	return transactionView{
		TransactionID:    t.ID.String(),
		Reference:        t.Reference,
		Status:           t.Status,
		SenderID:         t.SenderID.String(),
		ReceiverID:       t.ReceiverID.String(),
		Amount:           centsString(t.GrossCents),
		Fees:             centsString(t.FeeCents),
		NetAmount:        centsString(t.NetCents),
		SenderCurrency:   t.SenderCurrency,
		ReceiverCurrency: t.ReceiverCurrency,
		ExchangeRate:     t.ExchangeRate.String(),
		LocalAmount:      centsString(t.LocalAmountCents),
		Description:      t.Description,
		Kind:             t.Kind,
		Flagged:          t.Flagged,
		Archived:         t.Archived,
		RelaunchCount:    t.RelaunchCount,
		CreatedAt:        t.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

func centsString(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// Initiate opens a pending transaction to the recipient identified by email.
// The verification token is returned exactly once.
func (h *TransactionHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}

	var req struct {
		ToEmail          string `json:"toEmail"`
		Amount           string `json:"amount"`
		Fees             string `json:"fees"`
		SenderCurrency   string `json:"senderCurrency"`
		ReceiverCurrency string `json:"receiverCurrency"`
		Country          string `json:"country"`
		Description      string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	if req.ToEmail == "" {
		RespondError(w, r, http.StatusBadRequest, "transaction/missing-recipient", "toEmail is required")
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "transaction/invalid-amount", "amount must be a decimal string")
		return
	}
	fees := decimal.Zero
	if req.Fees != "" {
		if fees, err = decimal.NewFromString(req.Fees); err != nil {
			RespondError(w, r, http.StatusBadRequest, "transaction/invalid-amount", "fees must be a decimal string")
			return
		}
	}

	key := idempotency.KeyFromRequest(r)
	if key == "" {
		key = idempotency.DeriveKey(actorID.String(), req.ToEmail, amount.StringFixed(2),
			req.SenderCurrency, req.ReceiverCurrency, req.Country, "p2p")
	}

	result, err := h.svc.Initiate(r.Context(), ledger.InitiateCmd{
		SenderID:         actorID,
		RecipientEmail:   req.ToEmail,
		Amount:           amount,
		Fee:              fees,
		SenderCurrency:   req.SenderCurrency,
		ReceiverCurrency: req.ReceiverCurrency,
		Country:          req.Country,
		Description:      req.Description,
		IdempotencyKey:   key,
	})
	if err != nil {
		respondLedgerError(w, r, err)
		return
	}

	if result.Idempotent {
		RespondJSON(w, http.StatusOK, map[string]interface{}{
			"idempotent":    true,
			"transactionId": result.Transfer.ID.String(),
			"reference":     result.Transfer.Reference,
			"status":        result.Transfer.Status,
		})
		return
	}
	RespondJSON(w, http.StatusCreated, map[string]interface{}{
		"transactionId":     result.Transfer.ID.String(),
		"reference":         result.Transfer.Reference,
		"status":            result.Transfer.Status,
		"verificationToken": result.VerificationToken,
	})
}

// Confirm settles a pending transaction with its verification token.
func (h *TransactionHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}

	var req struct {
		TransactionID string `json:"transactionId"`
		Token         string `json:"token"`
		SecurityCode  string `json:"securityCode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	transferID, err := uuid.Parse(req.TransactionID)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "transaction/invalid-id", "Invalid transactionId")
		return
	}
	secret := req.Token
	if secret == "" {
		secret = req.SecurityCode
	}

	t, err := h.svc.Confirm(r.Context(), transferID, secret, actorID)
	if err != nil {
		respondLedgerError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"transaction": viewOf(t),
	})
}

// Cancel aborts a pending transaction and refunds the sender.
func (h *TransactionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	actorID, isAdmin, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}

	var req struct {
		TransactionID string `json:"transactionId"`
		Reason        string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	transferID, err := uuid.Parse(req.TransactionID)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "transaction/invalid-id", "Invalid transactionId")
		return
	}

	result, err := h.svc.Cancel(r.Context(), transferID, actorID, isAdmin, req.Reason)
	if err != nil {
		respondLedgerError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"refunded": centsString(result.RefundCents),
	})
}

// Get returns a single transaction visible to the actor.
func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	actorID, isAdmin, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}
	transferID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "transaction/invalid-id", "Invalid transaction id")
		return
	}

	t, err := h.svc.Get(r.Context(), transferID, actorID, isAdmin)
	if err != nil {
		respondLedgerError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, viewOf(t))
}
