package domain

import "errors"

// Sentinel errors shared across the ledger core. Handlers map them onto the
// HTTP taxonomy; services wrap them with context via fmt.Errorf("%w").
var (
	ErrInvalidAmount              = errors.New("invalid amount")
	ErrSelfTransfer               = errors.New("self transfer not allowed")
	ErrRecipientNotFound          = errors.New("recipient not found")
	ErrNotFound                   = errors.New("transfer not found")
	ErrAlreadyProcessed           = errors.New("transfer already processed")
	ErrInvalidSecret              = errors.New("invalid verification secret")
	ErrInsufficientFunds          = errors.New("insufficient funds")
	ErrInsufficientRecipientFunds = errors.New("insufficient recipient funds")
	ErrInvalidOperationKind       = errors.New("invalid operation kind")
	ErrForbidden                  = errors.New("operation not allowed for this actor")
	ErrAMLRejected                = errors.New("transfer rejected by compliance screening")
)
