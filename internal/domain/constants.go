package domain

// System identity (must match migration 000002).
const (
	// SystemUserID is the administrative counterparty for internal payments,
	// cancellation refunds and fee retention. Its balance may go negative
	// (short position); it is the only account exempt from the non-negative
	// balance check.
	SystemUserID = "11111111-1111-1111-1111-111111111111"
)

// Transfer statuses.
const (
	TransferStatusPending   = "pending"
	TransferStatusConfirmed = "confirmed"
	TransferStatusCancelled = "cancelled"
	TransferStatusRefunded  = "refunded"
)

// Outbox event types, one emitted per interested party per transition.
const (
	EventTransferInitiated = "transfer.initiated"
	EventTransferConfirmed = "transfer.confirmed"
	EventTransferCancelled = "transfer.cancelled"
	EventTransferRefunded  = "transfer.refunded"
	EventTransferRelaunch  = "transfer.relaunch"
	EventInternalPaymentExecuted = "internal_payment.executed"
)

// Outbox delivery services.
const (
	OutboxServiceNotifications = "notifications"
)

// User roles.
const (
	RoleUser   = "user"
	RoleAdmin  = "admin"
	RoleSystem = "system"
)
