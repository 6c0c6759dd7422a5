package models

import "time"

type EventKind string

const (
	EventDepositCompleted    EventKind = "deposit.completed"
	EventDepositFailed       EventKind = "deposit.failed"
	EventDepositReturned     EventKind = "deposit.returned"
	EventWithdrawalProcessed EventKind = "withdrawal.processed"
	EventWithdrawalRefunded  EventKind = "withdrawal.refunded"
	EventReferralQualified   EventKind = "referral.qualified"
)

// SettlementEvent is published after a transition commits.
type SettlementEvent struct {
	ID            string    `json:"id"`
	Kind          EventKind `json:"kind"`
	TransactionID string    `json:"transactionId,omitempty"`
	UserID        string    `json:"userId"`
	Provider      Provider  `json:"provider,omitempty"`
	Status        Status    `json:"status,omitempty"`
	Coins         int64     `json:"coins"`
	Bonus         int64     `json:"bonus,omitempty"`
	Balance       int64     `json:"balance"`
	OccurredAt    time.Time `json:"occurredAt"`
}
