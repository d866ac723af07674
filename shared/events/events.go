package events

import "time"

// Event types
const (
	UserUpdated = "user.updated"

	BillCreated = "bill.created"
	BillUpdated = "bill.updated"
	BillDeleted = "bill.deleted"

	DepositRecorded    = "deposit.recorded"
	WithdrawalRecorded = "withdrawal.recorded"
)

// Stream names
const (
	UserEventsStream   = "user.events"
	BillEventsStream   = "bill.events"
	LedgerEventsStream = "ledger.events"
)

// StreamFor returns the stream an event type is published on.
func StreamFor(eventType string) string {
	switch eventType {
	case UserUpdated:
		return UserEventsStream
	case BillCreated, BillUpdated, BillDeleted:
		return BillEventsStream
	default:
		return LedgerEventsStream
	}
}

// Base event structure
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

type UserUpdatedEvent struct {
	UserID        string `json:"userId"`
	PotDepositDay int    `json:"potDepositDay,omitempty"`
	Ready         bool   `json:"ready"`
}

type BillEvent struct {
	BillID string `json:"billId"`
	UserID string `json:"userId"`
	Name   string `json:"name,omitempty"`
	Amount int64  `json:"amount,omitempty"`
}

type DepositRecordedEvent struct {
	DepositID   string    `json:"depositId"`
	BillID      string    `json:"billId"`
	UserID      string    `json:"userId"`
	Amount      int64     `json:"amount"`
	PeriodStart time.Time `json:"periodStart"`
}

type WithdrawalRecordedEvent struct {
	WithdrawalID string    `json:"withdrawalId"`
	BillID       string    `json:"billId"`
	UserID       string    `json:"userId"`
	Amount       int64     `json:"amount"`
	Success      bool      `json:"success"`
	Occurrence   time.Time `json:"occurrence"`
}
