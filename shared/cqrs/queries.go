package cqrs

import "time"

// ---------- User queries ----------

// GetUserQuery fetches the authenticated user's profile.
type GetUserQuery struct {
	UserID string
}

// ---------- Bill queries ----------

// GetBillQuery fetches a single bill, subject to ownership check.
type GetBillQuery struct {
	BillID           string
	RequestingUserID string
}

// ListBillsQuery fetches all bills belonging to a user.
type ListBillsQuery struct {
	UserID string
}

// DueBillsQuery evaluates due deposits or withdrawals for a user at Now.
// A zero Now means the current time.
type DueBillsQuery struct {
	UserID string
	Now    time.Time
}

// ---------- Ledger queries ----------

// ListLedgerQuery fetches deposits or withdrawals recorded for one bill.
type ListLedgerQuery struct {
	BillID           string
	RequestingUserID string
}

// ---------- Monzo queries ----------

// ListMonzoAccountsQuery lists the bank accounts visible to the user's token.
type ListMonzoAccountsQuery struct {
	UserID string
}

// ListMonzoPotsQuery lists the pots of the user's main account.
type ListMonzoPotsQuery struct {
	UserID string
}
