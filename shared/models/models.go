package models

import "time"

// Recurrence units accepted for Bill.PeriodType.
const (
	PeriodDay   = "day"
	PeriodWeek  = "week"
	PeriodMonth = "month"
)

type User struct {
	ID                string    `json:"id"`
	Email             string    `json:"email"`
	PasswordHash      string    `json:"-"`
	MonzoAccessToken  *string   `json:"-"`
	MonzoRefreshToken *string   `json:"-"`
	MonzoState        *string   `json:"-"`
	MainAccountID     *string   `json:"mainAccountId"`
	PotID             *string   `json:"potId"`
	PotDepositDay     *int      `json:"potDepositDay"`
	Active            bool      `json:"active"`
	Whitelisted       bool      `json:"whitelisted"`
	CreatedAt         time.Time `json:"createdTimestamp"`
	UpdatedAt         time.Time `json:"updatedTimestamp"`
}

// IsReady reports whether every banking-integration field the scheduler
// needs is populated.
func (u *User) IsReady() bool {
	return present(u.MainAccountID) &&
		present(u.PotID) &&
		present(u.MonzoAccessToken) &&
		present(u.MonzoRefreshToken) &&
		u.PotDepositDay != nil
}

func present(s *string) bool {
	return s != nil && *s != ""
}

// Bill is a recurring payment. Amount is in pence.
type Bill struct {
	ID              string    `json:"id"`
	UserID          string    `json:"-"`
	Name            string    `json:"name"`
	Amount          int64     `json:"amount"`
	PeriodType      string    `json:"periodType"`
	PeriodFrequency int       `json:"periodFrequency"`
	StartDate       time.Time `json:"startDate"`
	CreatedAt       time.Time `json:"createdTimestamp"`
	UpdatedAt       time.Time `json:"updatedTimestamp"`
}

// Deposit is an append-only ledger row for money moved into the pot on behalf of a bill.
type Deposit struct {
	ID          string    `json:"id"`
	BillID      string    `json:"billId"`
	Amount      int64     `json:"amount"`
	DepositDate time.Time `json:"depositDate"`
}

// Withdrawal is an append-only ledger row for an attempt to move money out of the pot.
// Failed attempts are recorded too.
type Withdrawal struct {
	ID             string    `json:"id"`
	BillID         string    `json:"billId"`
	WithdrawalDate time.Time `json:"withdrawalDate"`
	Success        bool      `json:"success"`
}
