package models

import "time"

// UserView is the read-optimised projection of a user.
// It never exposes PasswordHash or Monzo credentials.
type UserView struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	MainAccountID  string    `json:"mainAccountId,omitempty"`
	PotID          string    `json:"potId,omitempty"`
	PotDepositDay  int       `json:"potDepositDay,omitempty"`
	MonzoConnected bool      `json:"monzoConnected"`
	Ready          bool      `json:"ready"`
	Active         bool      `json:"active"`
	Whitelisted    bool      `json:"whitelisted"`
	CreatedAt      time.Time `json:"createdTimestamp"`
	UpdatedAt      time.Time `json:"updatedTimestamp"`
}

// BillView is the read-optimised projection of a bill.
// UserID is populated for ownership checks but never serialised to the API response.
type BillView struct {
	ID              string    `json:"id"`
	UserID          string    `json:"-"`
	Name            string    `json:"name"`
	Amount          int64     `json:"amount"`
	AmountDisplay   string    `json:"amountDisplay"`
	PeriodType      string    `json:"periodType"`
	PeriodFrequency int       `json:"periodFrequency"`
	StartDate       time.Time `json:"startDate"`
	CreatedAt       time.Time `json:"createdTimestamp"`
	UpdatedAt       time.Time `json:"updatedTimestamp"`
}

// DueDepositView is one entry of the due-for-deposit listing.
type DueDepositView struct {
	Bill        BillView    `json:"bill"`
	Occurrences []time.Time `json:"occurrences"`
	Amount      int64       `json:"amount"`
}

// DueWithdrawalView is one entry of the due-for-withdrawal listing.
type DueWithdrawalView struct {
	Bill       BillView  `json:"bill"`
	Occurrence time.Time `json:"occurrence"`
}

// DueSummaryView groups due entries with the period they were evaluated in.
type DueSummaryView struct {
	PeriodStart time.Time           `json:"periodStart"`
	PeriodEnd   time.Time           `json:"periodEnd"`
	Total       int64               `json:"total"`
	Deposits    []DueDepositView    `json:"deposits,omitempty"`
	Withdrawals []DueWithdrawalView `json:"withdrawals,omitempty"`
}
