package cqrs

import "time"

type CreateUserCommand struct {
	Email    string
	Password string
}

// UpdateUserSettingsCommand changes the banking-integration settings of a user.
// Nil fields are left untouched.
type UpdateUserSettingsCommand struct {
	UserID        string
	MainAccountID *string
	PotID         *string
	PotDepositDay *int
}

// BeginMonzoLoginCommand issues a fresh OAuth state token for the user.
type BeginMonzoLoginCommand struct {
	UserID string
}

type CreateBillCommand struct {
	UserID          string
	Name            string
	Amount          int64
	PeriodType      string
	PeriodFrequency int
	StartDate       time.Time
}

// UpdateBillCommand is an explicit bill update. Nil fields are left untouched.
type UpdateBillCommand struct {
	BillID           string
	RequestingUserID string
	Name             *string
	Amount           *int64
	PeriodType       *string
	PeriodFrequency  *int
	StartDate        *time.Time
}

type DeleteBillCommand struct {
	BillID           string
	RequestingUserID string
}

type LoginCommand struct {
	Email    string
	Password string
}

type RefreshTokenCommand struct {
	Token string
}

// CompleteMonzoLoginCommand exchanges the authorization code the bank
// redirected back with for the user owning State.
type CompleteMonzoLoginCommand struct {
	State string
	Code  string
}

// RefreshMonzoCommand forces a credential refresh for the user.
type RefreshMonzoCommand struct {
	UserID string
}
