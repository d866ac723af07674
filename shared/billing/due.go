package billing

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/joelsaunders/bilbo/shared/models"
)

// Ledger is the read side of the bill and ledger tables the evaluators need.
// Implementations may run inside a transaction so that the check and the
// following ledger write see the same rows.
type Ledger interface {
	ListBillsForUser(ctx context.Context, userID string) ([]models.Bill, error)
	DepositExists(ctx context.Context, billID string, since time.Time) (bool, error)
	WithdrawalExists(ctx context.Context, billID string, since time.Time) (bool, error)
}

// DueDeposit is a bill with its unprocessed occurrences in the current period.
type DueDeposit struct {
	Bill        models.Bill
	Occurrences []time.Time
}

// Amount is the money the bill needs set aside for this period.
func (d DueDeposit) Amount() int64 {
	return d.Bill.Amount * int64(len(d.Occurrences))
}

// DueWithdrawal is a bill whose most recent in-period occurrence has passed
// without a withdrawal being attempted.
type DueWithdrawal struct {
	Bill       models.Bill
	Occurrence time.Time
}

// TotalDeposit sums the amount owed across due deposits.
func TotalDeposit(dues []DueDeposit) int64 {
	var total int64
	for _, d := range dues {
		total += d.Amount()
	}
	return total
}

// TotalWithdrawal sums the bill amounts across due withdrawals.
func TotalWithdrawal(dues []DueWithdrawal) int64 {
	var total int64
	for _, d := range dues {
		total += d.Bill.Amount
	}
	return total
}

// UserPeriod resolves the billing period now falls in for user.
func UserPeriod(user *models.User, now time.Time) (Period, error) {
	if user.PotDepositDay == nil {
		return Period{}, fmt.Errorf("%w: %s has no pot deposit day", ErrUserNotReady, user.ID)
	}
	return CurrentPeriod(now, *user.PotDepositDay)
}

// DueDeposits returns the user's bills that have at least one occurrence in
// the current period and no deposit recorded since the period started.
func DueDeposits(ctx context.Context, ledger Ledger, user *models.User, now time.Time) (Period, []DueDeposit, error) {
	period, err := UserPeriod(user, now)
	if err != nil {
		return Period{}, nil, err
	}
	bills, err := ledger.ListBillsForUser(ctx, user.ID)
	if err != nil {
		return period, nil, fmt.Errorf("failed to list bills: %w", err)
	}

	var due []DueDeposit
	for _, bill := range bills {
		occurrences, err := Occurrences(period, bill.PeriodType, bill.PeriodFrequency, bill.StartDate)
		if err != nil {
			log.Printf("billing: skipping bill %s: %v", bill.ID, err)
			continue
		}
		if len(occurrences) == 0 {
			continue
		}
		exists, err := ledger.DepositExists(ctx, bill.ID, period.Start)
		if err != nil {
			return period, nil, fmt.Errorf("failed to check deposits for bill %s: %w", bill.ID, err)
		}
		if exists {
			continue
		}
		due = append(due, DueDeposit{Bill: bill, Occurrences: occurrences})
	}
	return period, due, nil
}

// DueWithdrawals returns the user's bills whose latest occurrence before now
// (within the current period) has no withdrawal recorded at or after it.
// Earlier missed occurrences are not re-triggered.
func DueWithdrawals(ctx context.Context, ledger Ledger, user *models.User, now time.Time) (Period, []DueWithdrawal, error) {
	period, err := UserPeriod(user, now)
	if err != nil {
		return Period{}, nil, err
	}
	bills, err := ledger.ListBillsForUser(ctx, user.ID)
	if err != nil {
		return period, nil, fmt.Errorf("failed to list bills: %w", err)
	}

	var due []DueWithdrawal
	for _, bill := range bills {
		occurrences, err := Occurrences(period, bill.PeriodType, bill.PeriodFrequency, bill.StartDate)
		if err != nil {
			log.Printf("billing: skipping bill %s: %v", bill.ID, err)
			continue
		}
		latest, ok := latestBefore(occurrences, now)
		if !ok {
			continue
		}
		exists, err := ledger.WithdrawalExists(ctx, bill.ID, latest)
		if err != nil {
			return period, nil, fmt.Errorf("failed to check withdrawals for bill %s: %w", bill.ID, err)
		}
		if exists {
			continue
		}
		due = append(due, DueWithdrawal{Bill: bill, Occurrence: latest})
	}
	return period, due, nil
}

// NextChange returns the earliest time from now on at which the user's due
// withdrawals can change without a ledger write: the next in-period
// occurrence of any bill not yet passed, or the end of the period. An
// occurrence equal to now counts, since it becomes due just after.
func NextChange(ctx context.Context, ledger Ledger, user *models.User, now time.Time) (time.Time, error) {
	period, err := UserPeriod(user, now)
	if err != nil {
		return time.Time{}, err
	}
	bills, err := ledger.ListBillsForUser(ctx, user.ID)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to list bills: %w", err)
	}

	next := period.End
	for _, bill := range bills {
		occurrences, err := Occurrences(period, bill.PeriodType, bill.PeriodFrequency, bill.StartDate)
		if err != nil {
			continue
		}
		for _, occ := range occurrences {
			if !occ.Before(now) {
				if occ.Before(next) {
					next = occ
				}
				break
			}
		}
	}
	return next, nil
}

// latestBefore picks the last occurrence strictly before now. occurrences is
// increasing.
func latestBefore(occurrences []time.Time, now time.Time) (time.Time, bool) {
	for i := len(occurrences) - 1; i >= 0; i-- {
		if occurrences[i].Before(now) {
			return occurrences[i], true
		}
	}
	return time.Time{}, false
}
