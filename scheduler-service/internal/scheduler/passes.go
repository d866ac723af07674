package scheduler

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joelsaunders/bilbo/scheduler-service/internal/repository"
	"github.com/joelsaunders/bilbo/shared/billing"
	"github.com/joelsaunders/bilbo/shared/events"
	"github.com/joelsaunders/bilbo/shared/models"
	"github.com/joelsaunders/bilbo/shared/utils"
)

const (
	depositFeedTitle    = "Bilbo's pot increased"
	withdrawalFeedTitle = "Bilbo's pot decreased"
)

// dedupeNamespace scopes transfer dedupe ids to this application.
var dedupeNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://bilbo/transfers"))

// DedupeID derives the idempotency key sent with a transfer. Two passes that
// compute the same transfer for the same user produce the same key, so the
// bank executes it at most once.
func DedupeID(userID string, kind repository.PassKind, at time.Time, items []string) string {
	sorted := append([]string(nil), items...)
	sort.Strings(sorted)
	name := strings.Join([]string{userID, string(kind), at.UTC().Format(time.RFC3339), strings.Join(sorted, ",")}, "|")
	return uuid.NewSHA1(dedupeNamespace, []byte(name)).String()
}

// depositPass moves the money owed for this period's unprocessed bills into
// the pot and records one deposit per bill. A failed transfer rolls the pass
// back so the next tick retries it.
func (s *Scheduler) depositPass(ctx context.Context, user *models.User, now time.Time) (int, error) {
	var (
		period   billing.Period
		total    int64
		recorded []models.Deposit
	)
	err := s.ledger.InPass(ctx, user.ID, repository.DepositPass, func(tx repository.LedgerTx) error {
		recorded = nil

		p, due, err := billing.DueDeposits(ctx, tx, user, now)
		if err != nil {
			return err
		}
		if len(due) == 0 {
			return nil
		}
		period = p
		total = billing.TotalDeposit(due)

		billIDs := make([]string, 0, len(due))
		for _, d := range due {
			billIDs = append(billIDs, d.Bill.ID)
		}
		dedupeID := DedupeID(user.ID, repository.DepositPass, period.Start, billIDs)

		log.Printf("Depositing %s into pot for user %s (%d bills)", utils.FormatPence(total), user.ID, len(due))
		if err := s.bank.TransferIntoSavings(ctx, user, total, dedupeID); err != nil {
			return fmt.Errorf("deposit %s: %w", utils.FormatPence(total), err)
		}

		for _, d := range due {
			deposit, ok, err := tx.CheckAndRecordDeposit(ctx, d.Bill.ID, period.Start, d.Amount(), now)
			if err != nil {
				return err
			}
			if ok {
				recorded = append(recorded, *deposit)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if len(recorded) == 0 {
		return 0, nil
	}

	s.postFeedItem(ctx, user, depositFeedTitle, fmt.Sprintf("👇 %d bills added", len(recorded)))
	for _, d := range recorded {
		s.publish(ctx, events.DepositRecorded, events.DepositRecordedEvent{
			DepositID:   d.ID,
			BillID:      d.BillID,
			UserID:      user.ID,
			Amount:      d.Amount,
			PeriodStart: period.Start,
		})
	}
	return len(recorded), nil
}

type recordedWithdrawal struct {
	withdrawal models.Withdrawal
	due        billing.DueWithdrawal
}

// withdrawalPass moves the amount of every bill that fell due since the last
// attempt out of the pot. The attempt is recorded per bill whether or not the
// transfer succeeded, so a failure is not retried for the same occurrence.
func (s *Scheduler) withdrawalPass(ctx context.Context, user *models.User, now time.Time) (int, error) {
	var (
		recorded    []recordedWithdrawal
		transferErr error
	)
	err := s.ledger.InPass(ctx, user.ID, repository.WithdrawalPass, func(tx repository.LedgerTx) error {
		recorded = nil
		transferErr = nil

		_, due, err := billing.DueWithdrawals(ctx, tx, user, now)
		if err != nil {
			return err
		}
		if len(due) == 0 {
			return nil
		}
		total := billing.TotalWithdrawal(due)

		var latest time.Time
		items := make([]string, 0, len(due))
		for _, d := range due {
			items = append(items, d.Bill.ID+"@"+d.Occurrence.UTC().Format(time.RFC3339))
			if d.Occurrence.After(latest) {
				latest = d.Occurrence
			}
		}
		dedupeID := DedupeID(user.ID, repository.WithdrawalPass, latest, items)

		log.Printf("Withdrawing %s from pot for user %s (%d bills)", utils.FormatPence(total), user.ID, len(due))
		transferErr = s.bank.TransferOutOfSavings(ctx, user, total, dedupeID)
		success := transferErr == nil

		for _, d := range due {
			withdrawal, ok, err := tx.CheckAndRecordWithdrawal(ctx, d.Bill.ID, d.Occurrence, success, now)
			if err != nil {
				return err
			}
			if ok {
				recorded = append(recorded, recordedWithdrawal{withdrawal: *withdrawal, due: d})
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if transferErr == nil && len(recorded) > 0 {
		s.postFeedItem(ctx, user, withdrawalFeedTitle, fmt.Sprintf("👇 %d bills due today", len(recorded)))
	}
	for _, r := range recorded {
		s.publish(ctx, events.WithdrawalRecorded, events.WithdrawalRecordedEvent{
			WithdrawalID: r.withdrawal.ID,
			BillID:       r.withdrawal.BillID,
			UserID:       user.ID,
			Amount:       r.due.Bill.Amount,
			Success:      r.withdrawal.Success,
			Occurrence:   r.due.Occurrence,
		})
	}
	if transferErr != nil {
		return len(recorded), fmt.Errorf("withdraw from pot: %w", transferErr)
	}
	return len(recorded), nil
}

func (s *Scheduler) postFeedItem(ctx context.Context, user *models.User, title, body string) {
	if err := s.bank.PostFeedItem(ctx, user, title, body); err != nil {
		log.Printf("Failed to post feed item for user %s: %v", user.ID, err)
	}
}
