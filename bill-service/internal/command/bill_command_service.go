package command

import (
	"context"
	"log"
	"time"

	"github.com/joelsaunders/bilbo/bill-service/internal/repository"
	"github.com/joelsaunders/bilbo/shared/billing"
	"github.com/joelsaunders/bilbo/shared/cqrs"
	"github.com/joelsaunders/bilbo/shared/events"
	"github.com/joelsaunders/bilbo/shared/models"
	"github.com/joelsaunders/bilbo/shared/utils"
)

// BillCommandService writes bill state and keeps the read model in sync.
type BillCommandService struct {
	writeRepo *repository.BillWriteRepository
	readRepo  *repository.BillReadRepository
	publisher events.Emitter
}

func NewBillCommandService(
	writeRepo *repository.BillWriteRepository,
	readRepo *repository.BillReadRepository,
	publisher events.Emitter,
) *BillCommandService {
	return &BillCommandService{
		writeRepo: writeRepo,
		readRepo:  readRepo,
		publisher: publisher,
	}
}

// CreateBill rejects invalid recurrence rules before anything is persisted.
func (s *BillCommandService) CreateBill(cmd cqrs.CreateBillCommand) (*models.BillView, error) {
	if err := validateBill(cmd.Amount, cmd.PeriodType, cmd.PeriodFrequency); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	bill := &models.Bill{
		ID:              utils.GenerateID("bil"),
		UserID:          cmd.UserID,
		Name:            cmd.Name,
		Amount:          cmd.Amount,
		PeriodType:      cmd.PeriodType,
		PeriodFrequency: cmd.PeriodFrequency,
		StartDate:       cmd.StartDate,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	ctx := context.Background()
	if err := s.writeRepo.Create(ctx, bill); err != nil {
		return nil, err
	}
	view := repository.BillToView(bill)
	s.readRepo.CacheBillView(ctx, view)
	s.readRepo.InvalidateUser(ctx, bill.UserID)
	s.publish(ctx, events.BillCreated, bill)
	return view, nil
}

func (s *BillCommandService) UpdateBill(cmd cqrs.UpdateBillCommand) (*models.BillView, error) {
	ctx := context.Background()
	bill, err := s.writeRepo.GetByID(ctx, cmd.BillID)
	if err != nil {
		return nil, err
	}
	if bill.UserID != cmd.RequestingUserID {
		return nil, billing.ErrForbidden
	}
	if cmd.Name != nil {
		bill.Name = *cmd.Name
	}
	if cmd.Amount != nil {
		bill.Amount = *cmd.Amount
	}
	if cmd.PeriodType != nil {
		bill.PeriodType = *cmd.PeriodType
	}
	if cmd.PeriodFrequency != nil {
		bill.PeriodFrequency = *cmd.PeriodFrequency
	}
	if cmd.StartDate != nil {
		bill.StartDate = *cmd.StartDate
	}
	if err := validateBill(bill.Amount, bill.PeriodType, bill.PeriodFrequency); err != nil {
		return nil, err
	}
	bill.UpdatedAt = time.Now().UTC()
	if err := s.writeRepo.Update(ctx, bill); err != nil {
		return nil, err
	}
	view := repository.BillToView(bill)
	s.readRepo.CacheBillView(ctx, view)
	s.readRepo.InvalidateUser(ctx, bill.UserID)
	s.publish(ctx, events.BillUpdated, bill)
	return view, nil
}

// DeleteBill only removes bills owned by the requesting user.
func (s *BillCommandService) DeleteBill(cmd cqrs.DeleteBillCommand) error {
	ctx := context.Background()
	bill, err := s.writeRepo.GetByID(ctx, cmd.BillID)
	if err != nil {
		return err
	}
	if bill.UserID != cmd.RequestingUserID {
		return billing.ErrForbidden
	}
	if err := s.writeRepo.Delete(ctx, cmd.BillID, cmd.RequestingUserID); err != nil {
		return err
	}
	s.readRepo.InvalidateBill(ctx, bill.ID, bill.UserID)
	s.publish(ctx, events.BillDeleted, bill)
	return nil
}

// HandleEvent reacts to ledger and user events by dropping the affected
// user's cached due summaries.
func (s *BillCommandService) HandleEvent(ctx context.Context, event events.Event) error {
	var userID string
	switch event.Type {
	case events.DepositRecorded:
		var data events.DepositRecordedEvent
		if err := events.Decode(event, &data); err != nil {
			return err
		}
		userID = data.UserID
	case events.WithdrawalRecorded:
		var data events.WithdrawalRecordedEvent
		if err := events.Decode(event, &data); err != nil {
			return err
		}
		userID = data.UserID
	case events.UserUpdated:
		var data events.UserUpdatedEvent
		if err := events.Decode(event, &data); err != nil {
			return err
		}
		userID = data.UserID
	default:
		return nil
	}
	log.Printf("Received %s event for user %s, invalidating due views", event.Type, userID)
	s.readRepo.InvalidateUser(ctx, userID)
	return nil
}

func (s *BillCommandService) publish(ctx context.Context, eventType string, bill *models.Bill) {
	if err := s.publisher.Publish(ctx, eventType, events.BillEvent{
		BillID: bill.ID,
		UserID: bill.UserID,
		Name:   bill.Name,
		Amount: bill.Amount,
	}); err != nil {
		log.Printf("Failed to publish %s event: %v", eventType, err)
	}
}

func validateBill(amount int64, periodType string, periodFrequency int) error {
	if amount <= 0 {
		return billing.ErrInvalidAmount
	}
	return billing.ValidateRule(periodType, periodFrequency)
}
