package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joelsaunders/bilbo/bill-service/internal/repository"
	"github.com/joelsaunders/bilbo/shared/billing"
	"github.com/joelsaunders/bilbo/shared/cqrs"
	"github.com/joelsaunders/bilbo/shared/middleware"
	"github.com/joelsaunders/bilbo/shared/models"
)

const dateLayout = "2006-01-02"

// BillCommander defines the write-side operations used by BillHandler.
type BillCommander interface {
	CreateBill(cqrs.CreateBillCommand) (*models.BillView, error)
	UpdateBill(cqrs.UpdateBillCommand) (*models.BillView, error)
	DeleteBill(cqrs.DeleteBillCommand) error
}

// BillQuerier defines the read-side operations used by BillHandler.
type BillQuerier interface {
	GetBill(cqrs.GetBillQuery) (*models.BillView, error)
	ListBills(cqrs.ListBillsQuery) ([]models.BillView, error)
	DueDeposits(cqrs.DueBillsQuery) (*models.DueSummaryView, error)
	DueWithdrawals(cqrs.DueBillsQuery) (*models.DueSummaryView, error)
	ListDeposits(cqrs.ListLedgerQuery) ([]models.Deposit, error)
	ListWithdrawals(cqrs.ListLedgerQuery) ([]models.Withdrawal, error)
}

// BillHandler handles bill-related HTTP requests.
type BillHandler struct {
	commands BillCommander
	queries  BillQuerier
}

type CreateBillRequest struct {
	Name            string `json:"name" validate:"required,max=255"`
	Amount          int64  `json:"amount" validate:"required,gt=0"`
	PeriodType      string `json:"periodType" validate:"required,oneof=day week month"`
	PeriodFrequency int    `json:"periodFrequency" validate:"required,gte=1"`
	StartDate       string `json:"startDate" validate:"required,datetime=2006-01-02"`
}

type UpdateBillRequest struct {
	Name            *string `json:"name" validate:"omitempty,min=1,max=255"`
	Amount          *int64  `json:"amount" validate:"omitempty,gt=0"`
	PeriodType      *string `json:"periodType" validate:"omitempty,oneof=day week month"`
	PeriodFrequency *int    `json:"periodFrequency" validate:"omitempty,gte=1"`
	StartDate       *string `json:"startDate" validate:"omitempty,datetime=2006-01-02"`
}

type ListBillsResponse struct {
	Bills []models.BillView `json:"bills"`
}

type ListDepositsResponse struct {
	Deposits []models.Deposit `json:"deposits"`
}

type ListWithdrawalsResponse struct {
	Withdrawals []models.Withdrawal `json:"withdrawals"`
}

func NewBillHandler(commands BillCommander, queries BillQuerier) *BillHandler {
	return &BillHandler{commands: commands, queries: queries}
}

func (h *BillHandler) CreateBill(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req CreateBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}
	startDate, _ := time.Parse(dateLayout, req.StartDate)

	view, err := h.commands.CreateBill(cqrs.CreateBillCommand{
		UserID:          userID,
		Name:            req.Name,
		Amount:          req.Amount,
		PeriodType:      req.PeriodType,
		PeriodFrequency: req.PeriodFrequency,
		StartDate:       startDate,
	})
	if err != nil {
		respondWithBillError(c, err, "Failed to create bill")
		return
	}

	c.JSON(http.StatusCreated, view)
}

func (h *BillHandler) ListBills(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	views, err := h.queries.ListBills(cqrs.ListBillsQuery{UserID: userID})
	if err != nil {
		middleware.RespondWithError(c, http.StatusInternalServerError, "Failed to list bills")
		return
	}
	if views == nil {
		views = []models.BillView{}
	}
	c.JSON(http.StatusOK, ListBillsResponse{Bills: views})
}

func (h *BillHandler) GetBill(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	view, err := h.queries.GetBill(cqrs.GetBillQuery{
		BillID:           c.Param("billId"),
		RequestingUserID: userID,
	})
	if err != nil {
		respondWithBillError(c, err, "Failed to fetch bill")
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *BillHandler) UpdateBill(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req UpdateBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	cmd := cqrs.UpdateBillCommand{
		BillID:           c.Param("billId"),
		RequestingUserID: userID,
		Name:             req.Name,
		Amount:           req.Amount,
		PeriodType:       req.PeriodType,
		PeriodFrequency:  req.PeriodFrequency,
	}
	if req.StartDate != nil {
		startDate, _ := time.Parse(dateLayout, *req.StartDate)
		cmd.StartDate = &startDate
	}

	view, err := h.commands.UpdateBill(cmd)
	if err != nil {
		respondWithBillError(c, err, "Failed to update bill")
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *BillHandler) DeleteBill(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	err := h.commands.DeleteBill(cqrs.DeleteBillCommand{
		BillID:           c.Param("billId"),
		RequestingUserID: userID,
	})
	if err != nil {
		respondWithBillError(c, err, "Failed to delete bill")
		return
	}

	c.Status(http.StatusNoContent)
}

// DueForDeposit accepts an optional ?at=2006-01-02 to evaluate a past or
// future day instead of now.
func (h *BillHandler) DueForDeposit(c *gin.Context) {
	q, ok := dueQuery(c)
	if !ok {
		return
	}
	summary, err := h.queries.DueDeposits(q)
	if err != nil {
		respondWithBillError(c, err, "Failed to evaluate due deposits")
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *BillHandler) DueForWithdrawal(c *gin.Context) {
	q, ok := dueQuery(c)
	if !ok {
		return
	}
	summary, err := h.queries.DueWithdrawals(q)
	if err != nil {
		respondWithBillError(c, err, "Failed to evaluate due withdrawals")
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *BillHandler) ListDeposits(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	deposits, err := h.queries.ListDeposits(cqrs.ListLedgerQuery{
		BillID:           c.Param("billId"),
		RequestingUserID: userID,
	})
	if err != nil {
		respondWithBillError(c, err, "Failed to list deposits")
		return
	}
	c.JSON(http.StatusOK, ListDepositsResponse{Deposits: deposits})
}

func (h *BillHandler) ListWithdrawals(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	withdrawals, err := h.queries.ListWithdrawals(cqrs.ListLedgerQuery{
		BillID:           c.Param("billId"),
		RequestingUserID: userID,
	})
	if err != nil {
		respondWithBillError(c, err, "Failed to list withdrawals")
		return
	}
	c.JSON(http.StatusOK, ListWithdrawalsResponse{Withdrawals: withdrawals})
}

func dueQuery(c *gin.Context) (cqrs.DueBillsQuery, bool) {
	userID, _ := middleware.GetUserID(c)
	q := cqrs.DueBillsQuery{UserID: userID}
	if at := c.Query("at"); at != "" {
		parsed, err := time.Parse(dateLayout, at)
		if err != nil {
			middleware.RespondWithFieldError(c, "at", "datetime", "Expected a date in YYYY-MM-DD format")
			return q, false
		}
		q.Now = parsed
	}
	return q, true
}

func respondWithBillError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, billing.ErrBillNotFound):
		middleware.RespondWithError(c, http.StatusNotFound, "Bill not found")
	case errors.Is(err, billing.ErrForbidden):
		middleware.RespondWithError(c, http.StatusForbidden, "You can only access your own bills")
	case errors.Is(err, billing.ErrUserNotFound):
		middleware.RespondWithError(c, http.StatusNotFound, "User not found")
	case errors.Is(err, billing.ErrUserNotReady):
		middleware.RespondWithError(c, http.StatusConflict, "Set a pot deposit day before querying due bills")
	case errors.Is(err, repository.ErrBillNameTaken):
		middleware.RespondWithError(c, http.StatusConflict, "A bill with this name already exists")
	case errors.Is(err, billing.ErrInvalidRecurrenceUnit):
		middleware.RespondWithFieldError(c, "PeriodType", "oneof", err.Error())
	case errors.Is(err, billing.ErrInvalidInterval):
		middleware.RespondWithFieldError(c, "PeriodFrequency", "gte", err.Error())
	case errors.Is(err, billing.ErrInvalidAmount):
		middleware.RespondWithFieldError(c, "Amount", "gt", err.Error())
	default:
		middleware.RespondWithError(c, http.StatusInternalServerError, fallback)
	}
}
