package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joelsaunders/bilbo/scheduler-service/internal/monzo"
	"github.com/joelsaunders/bilbo/shared/billing"
	"github.com/joelsaunders/bilbo/shared/cqrs"
	"github.com/joelsaunders/bilbo/shared/middleware"
)

// MonzoCommander defines the write-side operations used by MonzoHandler.
type MonzoCommander interface {
	CompleteMonzoLogin(cqrs.CompleteMonzoLoginCommand) error
	RefreshMonzo(cqrs.RefreshMonzoCommand) error
}

// MonzoQuerier defines the read-side operations used by MonzoHandler.
type MonzoQuerier interface {
	ListAccounts(cqrs.ListMonzoAccountsQuery) ([]monzo.Account, error)
	ListPots(cqrs.ListMonzoPotsQuery) ([]monzo.Pot, error)
}

type MonzoHandler struct {
	commands MonzoCommander
	queries  MonzoQuerier
}

type ListAccountsResponse struct {
	Accounts []monzo.Account `json:"accounts"`
}

type ListPotsResponse struct {
	Pots []monzo.Pot `json:"pots"`
}

func NewMonzoHandler(commands MonzoCommander, queries MonzoQuerier) *MonzoHandler {
	return &MonzoHandler{commands: commands, queries: queries}
}

// CompleteLogin is the OAuth redirect target. It is not behind the JWT
// middleware; the state parameter identifies the user.
func (h *MonzoHandler) CompleteLogin(c *gin.Context) {
	state := c.Query("state")
	code := c.Query("code")
	if state == "" || code == "" {
		middleware.RespondWithError(c, http.StatusBadRequest, "state and code are required")
		return
	}

	err := h.commands.CompleteMonzoLogin(cqrs.CompleteMonzoLoginCommand{State: state, Code: code})
	if err != nil {
		respondWithMonzoError(c, err, "Failed to connect Monzo")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "You are logged in to Monzo"})
}

func (h *MonzoHandler) Refresh(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	if err := h.commands.RefreshMonzo(cqrs.RefreshMonzoCommand{UserID: userID}); err != nil {
		respondWithMonzoError(c, err, "Failed to refresh Monzo credentials")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *MonzoHandler) ListAccounts(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	accounts, err := h.queries.ListAccounts(cqrs.ListMonzoAccountsQuery{UserID: userID})
	if err != nil {
		respondWithMonzoError(c, err, "Failed to list accounts")
		return
	}
	if accounts == nil {
		accounts = []monzo.Account{}
	}
	c.JSON(http.StatusOK, ListAccountsResponse{Accounts: accounts})
}

func (h *MonzoHandler) ListPots(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	pots, err := h.queries.ListPots(cqrs.ListMonzoPotsQuery{UserID: userID})
	if err != nil {
		respondWithMonzoError(c, err, "Failed to list pots")
		return
	}
	if pots == nil {
		pots = []monzo.Pot{}
	}
	c.JSON(http.StatusOK, ListPotsResponse{Pots: pots})
}

func respondWithMonzoError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, billing.ErrInvalidState):
		middleware.RespondWithError(c, http.StatusBadRequest, "Login state is invalid or has already been used")
	case errors.Is(err, billing.ErrUserNotFound):
		middleware.RespondWithError(c, http.StatusNotFound, "User not found")
	case errors.Is(err, billing.ErrUserNotReady):
		middleware.RespondWithError(c, http.StatusConflict, "Monzo is not fully configured for this user")
	case errors.Is(err, monzo.ErrAuthExpired):
		middleware.RespondWithError(c, http.StatusUnauthorized, "Monzo authorisation has expired, log in again")
	case errors.Is(err, billing.ErrTransferFailure):
		middleware.RespondWithError(c, http.StatusBadGateway, "Monzo request failed")
	default:
		middleware.RespondWithError(c, http.StatusInternalServerError, fallback)
	}
}
