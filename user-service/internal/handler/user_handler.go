package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joelsaunders/bilbo/shared/billing"
	"github.com/joelsaunders/bilbo/shared/cqrs"
	"github.com/joelsaunders/bilbo/shared/middleware"
	"github.com/joelsaunders/bilbo/shared/models"
	"github.com/joelsaunders/bilbo/user-service/internal/repository"
)

// UserCommander defines the write-side operations used by UserHandler.
type UserCommander interface {
	CreateUser(cqrs.CreateUserCommand) (*models.UserView, error)
	UpdateSettings(cqrs.UpdateUserSettingsCommand) (*models.UserView, error)
	BeginMonzoLogin(cqrs.BeginMonzoLoginCommand) (string, error)
}

// UserQuerier defines the read-side operations used by UserHandler.
type UserQuerier interface {
	GetUser(cqrs.GetUserQuery) (*models.UserView, error)
}

// UserHandler routes requests to the command or query service as appropriate.
type UserHandler struct {
	commands UserCommander
	queries  UserQuerier
}

type CreateUserRequest struct {
	Email    string `json:"email" validate:"required,email,max=100"`
	Password string `json:"password" validate:"required,min=8"`
}

type UpdateSettingsRequest struct {
	MainAccountID *string `json:"mainAccountId" validate:"omitempty,min=1,max=200"`
	PotID         *string `json:"potId" validate:"omitempty,min=1,max=200"`
	PotDepositDay *int    `json:"potDepositDay" validate:"omitempty,gte=1,lte=31"`
}

type MonzoLoginURLResponse struct {
	URL string `json:"url"`
}

func NewUserHandler(commands UserCommander, queries UserQuerier) *UserHandler {
	return &UserHandler{commands: commands, queries: queries}
}

func (h *UserHandler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	view, err := h.commands.CreateUser(cqrs.CreateUserCommand{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			middleware.RespondWithError(c, http.StatusConflict, "A user with this email already exists")
			return
		}
		middleware.RespondWithError(c, http.StatusInternalServerError, "Failed to create user")
		return
	}

	c.JSON(http.StatusCreated, view)
}

func (h *UserHandler) GetMe(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	view, err := h.queries.GetUser(cqrs.GetUserQuery{UserID: userID})
	if err != nil {
		if errors.Is(err, billing.ErrUserNotFound) {
			middleware.RespondWithError(c, http.StatusNotFound, "User not found")
			return
		}
		middleware.RespondWithError(c, http.StatusInternalServerError, "Failed to fetch user")
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *UserHandler) UpdateMe(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	view, err := h.commands.UpdateSettings(cqrs.UpdateUserSettingsCommand{
		UserID:        userID,
		MainAccountID: req.MainAccountID,
		PotID:         req.PotID,
		PotDepositDay: req.PotDepositDay,
	})
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrUserNotFound):
			middleware.RespondWithError(c, http.StatusNotFound, "User not found")
		case errors.Is(err, billing.ErrInvalidAnchorDay):
			middleware.RespondWithFieldError(c, "PotDepositDay", "lte", err.Error())
		default:
			middleware.RespondWithError(c, http.StatusInternalServerError, "Failed to update user")
		}
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *UserHandler) MonzoLoginURL(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	loginURL, err := h.commands.BeginMonzoLogin(cqrs.BeginMonzoLoginCommand{UserID: userID})
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrForbidden):
			middleware.RespondWithError(c, http.StatusForbidden, "Your account is not whitelisted for Monzo access")
		case errors.Is(err, billing.ErrUserNotFound):
			middleware.RespondWithError(c, http.StatusNotFound, "User not found")
		default:
			middleware.RespondWithError(c, http.StatusInternalServerError, "Failed to start Monzo login")
		}
		return
	}

	c.JSON(http.StatusOK, MonzoLoginURLResponse{URL: loginURL})
}
