package billing

import "errors"

var (
	ErrInvalidRecurrenceUnit = errors.New("invalid recurrence unit")
	ErrInvalidInterval       = errors.New("recurrence interval must be at least 1")
	ErrInvalidAmount         = errors.New("amount must be greater than zero")
	ErrInvalidAnchorDay      = errors.New("pot deposit day must be between 1 and 31")
	ErrUserNotReady          = errors.New("user is not ready for scheduling")
	ErrBillNotFound          = errors.New("bill not found")
	ErrUserNotFound          = errors.New("user not found")
	ErrForbidden             = errors.New("forbidden")
	ErrTransferFailure       = errors.New("transfer failed")
	ErrInvalidState          = errors.New("invalid or expired login state")
)
