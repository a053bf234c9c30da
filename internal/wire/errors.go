package wire

import (
	"errors"
	"fmt"
)

// UserError is a classified error surfaced to the client in the action ack
// as {errorName, errorMessage}. Anything else that escapes a handler is an
// internal error: logged server-side, acked without details.
type UserError struct {
	Name    string `json:"errorName"`
	Message string `json:"errorMessage"`
}

func (e *UserError) Error() string {
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

// AsUserError returns the classified error inside err, or nil.
func AsUserError(err error) *UserError {
	var ue *UserError
	if errors.As(err, &ue) {
		return ue
	}
	return nil
}

func ErrInvalidAction(event string, state UserState) *UserError {
	return &UserError{
		Name:    "InvalidActionError",
		Message: fmt.Sprintf("action %q is not allowed in state %s", event, state),
	}
}

func ErrAuth(reason string) *UserError {
	return &UserError{Name: "AuthError", Message: reason}
}

func ErrUserAlreadyAuthenticated(userID string) *UserError {
	return &UserError{
		Name:    "UserAlreadyAuthenticatedError",
		Message: fmt.Sprintf("user %q already has an active connection", userID),
	}
}

func ErrSelfInvite() *UserError {
	return &UserError{Name: "SelfInviteError", Message: "cannot invite yourself"}
}

func ErrInvalidInvite(from, to string) *UserError {
	return &UserError{
		Name:    "InvalidInviteError",
		Message: fmt.Sprintf("no invite from %q to %q", from, to),
	}
}

func ErrInventoryMismatch() *UserError {
	return &UserError{
		Name:    "InventoryMismatchError",
		Message: "submitted inventories do not match the trade state",
	}
}

func ErrCantCompleteEitherUnlocked() *UserError {
	return &UserError{
		Name:    "CantCompleteEitherUnlockedError",
		Message: "both sides must be locked in before completing",
	}
}

func ErrItemNotTradable(itemID string) *UserError {
	return &UserError{
		Name:    "ItemNotTradableError",
		Message: fmt.Sprintf("item %q cannot be traded", itemID),
	}
}
