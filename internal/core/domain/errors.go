package domain

import "errors"

// Error families. Handlers map these to status codes; every specific error
// below unwraps to exactly one of them.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidState = errors.New("invalid state")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// Error is a domain error with a user-facing message.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Invalid builds an ErrInvalidInput error carrying message.
func Invalid(message string) error {
	return newError(ErrInvalidInput, message)
}

// Catalog errors
var (
	ErrBookNotFound     = newError(ErrNotFound, "Book not found")
	ErrISBNTaken        = newError(ErrInvalidState, "A book with this ISBN already exists")
	ErrBookHasOpenLoans = newError(ErrInvalidState, "Book has copies checked out")
	ErrTotalBelowOnLoan = newError(ErrInvalidState, "Total copies cannot be less than copies on loan")
)

// Ledger errors
var (
	ErrNoCopiesAvailable = newError(ErrInvalidState, "No copies available")
	ErrAlreadyCheckedOut = newError(ErrInvalidState, "You have already checked out this book")
	ErrNotCheckedOut     = newError(ErrInvalidState, "You have not checked out this book")
	ErrInventoryOverflow = newError(ErrInvalidState, "Returning this copy would exceed the total copies owned")
)

// Account errors
var (
	ErrUserNotFound        = newError(ErrNotFound, "User not found")
	ErrPasswordMismatch    = newError(ErrInvalidState, "Passwords do not match")
	ErrUsernameTaken       = newError(ErrInvalidState, "Username already exists")
	ErrEmailTaken          = newError(ErrInvalidState, "Email already exists")
	ErrWeakPassword        = newError(ErrInvalidInput, "Password must be at least 8 characters")
	ErrInvalidRole         = newError(ErrInvalidInput, "Invalid role")
	ErrCannotDeleteSelf    = newError(ErrInvalidState, "Cannot delete your own account")
	ErrCannotChangeOwnRole = newError(ErrInvalidState, "Cannot change your own role or active status")
	ErrWrongPassword       = newError(ErrInvalidState, "Current password is incorrect")
	ErrUserHasOpenLoans    = newError(ErrInvalidState, "User still has books checked out")
)

// Auth errors
var (
	ErrInvalidCredentials = newError(ErrUnauthorized, "Invalid email or password")
	ErrUserInactive       = newError(ErrForbidden, "User account is inactive")
	ErrTokenInvalid       = newError(ErrUnauthorized, "Invalid token")
	ErrTokenExpired       = newError(ErrUnauthorized, "Token expired")
	ErrTokenRevoked       = newError(ErrUnauthorized, "Token revoked")
	ErrPermissionDenied   = newError(ErrForbidden, "You don't have permission to perform this action")
)

// Message returns the user-facing text of a domain error, or fallback when
// err is not one.
func Message(err error, fallback string) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return fallback
}
