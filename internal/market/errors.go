package market

import "fmt"

// Error codes carried to the wire. Bank-originated errors pass through
// with their own codes and are not listed here.
const (
	CodeAlreadyRegistered = "AlreadyRegistered"
	CodeNotRegistered     = "NotRegistered"
	CodeAlreadyListed     = "AlreadyListed"
	CodeNotListed         = "NotListed"
	CodeDuplicateWish     = "DuplicateWish"
	CodeWishConflict      = "WishConflict"
	CodeNoSellerAccount   = "NoSellerAccount"
	CodeNoBuyerAccount    = "NoBuyerAccount"
	CodeInsufficientFunds = "InsufficientFunds"
)

// Error is a market validation error with a stable code and a
// human-readable message referencing the offending name or item.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

// Is matches errors by code, so errors.Is(err, ErrNotListed) works on
// wrapped and reconstructed errors alike.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Sentinels for errors.Is checks.
var (
	ErrAlreadyRegistered = &Error{Code: CodeAlreadyRegistered, Message: "trader already registered"}
	ErrNotRegistered     = &Error{Code: CodeNotRegistered, Message: "trader not registered"}
	ErrAlreadyListed     = &Error{Code: CodeAlreadyListed, Message: "item already listed"}
	ErrNotListed         = &Error{Code: CodeNotListed, Message: "item not listed"}
	ErrDuplicateWish     = &Error{Code: CodeDuplicateWish, Message: "duplicate wish"}
	ErrWishConflict      = &Error{Code: CodeWishConflict, Message: "wish conflict"}
	ErrNoSellerAccount   = &Error{Code: CodeNoSellerAccount, Message: "seller has no bank account"}
	ErrNoBuyerAccount    = &Error{Code: CodeNoBuyerAccount, Message: "buyer has no bank account"}
	ErrInsufficientFunds = &Error{Code: CodeInsufficientFunds, Message: "insufficient funds"}
)

func newError(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}
