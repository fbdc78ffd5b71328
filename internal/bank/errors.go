package bank

import "fmt"

// Error codes carried to the wire.
const (
	CodeAccountExists  = "AccountExists"
	CodeNoSuchAccount  = "NoSuchAccount"
	CodeOverdraft      = "Overdraft"
	CodeNegativeAmount = "NegativeAmount"
)

// Error is a bank rejection with a stable code. Market operations pass
// these through to their callers unchanged.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

// Is matches errors by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Sentinels for errors.Is checks.
var (
	ErrAccountExists  = &Error{Code: CodeAccountExists, Message: "account already exists"}
	ErrNoSuchAccount  = &Error{Code: CodeNoSuchAccount, Message: "no such account"}
	ErrOverdraft      = &Error{Code: CodeOverdraft, Message: "overdraft"}
	ErrNegativeAmount = &Error{Code: CodeNegativeAmount, Message: "negative amount"}
)

// NewError builds a coded error with a formatted message. Exposed so the
// bank client can reconstruct wire errors with their original codes.
func NewError(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}
