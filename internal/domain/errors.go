package domain

// Stable error codes returned to clients. These are the wire contract; the
// human-readable text may change, the codes may not.
const (
	CodeInvalidData     = "INVALID_DATA"
	CodeMessageTooLong  = "MESSAGE_TOO_LONG"
	CodeInvalidReceiver = "INVALID_RECEIVER"
	CodeForbidden       = "FORBIDDEN"
	CodeNotFound        = "NOT_FOUND"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeInternal        = "INTERNAL_ERROR"
)

// Error carries a stable code plus a message safe to show to a client.
// Infrastructure detail never travels in one of these.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string { return e.Code + ": " + e.Message }

func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// ErrInternal hides the underlying cause from the client; callers log the
// real error themselves.
func ErrInternal() *Error {
	return &Error{Code: CodeInternal, Message: "internal error"}
}
