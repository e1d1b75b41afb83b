package boreal

import (
	"fmt"
	"strings"
)

// Driver-originated error codes. Errors reported by the warehouse carry the
// server's own code instead.
const (
	ErrCodeBadConnectionParams = 250001
	ErrCodeBadRequest          = 250002
	ErrCodeBadResponse         = 250003
	ErrCodeBadAttribute        = 250004
	ErrCodeTypeMismatch        = 250005
	ErrCodeNotImplemented      = 250006
)

// SQL state codes set by the driver itself.
const (
	SQLStateUnableToConnect  = "08001"
	SQLStateConnectionReject = "08004"
)

// Error is the structured error recorded on a Connection or Statement. Every
// failing driver operation returns one and also parks it on the owning
// object's error slot, where it stays queryable until the next operation.
type Error struct {
	Code     int
	Message  string
	SQLState string
	QueryID  string
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d: %s", e.Code, e.Message)
	if e.SQLState != "" {
		fmt.Fprintf(&b, " (SQLSTATE %s)", e.SQLState)
	}
	if e.QueryID != "" {
		fmt.Fprintf(&b, " (queryID: %s)", e.QueryID)
	}
	return b.String()
}

// errorSlot holds the most recent error of its owner. Public operations clear
// the slot on entry so a stale error never outlives the call that set it.
type errorSlot struct {
	err *Error
}

func (s *errorSlot) clear() { s.err = nil }

func (s *errorSlot) last() *Error { return s.err }

func (s *errorSlot) set(code int, message, sqlState, queryID string) *Error {
	s.err = &Error{Code: code, Message: message, SQLState: sqlState, QueryID: queryID}
	return s.err
}

func (s *errorSlot) setf(code int, sqlState, queryID, format string, args ...any) *Error {
	return s.set(code, fmt.Sprintf(format, args...), sqlState, queryID)
}

// copyFrom duplicates src into the slot. The message is cloned so the two
// slots never share storage.
func (s *errorSlot) copyFrom(src *Error) {
	if src == nil {
		s.err = nil
		return
	}
	s.err = &Error{
		Code:     src.Code,
		Message:  strings.Clone(src.Message),
		SQLState: strings.Clone(src.SQLState),
		QueryID:  strings.Clone(src.QueryID),
	}
}
