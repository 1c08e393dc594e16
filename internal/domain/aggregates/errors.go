package aggregates

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode standardizes failure semantics across the command/event core.
type ErrorCode string

const (
	CodeMalformedCommand       ErrorCode = "malformed_command"
	CodeNotFound               ErrorCode = "aggregate_not_found"
	CodeInvalidStateTransition ErrorCode = "invalid_state_transition"
	CodeNoHandlerRegistered    ErrorCode = "no_handler_registered"
	CodeConflict               ErrorCode = "conflict"
	CodePersistenceFailure     ErrorCode = "persistence_failure"
	CodePublishFailure         ErrorCode = "publish_failure"
	CodeOperationCancelled     ErrorCode = "operation_cancelled"
	CodeUnsupportedEventType   ErrorCode = "unsupported_event_type"
	CodeInternal               ErrorCode = "internal"
)

// Error is the canonical core error wrapper.
type Error struct {
	Code    ErrorCode
	Op      string
	Message string
	Cause   error

	// Correlation references. Either may be empty.
	CommandID string
	ImageID   string
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	op := strings.TrimSpace(e.Op)
	msg := strings.TrimSpace(e.Message)
	var out string
	switch {
	case op != "" && msg != "":
		out = fmt.Sprintf("%s: %s (%s)", op, msg, e.Code)
	case op != "":
		out = fmt.Sprintf("%s (%s)", op, e.Code)
	case msg != "":
		out = fmt.Sprintf("%s (%s)", msg, e.Code)
	default:
		out = string(e.Code)
	}
	if e.CommandID != "" || e.ImageID != "" {
		out += fmt.Sprintf(" [command_id=%s image_id=%s]", e.CommandID, e.ImageID)
	}
	return out
}

func (e *Error) Unwrap() error { return e.Cause }

// NewError builds a core error with explicit code + operation.
func NewError(code ErrorCode, op, message string, cause error) error {
	return &Error{
		Code:    code,
		Op:      strings.TrimSpace(op),
		Message: strings.TrimSpace(message),
		Cause:   cause,
	}
}

// Wrap annotates an existing error with core error semantics.
func Wrap(code ErrorCode, op string, err error) error {
	if err == nil {
		return nil
	}
	return NewError(code, op, err.Error(), err)
}

// WithRef attaches correlation ids to err. Errors that are not *Error are
// wrapped as internal first. Existing non-empty refs are kept.
func WithRef(err error, commandID, imageID string) error {
	if err == nil {
		return nil
	}
	var aggErr *Error
	if !errors.As(err, &aggErr) {
		aggErr = &Error{Code: CodeInternal, Message: err.Error(), Cause: err}
	} else {
		cp := *aggErr
		aggErr = &cp
	}
	if aggErr.CommandID == "" {
		aggErr.CommandID = strings.TrimSpace(commandID)
	}
	if aggErr.ImageID == "" {
		aggErr.ImageID = strings.TrimSpace(imageID)
	}
	return aggErr
}

// IsCode checks whether err (or wrapped err) carries the given code.
func IsCode(err error, code ErrorCode) bool {
	var aggErr *Error
	if !errors.As(err, &aggErr) {
		return false
	}
	return aggErr.Code == code
}

// CodeOf extracts the error code when available.
func CodeOf(err error) ErrorCode {
	var aggErr *Error
	if !errors.As(err, &aggErr) {
		return ""
	}
	return aggErr.Code
}

// Malformed is shorthand for a MalformedCommand error.
func Malformed(op, message string) error {
	return NewError(CodeMalformedCommand, op, message, nil)
}

// NotFound is shorthand for an AggregateNotFound error.
func NotFound(op, id string) error {
	return &Error{Code: CodeNotFound, Op: strings.TrimSpace(op), Message: "marketing image not found", ImageID: id}
}
