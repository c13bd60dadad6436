package a2a

import (
	"errors"
	"fmt"
)

// JSONRPCError represents a JSON-RPC error object.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// --- Standard JSON-RPC Error Codes ---
// See: https://www.jsonrpc.org/specification#error_object

const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	// A2A specific codes, within the implementation-defined server range.
	CodeTaskNotFound                 = -32001
	CodeInvalidStateTransition       = -32002
	CodePushNotificationNotSupported = -32003
	CodeUnsupportedOperation         = -32004
	CodeContentTypeNotSupported      = -32005
	CodeUnauthorized                 = -32010
)

// Error represents an A2A error with a corresponding JSON-RPC code.
type Error struct {
	Code    int    // The JSON-RPC error code.
	Message string // A human-readable error message.
	Data    any    // Optional additional data.
	cause   error
}

// Error implements the standard Go error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("a2a error: code=%d, message=%s, cause=%v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("a2a error: code=%d, message=%s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target is an *Error with the same code, so that
// errors.Is(err, ErrTaskNotFound("")) matches any task-not-found error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// ToJSONRPCError converts an A2A Error to a JSONRPCError struct.
func (e *Error) ToJSONRPCError() *JSONRPCError {
	return &JSONRPCError{
		Code:    e.Code,
		Message: e.Message,
		Data:    e.Data,
	}
}

// NewError creates a new A2A Error.
func NewError(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NewErrorf creates a new A2A Error with formatted message.
func NewErrorf(code int, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError creates a new A2A Error that wraps an existing error.
func WrapError(cause error, code int, message string) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// WrapErrorf creates a new A2A Error that wraps an existing error with a formatted message.
func WrapErrorf(cause error, code int, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: cause}
}

// AsError returns the *Error in err's chain, or wraps err as an internal error.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return ErrInternalError(err)
}

// --- Predefined Errors ---

func ErrParseError(cause error) *Error {
	return WrapError(cause, CodeParseError, "Parse error")
}

func ErrInvalidRequest(message string) *Error {
	if message == "" {
		message = "Invalid Request"
	}
	return NewError(CodeInvalidRequest, message)
}

func ErrMethodNotFound(method string) *Error {
	return NewErrorf(CodeMethodNotFound, "Method not found: %s", method)
}

func ErrInvalidParams(message string) *Error {
	if message == "" {
		message = "Invalid params"
	}
	return NewError(CodeInvalidParams, message)
}

func ErrInternalError(cause error) *Error {
	return WrapError(cause, CodeInternalError, "Internal error")
}

func ErrTaskNotFound(taskID string) *Error {
	return NewErrorf(CodeTaskNotFound, "Task not found: %s", taskID)
}

func ErrInvalidStateTransition(taskID string, from, to TaskState) *Error {
	return NewErrorf(CodeInvalidStateTransition, "Invalid state transition for task %s: %s -> %s", taskID, from, to)
}

func ErrPushNotificationNotSupported() *Error {
	return NewError(CodePushNotificationNotSupported, "Push notifications are not supported")
}

func ErrUnsupportedOperation(operation string) *Error {
	return NewErrorf(CodeUnsupportedOperation, "Operation not supported: %s", operation)
}

func ErrContentTypeNotSupported(mimeType string) *Error {
	return NewErrorf(CodeContentTypeNotSupported, "Content type not supported: %s", mimeType)
}

func ErrUnauthorized(cause error) *Error {
	return WrapError(cause, CodeUnauthorized, "Unauthorized")
}
