package apperror

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeNotFound          Code = "NOT_FOUND"
	CodeInvalidTransition Code = "INVALID_TRANSITION"
	CodeUnauthorized      Code = "UNAUTHORIZED"
	CodeForbidden         Code = "FORBIDDEN"
	CodeValidation        Code = "VALIDATION"
	CodeConflict          Code = "CONFLICT"
	CodeDependency        Code = "DEPENDENCY_FAILURE"
	CodeInternal          Code = "INTERNAL"
)

// Error is the tagged error every service returns. Fields carries
// per-field messages for validation failures.
type Error struct {
	Code    Code              `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	Cause   error             `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches on code so sentinel errors compare with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code && (t.Message == "" || t.Message == e.Message)
}

// Constructors
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func NotFound(msg string) error {
	return New(CodeNotFound, msg)
}

func InvalidTransition(msg string) error {
	return New(CodeInvalidTransition, msg)
}

func Unauthorized(msg string) error {
	return New(CodeUnauthorized, msg)
}

func Forbidden(msg string) error {
	return New(CodeForbidden, msg)
}

func Conflict(msg string) error {
	return New(CodeConflict, msg)
}

func Internal(msg string, cause error) error {
	return Wrap(CodeInternal, msg, cause)
}

func Dependency(msg string, cause error) error {
	return Wrap(CodeDependency, msg, cause)
}

// Validation builds a VALIDATION error from a field map.
func Validation(fields map[string]string) error {
	return &Error{Code: CodeValidation, Message: "Validation failed!", Fields: fields}
}

// Field is shorthand for a single-field validation failure.
func Field(name, msg string) error {
	return Validation(map[string]string{name: msg})
}

// CodeOf returns the code carried by err, or CodeInternal for untagged errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// FieldsOf returns validation details, if any.
func FieldsOf(err error) map[string]string {
	var e *Error
	if errors.As(err, &e) {
		return e.Fields
	}
	return nil
}
