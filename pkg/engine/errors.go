package engine

import (
	"errors"
	"fmt"
)

// ErrorClass identifies which part of the bridge rejected a call.
type ErrorClass string

const (
	// ErrorClassParse indicates configuration text that could not be parsed.
	ErrorClassParse ErrorClass = "parse"

	// ErrorClassTypeMismatch indicates a value of the wrong shape, such as a
	// configuration root that is not a table.
	ErrorClassTypeMismatch ErrorClass = "type_mismatch"

	// ErrorClassMissingDriver indicates a compute request on an engine with no
	// driver handle bound.
	ErrorClassMissingDriver ErrorClass = "missing_driver"

	// ErrorClassDriverFailure indicates that the driver aborted or produced output
	// violating its contract.
	ErrorClassDriverFailure ErrorClass = "driver_failure"

	// ErrorClassOptimizerFailure indicates any failure raised by the external optimizer.
	ErrorClassOptimizerFailure ErrorClass = "optimizer_failure"

	// ErrorClassMarshaling indicates the host runtime refused to accept a converted value.
	ErrorClassMarshaling ErrorClass = "marshaling"

	// ErrorClassContract indicates a caller-side contract violation, such as a
	// coordinate slice whose length is not a multiple of 3.
	ErrorClassContract ErrorClass = "contract"

	// ErrorClassValidation indicates a recognized optimizer parameter outside its valid range.
	ErrorClassValidation ErrorClass = "validation"
)

// BridgeError represents a classified error with context.
type BridgeError struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is the error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Operation is the operation being performed when the error occurred.
	Operation string `json:"operation,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *BridgeError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Class, e.Message)
	if e.Operation != "" {
		msg = fmt.Sprintf("[%s] %s (operation=%s)", e.Class, e.Message, e.Operation)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *BridgeError) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
// A target without a code matches any error of the same class.
func (e *BridgeError) Is(target error) bool {
	t, ok := target.(*BridgeError)
	if !ok {
		return false
	}
	if e.Class != t.Class {
		return false
	}
	return t.Code == "" || e.Code == t.Code
}

func newError(class ErrorClass, code, message string, err error) *BridgeError {
	return &BridgeError{
		Class:   class,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewParseError creates a new parse error.
func NewParseError(message string, err error) *BridgeError {
	return newError(ErrorClassParse, ErrCodeParse, message, err)
}

// NewTypeMismatchError creates a new type mismatch error.
func NewTypeMismatchError(message string, err error) *BridgeError {
	return newError(ErrorClassTypeMismatch, ErrCodeTypeMismatch, message, err)
}

// NewMissingDriverError creates a new missing driver error.
func NewMissingDriverError(message string) *BridgeError {
	return newError(ErrorClassMissingDriver, ErrCodeMissingDriver, message, nil)
}

// NewDriverFailureError creates a new driver failure error.
func NewDriverFailureError(message string, err error) *BridgeError {
	return newError(ErrorClassDriverFailure, ErrCodeDriverFailed, message, err)
}

// NewOptimizerFailureError creates a new external optimizer failure error.
func NewOptimizerFailureError(message string, err error) *BridgeError {
	return newError(ErrorClassOptimizerFailure, ErrCodeOptimizerFailed, message, err)
}

// NewMarshalingError creates a new marshaling error.
func NewMarshalingError(message string, err error) *BridgeError {
	return newError(ErrorClassMarshaling, ErrCodeMarshaling, message, err)
}

// NewContractError creates a new contract violation error.
func NewContractError(message string, err error) *BridgeError {
	return newError(ErrorClassContract, ErrCodeContract, message, err)
}

// NewValidationError creates a new validation error.
func NewValidationError(message string, err error) *BridgeError {
	return newError(ErrorClassValidation, ErrCodeValidation, message, err)
}

// WithOperation adds operation context to an error.
func (e *BridgeError) WithOperation(operation string) *BridgeError {
	e.Operation = operation
	return e
}

// WithCode overrides the error code.
func (e *BridgeError) WithCode(code string) *BridgeError {
	e.Code = code
	return e
}

// WithDetail adds a detail field to the error context.
func (e *BridgeError) WithDetail(key string, value interface{}) *BridgeError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ClassOf returns the class of the first BridgeError in the chain, or "" if there is none.
func ClassOf(err error) ErrorClass {
	var e *BridgeError
	if errors.As(err, &e) {
		return e.Class
	}
	return ""
}

// IsParse returns true if the error is classified as a parse error.
func IsParse(err error) bool {
	return ClassOf(err) == ErrorClassParse
}

// IsTypeMismatch returns true if the error is classified as a type mismatch.
func IsTypeMismatch(err error) bool {
	return ClassOf(err) == ErrorClassTypeMismatch
}

// IsMissingDriver returns true if the error is classified as a missing driver.
func IsMissingDriver(err error) bool {
	return ClassOf(err) == ErrorClassMissingDriver
}

// IsDriverFailure returns true if the error is classified as a driver failure.
func IsDriverFailure(err error) bool {
	return ClassOf(err) == ErrorClassDriverFailure
}

// IsOptimizerFailure returns true if the error is classified as an optimizer failure.
func IsOptimizerFailure(err error) bool {
	return ClassOf(err) == ErrorClassOptimizerFailure
}

// IsMarshaling returns true if the error is classified as a marshaling failure.
func IsMarshaling(err error) bool {
	return ClassOf(err) == ErrorClassMarshaling
}

// IsContract returns true if the error is classified as a contract violation.
func IsContract(err error) bool {
	return ClassOf(err) == ErrorClassContract
}

// IsValidation returns true if the error is classified as a validation error.
func IsValidation(err error) bool {
	return ClassOf(err) == ErrorClassValidation
}

// Common error codes.
const (
	ErrCodeParse           = "PARSE_ERROR"
	ErrCodeTypeMismatch    = "TYPE_MISMATCH"
	ErrCodeMissingDriver   = "MISSING_DRIVER"
	ErrCodeDriverFailed    = "DRIVER_FAILED"
	ErrCodeDriverPanic     = "DRIVER_PANIC"
	ErrCodeOptimizerFailed = "OPTIMIZER_FAILED"
	ErrCodeMarshaling      = "MARSHALING_ERROR"
	ErrCodeContract        = "CONTRACT_VIOLATION"
	ErrCodeValidation      = "VALIDATION_ERROR"
)

// Sentinel errors for use with errors.Is. They match any error of the same class.
var (
	ErrParse            = &BridgeError{Class: ErrorClassParse}
	ErrTypeMismatch     = &BridgeError{Class: ErrorClassTypeMismatch}
	ErrMissingDriver    = &BridgeError{Class: ErrorClassMissingDriver}
	ErrDriverFailure    = &BridgeError{Class: ErrorClassDriverFailure}
	ErrOptimizerFailure = &BridgeError{Class: ErrorClassOptimizerFailure}
	ErrMarshaling       = &BridgeError{Class: ErrorClassMarshaling}
	ErrContract         = &BridgeError{Class: ErrorClassContract}
	ErrValidation       = &BridgeError{Class: ErrorClassValidation}
)
