// Package errors defines the structured error type shared by every stitch
// component. Errors carry a category, a stable code, an optional cause and
// the file location they relate to, and compare with errors.Is by category
// and code so callers can test against the exported sentinels.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeFormat     ErrorType = "format"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeBuild      ErrorType = "build"
	ErrorTypeConfig     ErrorType = "config"
)

// StitchError is a structured error type with context.
type StitchError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	FilePath    string
	Line        int
	Recoverable bool
}

// Error implements the error interface.
func (e *StitchError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.FilePath != "" {
		location := e.FilePath
		if e.Line > 0 {
			location += fmt.Sprintf(":%d", e.Line)
		}
		parts = append(parts, location)
	}

	if e.Message != "" {
		parts = append(parts, e.Message)
	}

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *StitchError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *StitchError) Is(target error) bool {
	var t *StitchError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *StitchError) WithContext(key string, value interface{}) *StitchError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithLocation adds file location information.
func (e *StitchError) WithLocation(filePath string, line int) *StitchError {
	e.FilePath = filePath
	e.Line = line

	return e
}

// Error creation functions

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *StitchError {
	return &StitchError{
		Type:        ErrorTypeValidation,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewFormatError creates an error for fragments no handler can process.
func NewFormatError(code, message string) *StitchError {
	return &StitchError{
		Type:        ErrorTypeFormat,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewBuildError creates a build error.
func NewBuildError(code, message string, cause error) *StitchError {
	return &StitchError{
		Type:        ErrorTypeBuild,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *StitchError {
	return &StitchError{
		Type:        ErrorTypeIO,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *StitchError {
	return &StitchError{
		Type:        ErrorTypeConfig,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var te *StitchError
	if errors.As(err, &te) {
		return te.Recoverable
	}

	return false
}

// Common error codes.
const (
	ErrCodeUnknownFormat      = "ERR_UNKNOWN_FORMAT"
	ErrCodeFragmentIO         = "ERR_FRAGMENT_IO"
	ErrCodeTemplateIO         = "ERR_TEMPLATE_IO"
	ErrCodeOutputIO           = "ERR_OUTPUT_IO"
	ErrCodeMalformedDirective = "ERR_MALFORMED_DIRECTIVE"
	ErrCodeConfigInvalid      = "ERR_CONFIG_INVALID"
	ErrCodeValidationFailed   = "ERR_VALIDATION_FAILED"
	ErrCodeRebuildFailed      = "ERR_REBUILD_FAILED"
)

// Sentinels for errors.Is. Only Type and Code take part in the comparison.
var (
	ErrUnknownFormat      = &StitchError{Type: ErrorTypeFormat, Code: ErrCodeUnknownFormat}
	ErrFragmentIO         = &StitchError{Type: ErrorTypeIO, Code: ErrCodeFragmentIO}
	ErrTemplateIO         = &StitchError{Type: ErrorTypeIO, Code: ErrCodeTemplateIO}
	ErrOutputIO           = &StitchError{Type: ErrorTypeIO, Code: ErrCodeOutputIO}
	ErrMalformedDirective = &StitchError{Type: ErrorTypeValidation, Code: ErrCodeMalformedDirective}
	ErrConfigInvalid      = &StitchError{Type: ErrorTypeConfig, Code: ErrCodeConfigInvalid}
)

// ValidationError interface for field-specific validation errors.
type ValidationError interface {
	error
	Field() string
	Value() interface{}
	Message() string
	Suggestions() []string
}

// FieldValidationError implements ValidationError for specific field errors.
type FieldValidationError struct {
	FieldName    string
	FieldValue   interface{}
	ErrorMessage string
	HelpText     []string
}

// Error implements the error interface.
func (fve *FieldValidationError) Error() string {
	return fmt.Sprintf("validation error in field '%s': %s", fve.FieldName, fve.ErrorMessage)
}

// Field returns the field name that failed validation.
func (fve *FieldValidationError) Field() string {
	return fve.FieldName
}

// Value returns the invalid value.
func (fve *FieldValidationError) Value() interface{} {
	return fve.FieldValue
}

// Message returns the problem without the field name.
func (fve *FieldValidationError) Message() string {
	return fve.ErrorMessage
}

// Suggestions returns helpful suggestions for fixing the error.
func (fve *FieldValidationError) Suggestions() []string {
	return fve.HelpText
}

// NewFieldValidationError creates a new field validation error.
func NewFieldValidationError(
	field string,
	value interface{},
	message string,
	suggestions ...string,
) *FieldValidationError {
	return &FieldValidationError{
		FieldName:    field,
		FieldValue:   value,
		ErrorMessage: message,
		HelpText:     suggestions,
	}
}

// ValidationErrorCollection represents a collection of validation errors.
type ValidationErrorCollection struct {
	Errors []ValidationError
}

// Error implements the error interface.
func (vec *ValidationErrorCollection) Error() string {
	if len(vec.Errors) == 0 {
		return "no validation errors"
	}
	if len(vec.Errors) == 1 {
		return vec.Errors[0].Error()
	}

	messages := make([]string, len(vec.Errors))
	for i, err := range vec.Errors {
		messages[i] = err.Error()
	}
	return fmt.Sprintf("validation failed with %d errors: %s", len(vec.Errors), strings.Join(messages, "; "))
}

// Add adds a validation error to the collection.
func (vec *ValidationErrorCollection) Add(err ValidationError) {
	vec.Errors = append(vec.Errors, err)
}

// AddField adds a field validation error to the collection.
func (vec *ValidationErrorCollection) AddField(
	field string,
	value interface{},
	message string,
	suggestions ...string,
) {
	vec.Add(NewFieldValidationError(field, value, message, suggestions...))
}

// HasErrors returns true if there are any validation errors.
func (vec *ValidationErrorCollection) HasErrors() bool {
	return len(vec.Errors) > 0
}

// ToStitchError converts the validation collection to a StitchError with
// the config-invalid code. The collection stays reachable through
// errors.As for callers that list every problem.
func (vec *ValidationErrorCollection) ToStitchError() *StitchError {
	if !vec.HasErrors() {
		return nil
	}

	fields := make(map[string]interface{})
	for _, err := range vec.Errors {
		values, _ := fields[err.Field()].([]interface{})
		fields[err.Field()] = append(values, err.Value())
	}

	return &StitchError{
		Type:        ErrorTypeConfig,
		Code:        ErrCodeConfigInvalid,
		Message:     "invalid configuration",
		Cause:       vec,
		Context:     fields,
		Recoverable: false,
	}
}

// Helper functions for common errors

// ErrUnknownFormatFor reports that neither the explicit tag nor the
// extension chain of path selects a handler.
func ErrUnknownFormatFor(tag, path string) *StitchError {
	return NewFormatError(ErrCodeUnknownFormat, fmt.Sprintf("unknown format %q", tag)).
		WithLocation(path, 0).
		WithContext("format", tag)
}

// ErrFragmentRead reports a fragment that could not be read.
func ErrFragmentRead(path string, cause error) *StitchError {
	return NewIOError(ErrCodeFragmentIO, "cannot read fragment", cause).WithLocation(path, 0)
}

// ErrTemplateRead reports a template that could not be opened or read.
func ErrTemplateRead(path string, cause error) *StitchError {
	return NewIOError(ErrCodeTemplateIO, "cannot read template", cause).WithLocation(path, 0)
}

// ErrOutputWrite reports an output file that could not be written.
func ErrOutputWrite(path string, cause error) *StitchError {
	return NewIOError(ErrCodeOutputIO, "cannot write output", cause).WithLocation(path, 0)
}

// ErrMalformedDirectiveAt reports a rejected directive line.
func ErrMalformedDirectiveAt(path string, line int, reason string) *StitchError {
	return NewValidationError(ErrCodeMalformedDirective, "malformed directive: "+reason).
		WithLocation(path, line)
}
