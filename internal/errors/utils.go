package errors

import (
	"errors"
)

// Wrap wraps an error with additional context, creating a StitchError if the input is not already one
func Wrap(err error, errType ErrorType, code, message string) *StitchError {
	if err == nil {
		return nil
	}

	// Keep the location of an inner StitchError so the outer message still points at the file.
	var se *StitchError
	if errors.As(err, &se) {
		return &StitchError{
			Type:        errType,
			Code:        code,
			Message:     message,
			Cause:       se,
			Context:     se.Context,
			FilePath:    se.FilePath,
			Line:        se.Line,
			Recoverable: se.Recoverable,
		}
	}

	return &StitchError{
		Type:        errType,
		Code:        code,
		Message:     message,
		Cause:       err,
		Recoverable: errType == ErrorTypeValidation,
	}
}

// WrapBuild wraps an error as a build error
func WrapBuild(err error, code, message string) *StitchError {
	return Wrap(err, ErrorTypeBuild, code, message)
}

// WrapIO wraps an error as an I/O error
func WrapIO(err error, code, message string) *StitchError {
	se := Wrap(err, ErrorTypeIO, code, message)
	if se != nil {
		se.Recoverable = false
	}
	return se
}

// Code returns the code of the first StitchError in err's chain, or the
// empty string when there is none.
func Code(err error) string {
	var se *StitchError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}
