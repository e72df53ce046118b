// Package errors defines the pipeline error taxonomy. Structural problems
// with the source package are fatal; everything else is either normalized to
// an absent value or recorded in the data-quality log.
package errors

import (
	"errors"
	"fmt"
)

// Error codes for fatal pipeline failures.
const (
	CodeMissingPart         = "MISSING_PACKAGE_PART"
	CodeMissingRelationship = "MISSING_RELATIONSHIP"
	CodeMissingSheet        = "MISSING_SHEET"
	CodeMalformedPart       = "MALFORMED_PACKAGE_PART"
)

// FormatError reports a structurally invalid workbook package. It aborts the
// run; there is no retry path.
type FormatError struct {
	Code    string
	Part    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *FormatError) Error() string {
	if e.Part != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Part)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause, if any.
func (e *FormatError) Unwrap() error {
	return e.Err
}

// NewFormatError creates a FormatError with the given code and part.
func NewFormatError(code, part, message string) *FormatError {
	return &FormatError{Code: code, Part: part, Message: message}
}

// MissingPart reports an absent mandatory package part such as the workbook
// manifest or the relationship map.
func MissingPart(part string) *FormatError {
	return NewFormatError(CodeMissingPart, part, "required package part is missing")
}

// MissingRelationship reports a sheet whose relationship id has no target in
// the relationship map.
func MissingRelationship(rid string) *FormatError {
	return NewFormatError(CodeMissingRelationship, rid, "relationship id has no target")
}

// MissingSheet reports a workbook manifest that declares no worksheets.
func MissingSheet() *FormatError {
	return NewFormatError(CodeMissingSheet, "xl/workbook.xml", "workbook declares no worksheets")
}

// MalformedPart wraps an XML decode failure for a package part.
func MalformedPart(part string, err error) *FormatError {
	return &FormatError{
		Code:    CodeMalformedPart,
		Part:    part,
		Message: "failed to decode package part",
		Err:     err,
	}
}

// IsFormatError reports whether err is (or wraps) a FormatError.
func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}
