package biz

import (
	"fmt"
)

// ValidationError reports invalid caller input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError creates a validation error for a field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// UnsupportedFileError reports an upload with a file type outside the
// allowlist.
type UnsupportedFileError struct {
	Filename  string
	Extension string
	Allowed   []string
}

func (e *UnsupportedFileError) Error() string {
	return fmt.Sprintf("unsupported file type %q for %q, allowed: %v", e.Extension, e.Filename, e.Allowed)
}

// ParseError reports a file that passed validation but could not be parsed.
type ParseError struct {
	Filename string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %q: %v", e.Filename, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// CollaboratorError reports a failure in a downstream dependency (vector
// store, embedding backend, chat backend, extraction service).
type CollaboratorError struct {
	Collaborator string
	Err          error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s: %v", e.Collaborator, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

// NewCollaboratorError wraps a downstream failure with the collaborator name.
func NewCollaboratorError(collaborator string, err error) *CollaboratorError {
	return &CollaboratorError{Collaborator: collaborator, Err: err}
}
