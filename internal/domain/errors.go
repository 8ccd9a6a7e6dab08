package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrValidation          = errors.New("validation error")
	ErrDuplicateIdentifier = errors.New("kyc application with this id number already exists")
	ErrInvalidState        = errors.New("application is not pending review")
	ErrUpload              = errors.New("file upload error")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrPersistence         = errors.New("persistence error")
)

// FieldError is a validation failure tied to one input field.
type FieldError struct {
	Field  string
	Reason string
}

func NewFieldError(field, reason string) *FieldError {
	return &FieldError{Field: field, Reason: reason}
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Reason
}

func (e *FieldError) Unwrap() error { return ErrValidation }

// UploadError describes why a document was refused.
type UploadError struct {
	Field  string
	Reason string
}

func (e *UploadError) Error() string {
	if e.Field == "" {
		return "file upload error: " + e.Reason
	}
	return "file upload error (" + e.Field + "): " + e.Reason
}

func (e *UploadError) Unwrap() error { return ErrUpload }
