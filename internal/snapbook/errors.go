package snapbook

import "errors"

var (
	// ErrNotFound is returned when a participant does not exist.
	ErrNotFound = errors.New("not found")
	// ErrSubmissionsClosed is returned for registrations and captures while
	// the admin has submissions closed.
	ErrSubmissionsClosed = errors.New("submissions are closed")
	// ErrPhotoLimit is returned when a participant already has every photo.
	ErrPhotoLimit = errors.New("photo limit reached")
	// ErrYearbookNotReady is returned until the admin generates the yearbook.
	ErrYearbookNotReady = errors.New("yearbook not generated")
	// ErrInvalidInput wraps validation failures.
	ErrInvalidInput = errors.New("invalid input")
)
