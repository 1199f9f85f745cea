package models

import (
	"errors"
	"fmt"
)

var (
	// ErrCreationInProgress is matched by CreationInProgressError
	ErrCreationInProgress = errors.New("article creation in progress")
	// ErrDailyLimitExceeded carries the patron-facing quota message
	ErrDailyLimitExceeded = errors.New("We're sorry, our archivists are currently off the clock. Please come back tomorrow.")
	// ErrProviderMisconfigured means the content provider has no usable credentials
	ErrProviderMisconfigured = errors.New("content provider is not configured")
	// ErrGenerationFailed covers transport failures and empty or malformed provider output
	ErrGenerationFailed = errors.New("content generation failed")
	// ErrInvalidInput is returned for empty topics, queries and malformed payloads
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound is returned when a requested article does not exist
	ErrNotFound = errors.New("not found")
)

// CreationInProgressError reports the lock held by another request
type CreationInProgressError struct {
	Slug  string
	Title string
}

func (e *CreationInProgressError) Error() string {
	return fmt.Sprintf("Article creation in progress for %s (%s)", e.Title, e.Slug)
}

// Is makes errors.Is(err, ErrCreationInProgress) hold
func (e *CreationInProgressError) Is(target error) bool {
	return target == ErrCreationInProgress
}
