package composer

import (
	"errors"
	"fmt"
)

var (
	ErrSubmissionInProgress = errors.New("a submission is already in progress")
	ErrUnsupportedImage     = errors.New("selected file is not an image")
	ErrImageTooLarge        = errors.New("selected image is too large")
	ErrRateLimited          = errors.New("too many submissions")
)

// ValidationError is returned by Submit when the draft is refused locally.
// A refused draft never reaches the creation operation and the surface is left as is.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid post: " + e.Reason
}

// SubmissionError is reported when the creation operation rejects a submitted draft.
type SubmissionError struct {
	SubmissionID string
	Err          error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submission %s failed: %v", e.SubmissionID, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}
