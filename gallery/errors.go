package gallery

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoFile reports a missing filename or empty upload body.
	ErrNoFile = errors.New("no file provided")
	// ErrMissingID reports a delete request without an image id.
	ErrMissingID = errors.New("image id is required")
	ErrNotFound  = errors.New("image not found")
	// ErrAccessDenied reports a serve request whose signed URL is missing,
	// tampered with or expired.
	ErrAccessDenied = errors.New("access denied")

	ErrUploadFailed = errors.New("upload failed")
	ErrDeleteFailed = errors.New("delete failed")
	ErrListFailed   = errors.New("listing images failed")
)

// Stage names one write of the upload pipeline.
type Stage string

const (
	StageImage   Stage = "image"
	StageSidecar Stage = "sidecar"
	StageRecord  Stage = "record"
)

// UploadError is returned when a write of the upload pipeline fails. Writes
// that already succeeded are not undone: Written lists them so the caller
// knows which artifacts may now be orphaned.
type UploadError struct {
	BlobName string
	Stage    Stage
	Written  []Stage
	Err      error
}

func (e *UploadError) Error() string {
	msg := fmt.Sprintf("upload %s: %s write failed: %v", e.BlobName, e.Stage, e.Err)
	if len(e.Written) > 0 {
		parts := make([]string, len(e.Written))
		for i, s := range e.Written {
			parts[i] = string(s)
		}
		msg += " (already written: " + strings.Join(parts, ", ") + ")"
	}
	return msg
}

func (e *UploadError) Unwrap() []error {
	return []error{ErrUploadFailed, e.Err}
}

// Partial reports whether some artifacts were written before the failure.
func (e *UploadError) Partial() bool {
	return len(e.Written) > 0
}

// DeleteError is returned when removing an artifact fails. The record is
// kept whenever an object could not be removed.
type DeleteError struct {
	ID  string
	Key string
	Err error
}

func (e *DeleteError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("delete image %s: object %s: %v", e.ID, e.Key, e.Err)
	}
	return fmt.Sprintf("delete image %s: record: %v", e.ID, e.Err)
}

func (e *DeleteError) Unwrap() []error {
	return []error{ErrDeleteFailed, e.Err}
}
