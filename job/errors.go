package job

import (
	"errors"
	"fmt"
)

// Kind classifies why a job failed.
type Kind int

const (
	KindMissingInput Kind = iota + 1
	KindEncodeFailed
	KindOutputTooLarge
	KindUploadFailed
	KindUnexpected
)

func (k Kind) String() string {
	switch k {
	case KindMissingInput:
		return "missing_input"
	case KindEncodeFailed:
		return "encode_failed"
	case KindOutputTooLarge:
		return "output_too_large"
	case KindUploadFailed:
		return "upload_failed"
	case KindUnexpected:
		return "unexpected"
	default:
		return "unknown"
	}
}

// Error is the failure of a single job. It never affects other jobs.
type Error struct {
	Kind    Kind
	Reason  string
	Size    int64 // OutputTooLarge only
	Ceiling int64 // OutputTooLarge only
	Err     error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindMissingInput:
		return "No video file provided"
	case KindEncodeFailed:
		return "encoding failed: " + e.Reason
	case KindOutputTooLarge:
		return fmt.Sprintf("compressed video is still too large: %s exceeds the %s limit (%d > %d bytes)",
			formatMB(e.Size), formatMB(e.Ceiling), e.Size, e.Ceiling)
	case KindUploadFailed:
		return "upload failed: " + e.Reason
	default:
		return e.Reason
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrMissingInput is returned before a job exists when the request carries no file.
var ErrMissingInput = &Error{Kind: KindMissingInput}

func encodeFailed(err error) *Error {
	return &Error{Kind: KindEncodeFailed, Reason: err.Error(), Err: err}
}

func outputTooLarge(size, ceiling int64) *Error {
	return &Error{Kind: KindOutputTooLarge, Size: size, Ceiling: ceiling}
}

func uploadFailed(err error) *Error {
	return &Error{Kind: KindUploadFailed, Reason: err.Error(), Err: err}
}

func unexpected(format string, args ...interface{}) *Error {
	err := fmt.Errorf(format, args...)
	return &Error{Kind: KindUnexpected, Reason: err.Error(), Err: errors.Unwrap(err)}
}

// KindOf returns the Kind of a job error, KindUnexpected for anything else.
func KindOf(err error) Kind {
	var jobErr *Error
	if errors.As(err, &jobErr) {
		return jobErr.Kind
	}
	return KindUnexpected
}
