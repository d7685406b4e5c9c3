package domain

import (
	"errors"
	"fmt"
)

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionClosed      = errors.New("session closed")
	ErrInstanceNotFound   = errors.New("overlay instance not found")
	ErrInstanceNotVisible = errors.New("overlay instance is not visible")
	ErrInstanceBusy       = errors.New("overlay instance is busy")
	ErrSubmissionInFlight = errors.New("submission already in flight")
	ErrAlreadyCompleted   = errors.New("capture already completed")
	ErrNoCaptureOverlay   = errors.New("no capture overlay is live")
	ErrOverlayNotActive   = errors.New("overlay is not active in this session")
	ErrLoadInFlight       = errors.New("load already in flight")
	ErrSubscribeRejected  = errors.New("subscription rejected")
	ErrIssueRejected      = errors.New("coupon issuance rejected")
)

// LoadError reports a failed catalog or sales read. Sessions degrade to "no instance".
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// ValidationError reports malformed user input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
