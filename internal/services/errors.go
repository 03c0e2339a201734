package services

import (
	"context"
	"errors"
	"strings"
)

// Failure markers. Every error returned by Wrap matches exactly one of them
// under errors.Is.
var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// StageError records where in the drop pipeline a failure happened.
type StageError struct {
	Marker    error
	Stage     string
	Operation string
	Message   string
	Err       error
}

func (e *StageError) Error() string {
	var b strings.Builder
	if e.Marker != nil {
		b.WriteString(e.Marker.Error())
		b.WriteString(": ")
	}
	b.WriteString(e.detail())
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *StageError) Unwrap() []error {
	var errs []error
	for _, err := range []error{e.Marker, e.Err} {
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func (e *StageError) detail() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{e.Stage, e.Operation, e.Message} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

// Wrap tags err with a failure marker and the stage and operation that
// produced it. A nil marker means ErrTransient; a nil err is allowed.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	return &StageError{Marker: marker, Stage: stage, Operation: operation, Message: message, Err: err}
}

var failureKinds = []struct {
	marker error
	kind   string
}{
	{ErrValidation, "validation"},
	{ErrConfiguration, "configuration"},
	{ErrNotFound, "not-found"},
	{ErrExternalTool, "external-tool"},
	{ErrTimeout, "timeout"},
	{context.DeadlineExceeded, "timeout"},
}

// FailureKind returns the short label written into a report when a stage
// degrades instead of failing the drop.
func FailureKind(err error) string {
	if err == nil {
		return ""
	}
	for _, fk := range failureKinds {
		if errors.Is(err, fk.marker) {
			return fk.kind
		}
	}
	return "transient"
}
