package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"openbuckets/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "search-directories", "rg", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"search-directories", "rg", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err)
	}
}

func TestWrapExposesStage(t *testing.T) {
	err := fmt.Errorf("handle drop: %w", services.Wrap(services.ErrNotFound, "read-dropped-file", "stat", "/tmp/x", nil))
	var se *services.StageError
	if !errors.As(err, &se) {
		t.Fatalf("expected StageError in chain, got %T", err)
	}
	if se.Stage != "read-dropped-file" || se.Operation != "stat" {
		t.Fatalf("unexpected stage error %+v", se)
	}
	if got := se.Error(); got != "not found: read-dropped-file: stat: /tmp/x" {
		t.Fatalf("Error() = %q", got)
	}
}

func TestFailureKindMapping(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{services.Wrap(services.ErrValidation, "read-dropped-file", "stat", "not a file", nil), "validation"},
		{services.Wrap(services.ErrConfiguration, "resolve", "parse", "bad toml", nil), "configuration"},
		{services.Wrap(services.ErrNotFound, "read-dropped-file", "stat", "gone", nil), "not-found"},
		{services.Wrap(services.ErrExternalTool, "search-directories", "grep", "exit 2", nil), "external-tool"},
		{services.Wrap(services.ErrTimeout, "search-directories", "rg", "slow", nil), "timeout"},
		{context.DeadlineExceeded, "timeout"},
		{errors.New("io"), "transient"},
	}
	for _, tc := range cases {
		if got := services.FailureKind(tc.err); got != tc.want {
			t.Fatalf("FailureKind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
