package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	sentinel := New(CodeNotFound, "record not found")
	other := New(CodeNotFound, "meeting missing")

	if !stderrors.Is(other, sentinel) {
		t.Fatal("expected errors with the same code to match")
	}
	if stderrors.Is(New(CodeVersionConflict, "conflict"), sentinel) {
		t.Fatal("expected different codes not to match")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := Wrap(CodeUnknown, "append event", cause)

	if !stderrors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be reachable")
	}
	if err.Error() != "append event: disk full" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestGetCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{name: "direct", err: New(CodeInvalidArgument, "bad"), want: CodeInvalidArgument},
		{name: "wrapped", err: fmt.Errorf("outer: %w", New(CodeNotFound, "missing")), want: CodeNotFound},
		{name: "plain", err: fmt.Errorf("plain"), want: CodeUnknown},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := GetCode(tc.err); got != tc.want {
				t.Fatalf("GetCode = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestRetryable(t *testing.T) {
	if !CodeVersionConflict.Retryable() {
		t.Fatal("expected version conflict to be retryable")
	}
	if CodeNotFound.Retryable() {
		t.Fatal("expected not found to be terminal")
	}
}
