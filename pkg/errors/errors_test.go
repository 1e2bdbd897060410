package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeInvalidFilter, "unknown category: %s", "cobol")

	if err.Code != ErrCodeInvalidFilter {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeInvalidFilter)
	}
	if err.Message != "unknown category: cobol" {
		t.Errorf("Message = %v", err.Message)
	}
	expected := "INVALID_FILTER: unknown category: cobol"
	if err.Error() != expected {
		t.Errorf("Error() = %v, want %v", err.Error(), expected)
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("unexpected EOF")
	err := Wrap(ErrCodeDetectorFailed, cause, "npm on package.json")

	if err.Cause != cause {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if errors.Unwrap(err) != cause {
		t.Error("Unwrap() did not return cause")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     Code
		expected bool
	}{
		{"matching code", New(ErrCodeInvalidPath, "x"), ErrCodeInvalidPath, true},
		{"different code", New(ErrCodeInvalidPath, "x"), ErrCodeInvalidFilter, false},
		{"wrapped by fmt", fmt.Errorf("scan: %w", New(ErrCodeCanceled, "x")), ErrCodeCanceled, true},
		{"plain error", errors.New("x"), ErrCodeInternal, false},
		{"nil", nil, ErrCodeInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.expected {
				t.Errorf("Is() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestGetCodeAndUserMessage(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(ErrCodeNoDetectors, "no detector matched"))
	if got := GetCode(err); got != ErrCodeNoDetectors {
		t.Errorf("GetCode() = %v", got)
	}
	if got := UserMessage(err); got != "no detector matched" {
		t.Errorf("UserMessage() = %q", got)
	}
	if got := GetCode(errors.New("x")); got != "" {
		t.Errorf("GetCode(plain) = %q, want empty", got)
	}
	if got := UserMessage(errors.New("plain")); got != "plain" {
		t.Errorf("UserMessage(plain) = %q", got)
	}
}

func TestFatal(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{New(ErrCodeDetectorFailed, "x"), false},
		{New(ErrCodeDetectorTimeout, "x"), false},
		{New(ErrCodeCanceled, "x"), true},
		{New(ErrCodeInvalidFilter, "x"), true},
		{errors.New("x"), true},
	}
	for _, tt := range tests {
		if got := Fatal(tt.err); got != tt.want {
			t.Errorf("Fatal(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
