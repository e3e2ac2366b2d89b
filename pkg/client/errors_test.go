package client

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestAPIError_Error(t *testing.T) {
	t.Run("without wrapped error", func(t *testing.T) {
		err := &APIError{
			StatusCode: 500,
			ErrorClass: ErrorClassServer,
			Message:    "Internal Server Error",
		}

		msg := err.Error()
		if !strings.Contains(msg, "server") || !strings.Contains(msg, "500") {
			t.Errorf("Error() = %q, want class and status in message", msg)
		}
	})

	t.Run("with wrapped error", func(t *testing.T) {
		inner := fmt.Errorf("connection reset")
		err := &APIError{
			StatusCode: 502,
			ErrorClass: ErrorClassServer,
			Message:    "Bad Gateway",
			Err:        inner,
		}

		if !strings.Contains(err.Error(), "connection reset") {
			t.Errorf("Error() = %q, want wrapped error in message", err.Error())
		}
	})
}

func TestAPIError_Unwrap(t *testing.T) {
	inner := errors.New("underlying")
	err := &APIError{StatusCode: 500, Err: inner}

	if !errors.Is(err, inner) {
		t.Error("errors.Is should find the wrapped error")
	}

	var apiErr *APIError
	wrapped := fmt.Errorf("request failed: %w", err)
	if !errors.As(wrapped, &apiErr) {
		t.Error("errors.As should find the APIError")
	}
	if apiErr.StatusCode != 500 {
		t.Errorf("StatusCode = %d, want 500", apiErr.StatusCode)
	}
}

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		class ErrorClass
		want  bool
	}{
		{ErrorClassClient, false},
		{ErrorClassServer, true},
		{ErrorClassRateLimit, true},
		{ErrorClassNetwork, true},
		{ErrorClass(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.class), func(t *testing.T) {
			if got := shouldRetry(tt.class); got != tt.want {
				t.Errorf("shouldRetry(%q) = %v, want %v", tt.class, got, tt.want)
			}
		})
	}
}
