package requestid

import (
	"context"
	"testing"
)

func TestFromContext(t *testing.T) {
	tests := []struct {
		name     string
		ctx      context.Context
		expected string
	}{
		{"set", NewContext(context.Background(), "abc-123"), "abc-123"},
		{"missing", context.Background(), "-"},
		{"empty", NewContext(context.Background(), ""), "-"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := FromContext(tc.ctx); got != tc.expected {
				t.Errorf("Expected %q, got %q", tc.expected, got)
			}
		})
	}
}
