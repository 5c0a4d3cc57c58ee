package tracing

import (
	"context"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_NoEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	initOnce = sync.Once{}
	tracer = nil
	tp = nil
	isEnabled = false

	require.NoError(t, Init(context.Background(), "test"))
	assert.False(t, IsEnabled())
	assert.NotNil(t, Tracer())
	assert.NoError(t, Shutdown(context.Background()))
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxLen   int
		expected string
	}{
		{"short ASCII", "hello", 10, "hello"},
		{"truncate ASCII", "hello world", 5, "hello..."},
		{"empty string", "", 5, ""},
		{"exact length", "abc", 3, "abc"},
		{"multi-byte boundary", "héllo", 2, "h..."},
		{"multi-byte fits", "héllo", 3, "hé..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Truncate(tt.input, tt.maxLen))
		})
	}
}

func TestSanitizeUTF8(t *testing.T) {
	for _, input := range []string{"hello", "héllo", "hello\x80world", "\xff\xfe"} {
		assert.True(t, utf8.ValidString(SanitizeUTF8(input)), "input %q", input)
	}
	assert.Equal(t, "a�b", SanitizeUTF8("a\x80b"))
}
