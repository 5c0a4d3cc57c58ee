package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ConfigurationError reports missing endpoint or credential settings.
// It is fatal and never retried.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return "missing database configuration: " + strings.Join(e.Missing, ", ")
}

// RemoteQueryError carries an error message reported by the SQL engine itself.
type RemoteQueryError struct {
	Message string
}

func (e *RemoteQueryError) Error() string {
	return "remote query failed: " + e.Message
}

// TransportError is a network or HTTP-level failure talking to the engine.
type TransportError struct {
	StatusCode int    // 0 when no response was received
	Body       string // truncated response body, if any
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		if e.Err != nil {
			return "store transport: " + e.Err.Error()
		}
		return "store transport error"
	}
	msg := fmt.Sprintf("store http error: %d", e.StatusCode)
	if e.Body != "" {
		msg += " - " + e.Body
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is a transient store failure worth retrying.
// Remote query errors and transport errors are; configuration errors and
// caller cancellation are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var cfgErr *ConfigurationError
	if errors.As(err, &cfgErr) {
		return false
	}
	var remoteErr *RemoteQueryError
	var transportErr *TransportError
	return errors.As(err, &remoteErr) || errors.As(err, &transportErr)
}
