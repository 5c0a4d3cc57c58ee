// Package tracing provides OpenTelemetry-based observability for store round-trips.
// Export is enabled at runtime when OTEL_EXPORTER_OTLP_ENDPOINT is set; otherwise
// a noop tracer is used.
package tracing

import (
	"context"
	"os"
	"strings"
	"sync"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "megatable"

var (
	tracer    trace.Tracer
	tp        *sdktrace.TracerProvider
	initOnce  sync.Once
	isEnabled bool
)

// Init initializes tracing by detecting environment variables at runtime.
func Init(ctx context.Context, version string) error {
	var initErr error
	initOnce.Do(func() {
		initErr = initFromEnv(ctx, version)
	})
	return initErr
}

func initFromEnv(ctx context.Context, version string) error {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		tracer = otel.Tracer(instrumentationName)
		isEnabled = false
		return nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpoint))
	if err != nil {
		return err
	}

	tp = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(instrumentationName),
			semconv.ServiceVersion(version),
		)),
	)

	otel.SetTracerProvider(tp)
	tracer = tp.Tracer(instrumentationName)
	isEnabled = true

	return nil
}

// Tracer returns the configured tracer instance.
// Safe to call before Init - returns the global (noop by default) tracer.
func Tracer() trace.Tracer {
	if tracer == nil {
		return otel.Tracer(instrumentationName)
	}
	return tracer
}

// IsEnabled returns whether spans are being exported.
func IsEnabled() bool {
	return isEnabled
}

// Shutdown flushes pending spans. Call before process exit.
func Shutdown(ctx context.Context) error {
	if tp != nil {
		return tp.Shutdown(ctx)
	}
	return nil
}

// Truncate truncates s to at most maxLen bytes on a rune boundary, appending "..."
// when anything was cut. Invalid UTF-8 is replaced first, as OTLP requires valid strings.
func Truncate(s string, maxLen int) string {
	s = SanitizeUTF8(s)
	if len(s) <= maxLen {
		return s
	}
	truncated := make([]byte, 0, maxLen)
	for _, r := range s {
		if len(truncated)+utf8.RuneLen(r) > maxLen {
			break
		}
		truncated = utf8.AppendRune(truncated, r)
	}
	return string(truncated) + "..."
}

// SanitizeUTF8 replaces invalid UTF-8 bytes with the Unicode replacement character.
func SanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "�")
}
