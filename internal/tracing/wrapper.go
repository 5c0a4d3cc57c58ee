package tracing

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Zerofisher/megatable/pkg/store"
)

const maxStatementLen = 256

// TracedExecutor wraps a store.Executor with a client span per statement.
type TracedExecutor struct {
	exec store.Executor
}

// WrapExecutor wraps exec with tracing.
// If tracing is not enabled, returns exec unchanged.
func WrapExecutor(exec store.Executor) store.Executor {
	if !isEnabled {
		return exec
	}
	return &TracedExecutor{exec: exec}
}

// Execute implements store.Executor with tracing.
func (t *TracedExecutor) Execute(ctx context.Context, sql string, args ...any) (*store.Result, error) {
	ctx, span := Tracer().Start(ctx, "store."+operation(sql),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "sqlite"),
		attribute.String("db.operation", operation(sql)),
		attribute.String("db.statement", Truncate(sql, maxStatementLen)),
		attribute.Int("db.params", len(args)),
	)

	res, err := t.exec.Execute(ctx, sql, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, SanitizeUTF8(err.Error()))
		return nil, err
	}

	span.SetAttributes(attribute.Int("db.rows", len(res.Rows)))
	span.SetStatus(codes.Ok, "")
	return res, nil
}

// operation returns the lowercased leading SQL keyword, e.g. "select".
func operation(sql string) string {
	sql = strings.TrimSpace(sql)
	if i := strings.IndexAny(sql, " \t\n("); i > 0 {
		sql = sql[:i]
	}
	if sql == "" {
		return "execute"
	}
	return strings.ToLower(sql)
}
