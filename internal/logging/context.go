package logging

import (
	"context"
	"log/slog"
)

// Standard attribute keys shared by every component.
const (
	FieldComponent = "component"
	FieldAuditID   = "audit_id"
	FieldPlan      = "plan"
	FieldAgent     = "agent"
	// FieldEventType classifies a record for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to try next.
	FieldErrorHint = "error_hint"
	// FieldImpact states the user-facing consequence of a warning.
	FieldImpact = "impact"
	FieldAlert  = "alert"
)

type contextKey struct{ name string }

var (
	auditIDKey = contextKey{FieldAuditID}
	planKey    = contextKey{FieldPlan}
	agentKey   = contextKey{FieldAgent}
)

// WithAuditID stores an audit run identifier on the context.
func WithAuditID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, auditIDKey, id)
}

// WithPlan stores a plan path on the context.
func WithPlan(ctx context.Context, plan string) context.Context {
	return context.WithValue(ctx, planKey, plan)
}

// WithAgent stores an agent name on the context.
func WithAgent(ctx context.Context, agent string) context.Context {
	return context.WithValue(ctx, agentKey, agent)
}

// ContextFields returns the audit id, plan, and agent stored on ctx.
func ContextFields(ctx context.Context) []Attr {
	if ctx == nil {
		return nil
	}
	var fields []Attr
	for _, key := range []contextKey{auditIDKey, planKey, agentKey} {
		if value, ok := ctx.Value(key).(string); ok && value != "" {
			fields = append(fields, slog.String(key.name, value))
		}
	}
	return fields
}

// WithContext returns logger tagged with the fields stored on ctx.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	args := make([]any, len(fields))
	for i, f := range fields {
		args[i] = f
	}
	return logger.With(args...)
}
