package logging

import (
	"context"
	"log/slog"
	"time"
)

// Attr aliases slog.Attr so callers only import this package.
type Attr = slog.Attr

func Bool(key string, value bool) Attr { return slog.Bool(key, value) }

func Duration(key string, value time.Duration) Attr { return slog.Duration(key, value) }

func Float64(key string, value float64) Attr { return slog.Float64(key, value) }

func Int(key string, value int) Attr { return slog.Int(key, value) }

func Int64(key string, value int64) Attr { return slog.Int64(key, value) }

func String(key string, value string) Attr { return slog.String(key, value) }

// Alert marks a record that should stand out when filtering logs.
func Alert(value string) Attr { return slog.String(FieldAlert, value) }

// Plan tags a record with a plan path.
func Plan(path string) Attr { return slog.String(FieldPlan, path) }

// Agent tags a record with an agent name.
func Agent(name string) Attr { return slog.String(FieldAgent, name) }

// AuditID tags a record with an audit run id.
func AuditID(id string) Attr { return slog.String(FieldAuditID, id) }

func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.String("error", err.Error())
}

// NewNop returns a logger that discards everything.
func NewNop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// NewComponentLogger tags every record with component. A nil logger yields
// a no-op logger.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(slog.String(FieldComponent, component))
}

// HasAttrKey reports whether any attribute in attrs uses key.
func HasAttrKey(attrs []Attr, key string) bool {
	for _, a := range attrs {
		if a.Key == key {
			return true
		}
	}
	return false
}

// WarnWithContext logs a warning that always carries event_type, error_hint,
// and impact; missing fields get defaults.
func WarnWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	logEnforced(logger, slog.LevelWarn, msg, eventType, attrs, map[string]string{
		FieldErrorHint: "check logs for details",
		FieldImpact:    "operation completed with warnings",
	})
}

// ErrorWithContext logs an error that always carries event_type and error_hint.
func ErrorWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	logEnforced(logger, slog.LevelError, msg, eventType, attrs, map[string]string{
		FieldErrorHint: "check logs for details",
	})
}

func logEnforced(logger *slog.Logger, level slog.Level, msg, eventType string, attrs []Attr, defaults map[string]string) {
	if logger == nil {
		return
	}
	out := make([]Attr, 0, len(attrs)+len(defaults)+1)
	out = append(out, attrs...)
	if !HasAttrKey(attrs, FieldEventType) {
		out = append(out, slog.String(FieldEventType, eventType))
	}
	for _, key := range []string{FieldErrorHint, FieldImpact} {
		if value, ok := defaults[key]; ok && !HasAttrKey(attrs, key) {
			out = append(out, slog.String(key, value))
		}
	}
	logger.LogAttrs(context.Background(), level, msg, out...)
}
