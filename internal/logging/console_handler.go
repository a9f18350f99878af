package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

type consoleOptions struct {
	addSource bool
	color     bool
}

// consoleHandler writes one line per record:
//
//	2026-10-19T08:00:00Z INFO  [audit] audit complete (PLAN.md 4b1f0c1e) percent=50
//
// The component, plan, agent, and audit id are lifted out of the attribute
// list so the interesting key/value pairs stay short.
type consoleHandler struct {
	mu     *sync.Mutex
	w      io.Writer
	level  *slog.LevelVar
	opts   consoleOptions
	attrs  []slog.Attr
	groups []string
}

func newConsoleHandler(w io.Writer, level *slog.LevelVar, opts consoleOptions) *consoleHandler {
	return &consoleHandler{mu: &sync.Mutex{}, w: w, level: level, opts: opts}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr(nil), h.attrs...), qualify(h.groups, attrs)...)
	return &next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.groups = append(append([]string(nil), h.groups...), name)
	return &next
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	var line lineFields
	for _, a := range h.attrs {
		line.add(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		for _, q := range qualify(h.groups, []slog.Attr{a}) {
			line.add(q)
		}
		return true
	})

	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	var buf bytes.Buffer
	buf.WriteString(ts.UTC().Format(time.RFC3339))
	buf.WriteByte(' ')
	buf.WriteString(h.levelLabel(r.Level))
	buf.WriteByte(' ')
	if line.component != "" {
		buf.WriteString("[" + line.component + "] ")
	}
	msg := strings.TrimSpace(r.Message)
	if msg == "" {
		msg = "(no message)"
	}
	buf.WriteString(msg)
	if subject := line.subject(); subject != "" {
		buf.WriteString(" (" + subject + ")")
	}
	if h.opts.addSource && r.PC != 0 {
		if src := r.Source(); src != nil {
			fmt.Fprintf(&buf, " [%s:%d]", filepath.Base(src.File), src.Line)
		}
	}
	for _, a := range line.rest {
		buf.WriteByte(' ')
		buf.WriteString(a.Key)
		buf.WriteByte('=')
		buf.WriteString(formatValue(a.Value))
	}
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

func (h *consoleHandler) levelLabel(level slog.Level) string {
	label, color := "DEBUG", ""
	switch {
	case level >= slog.LevelError:
		label, color = "ERROR", "\x1b[31m"
	case level >= slog.LevelWarn:
		label, color = "WARN ", "\x1b[33m"
	case level >= slog.LevelInfo:
		label = "INFO "
	}
	if h.opts.color && color != "" {
		return color + label + "\x1b[0m"
	}
	return label
}

// lineFields splits attributes into the subject of a line and the rest.
type lineFields struct {
	component string
	plan      string
	agent     string
	auditID   string
	rest      []slog.Attr
}

func (l *lineFields) add(a slog.Attr) {
	switch a.Key {
	case FieldComponent:
		l.component = a.Value.String()
	case FieldPlan:
		l.plan = a.Value.String()
	case FieldAgent:
		l.agent = a.Value.String()
	case FieldAuditID:
		l.auditID = a.Value.String()
	default:
		l.rest = append(l.rest, a)
	}
}

func (l *lineFields) subject() string {
	var parts []string
	if l.agent != "" {
		parts = append(parts, l.agent)
	}
	if l.plan != "" {
		parts = append(parts, filepath.Base(l.plan))
	}
	if l.auditID != "" {
		id := l.auditID
		if len(id) > 8 {
			id = id[:8]
		}
		parts = append(parts, id)
	}
	return strings.Join(parts, " ")
}

// qualify resolves values and flattens groups into dotted keys.
func qualify(groups []string, attrs []slog.Attr) []slog.Attr {
	var out []slog.Attr
	for _, a := range attrs {
		a.Value = a.Value.Resolve()
		if a.Equal(slog.Attr{}) {
			continue
		}
		if a.Value.Kind() == slog.KindGroup {
			inner := groups
			if a.Key != "" {
				inner = append(append([]string(nil), groups...), a.Key)
			}
			out = append(out, qualify(inner, a.Value.Group())...)
			continue
		}
		if len(groups) > 0 {
			a.Key = strings.Join(append(append([]string(nil), groups...), a.Key), ".")
		}
		out = append(out, a)
	}
	return out
}

func formatValue(v slog.Value) string {
	var s string
	switch v.Kind() {
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			s = err.Error()
		} else {
			s = fmt.Sprint(v.Any())
		}
	default:
		s = v.String()
	}
	if s == "" || strings.ContainsAny(s, " \t\n=\"") {
		return strconv.Quote(s)
	}
	return s
}
