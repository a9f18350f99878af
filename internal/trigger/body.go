package trigger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ErrInvalidBody reports a trigger body that is unreadable, too large, or not a JSON object.
var ErrInvalidBody = errors.New("invalid trigger body")

// Body is a decoded trigger payload. Agents write free-form JSON; only the
// conventional fields get typed accessors.
type Body struct {
	Fields map[string]any `json:"fields"`
}

// fieldAliases maps a canonical field to the spellings agents use for it.
var fieldAliases = map[string][]string{
	"task_title":   {"task_title", "taskTitle", "Task Title", "title", "task"},
	"target_agent": {"target_agent", "targetAgent", "Target Agent", "assigned_agent", "to"},
	"source_agent": {"source_agent", "sourceAgent", "Source Agent", "from"},
	"priority":     {"priority", "Priority"},
	"task_id":      {"task_id", "taskId", "Task ID", "id"},
	"status":       {"status", "Status"},
}

// DecodeBody parses a JSON object. Empty or whitespace-only input yields an
// empty body, since marker triggers are often written without content.
func DecodeBody(data []byte) (Body, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Body{Fields: map[string]any{}}, nil
	}
	if trimmed[0] != '{' {
		return Body{}, fmt.Errorf("%w: expected a JSON object", ErrInvalidBody)
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	fields := map[string]any{}
	if err := dec.Decode(&fields); err != nil {
		return Body{}, fmt.Errorf("%w: %v", ErrInvalidBody, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Body{}, fmt.Errorf("%w: trailing data after JSON object", ErrInvalidBody)
	}
	return Body{Fields: fields}, nil
}

// ReadBody reads and decodes the file at path, refusing files larger than
// maxBytes when maxBytes is positive.
func ReadBody(path string, maxBytes int64) (Body, error) {
	file, err := os.Open(path)
	if err != nil {
		return Body{}, fmt.Errorf("%w: %v", ErrInvalidBody, err)
	}
	defer file.Close()

	var reader io.Reader = file
	if maxBytes > 0 {
		reader = io.LimitReader(file, maxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return Body{}, fmt.Errorf("%w: read %s: %v", ErrInvalidBody, path, err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return Body{}, fmt.Errorf("%w: larger than %d bytes", ErrInvalidBody, maxBytes)
	}
	return DecodeBody(data)
}

// Lookup returns the first non-empty value stored under any alias of the
// canonical field, rendered as a trimmed string.
func (b Body) Lookup(field string) (string, bool) {
	aliases, ok := fieldAliases[field]
	if !ok {
		aliases = []string{field}
	}
	for _, key := range aliases {
		raw, exists := b.Fields[key]
		if !exists || raw == nil {
			continue
		}
		if value := scalarString(raw); value != "" {
			return value, true
		}
	}
	return "", false
}

// TaskTitle returns the task title field, or "".
func (b Body) TaskTitle() string {
	v, _ := b.Lookup("task_title")
	return v
}

// TargetAgent returns the target agent field, or "".
func (b Body) TargetAgent() string {
	v, _ := b.Lookup("target_agent")
	return v
}

// SourceAgent returns the source agent field, or "".
func (b Body) SourceAgent() string {
	v, _ := b.Lookup("source_agent")
	return v
}

// Priority returns the priority field, or "".
func (b Body) Priority() string {
	v, _ := b.Lookup("priority")
	return v
}

// TaskID returns the task id field, or "".
func (b Body) TaskID() string {
	v, _ := b.Lookup("task_id")
	return v
}

// Status returns the status field, or "".
func (b Body) Status() string {
	v, _ := b.Lookup("status")
	return v
}

func scalarString(raw any) string {
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

// SameAgent compares agent names ignoring case, surrounding space, and the
// separator style ("Cursor MM1" equals "cursor-mm1").
func SameAgent(a, b string) bool {
	return normalizeAgent(a) == normalizeAgent(b)
}

func normalizeAgent(value string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(value)) {
		switch r {
		case ' ', '-', '_', '.':
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
