package trigger

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"reconcile/internal/textutil"
)

// ErrInvalidName reports a file name that does not follow the trigger convention.
var ErrInvalidName = errors.New("invalid trigger name")

// Extension is the required trigger file extension.
const Extension = ".json"

const separator = "__"

// Kind classifies a trigger file.
type Kind string

const (
	KindHandoff    Kind = "HANDOFF"
	KindInfo       Kind = "INFO"
	KindValidation Kind = "VALIDATION"
	KindReturn     Kind = "RETURN"
)

// Kinds lists every recognised kind in display order.
func Kinds() []Kind {
	return []Kind{KindHandoff, KindInfo, KindValidation, KindReturn}
}

// ParseKind normalizes and validates a kind token.
func ParseKind(value string) (Kind, error) {
	kind := Kind(strings.ToUpper(strings.TrimSpace(value)))
	for _, known := range Kinds() {
		if kind == known {
			return kind, nil
		}
	}
	return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidName, value)
}

// Name is the parsed form of a trigger file name.
type Name struct {
	Timestamp time.Time `json:"timestamp"`
	Kind      Kind      `json:"kind"`
	Title     string    `json:"title"`
	TaskID    string    `json:"task_id"`
}

// timestampLayouts are tried in order. Colons are not portable in file
// names, so dashed time separators are accepted alongside RFC3339.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15-04-05Z",
	"2006-01-02T15-04-05.999999999Z",
	"2006-01-02T15-04-05",
	"20060102T150405Z",
	"20060102T150405",
	"2006-01-02T150405Z",
}

// ParseTimestamp parses the leading timestamp segment of a trigger name.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unrecognised timestamp %q", ErrInvalidName, value)
}

// ParseName parses a trigger file name (a base name, not a path).
func ParseName(fileName string) (Name, error) {
	base := filepath.Base(strings.TrimSpace(fileName))
	if !strings.EqualFold(filepath.Ext(base), Extension) {
		return Name{}, fmt.Errorf("%w: %q lacks %s extension", ErrInvalidName, base, Extension)
	}
	stem := base[:len(base)-len(Extension)]

	parts := strings.Split(stem, separator)
	if len(parts) != 4 {
		return Name{}, fmt.Errorf("%w: %q has %d segments, want 4", ErrInvalidName, base, len(parts))
	}

	ts, err := ParseTimestamp(parts[0])
	if err != nil {
		return Name{}, err
	}
	kind, err := ParseKind(parts[1])
	if err != nil {
		return Name{}, err
	}
	title := strings.TrimSpace(parts[2])
	if title == "" {
		return Name{}, fmt.Errorf("%w: %q has an empty title", ErrInvalidName, base)
	}
	taskID := strings.TrimSpace(parts[3])
	if taskID == "" {
		return Name{}, fmt.Errorf("%w: %q has an empty task id", ErrInvalidName, base)
	}

	return Name{Timestamp: ts, Kind: kind, Title: title, TaskID: taskID}, nil
}

// String formats the canonical file name. Timestamps are rendered in UTC with
// dashes in place of colons, titles are slugged, and task ids are sanitized.
func (n Name) String() string {
	ts := n.Timestamp.UTC().Format("2006-01-02T15-04-05Z")
	id := strings.ReplaceAll(textutil.SanitizeFileName(n.TaskID), separator, "_")
	return ts + separator + string(n.Kind) + separator + textutil.Slug(n.Title) + separator + id + Extension
}

// IsCandidate reports whether a directory entry should be treated as a
// trigger file at all. Hidden files and editor droppings are ignored.
func IsCandidate(fileName string) bool {
	base := filepath.Base(fileName)
	if base == "" || strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return false
	}
	return strings.EqualFold(filepath.Ext(base), Extension)
}
