package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"reconcile/internal/audit"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const statusLabelWidth = 18

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func colorize(value, color string, enabled bool) string {
	if !enabled || color == "" {
		return value
	}
	return color + value + ansiReset
}

func severityColor(severity string) string {
	switch audit.Severity(severity) {
	case audit.SeverityCritical:
		return ansiRed
	case audit.SeverityWarning:
		return ansiYellow
	case audit.SeverityInfo:
		return ansiBlue
	default:
		return ""
	}
}

func statusColor(status string) string {
	switch audit.Status(status) {
	case audit.StatusPresent:
		return ansiGreen
	case audit.StatusOutsideRoot:
		return ansiRed
	case audit.StatusMissing, audit.StatusStub, audit.StatusSymbolMissing:
		return ansiYellow
	default:
		return ""
	}
}

// percentColor grades verified completion.
func percentColor(percent float64) string {
	switch {
	case percent >= 90:
		return ansiGreen
	case percent >= 50:
		return ansiYellow
	default:
		return ansiRed
	}
}

func renderLabel(label, value string) string {
	return fmt.Sprintf("%-*s %s", statusLabelWidth, label+":", value)
}

func renderSectionHeader(title string, enabled bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	return []string{colorize(line, ansiBlue, enabled), colorize(rule, ansiBlue, enabled)}
}
