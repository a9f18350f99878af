package plan

import (
	"path/filepath"
	"regexp"
	"strings"
)

var knownExtensions = map[string]struct{}{
	".go": {}, ".mod": {}, ".sum": {}, ".py": {}, ".ipynb": {}, ".js": {}, ".mjs": {}, ".cjs": {},
	".ts": {}, ".tsx": {}, ".jsx": {}, ".gs": {}, ".rb": {}, ".rs": {}, ".java": {}, ".kt": {},
	".swift": {}, ".c": {}, ".h": {}, ".cc": {}, ".cpp": {}, ".hpp": {}, ".cs": {}, ".php": {},
	".sh": {}, ".bash": {}, ".zsh": {}, ".ps1": {}, ".sql": {}, ".proto": {},
	".md": {}, ".txt": {}, ".rst": {}, ".json": {}, ".jsonl": {}, ".yaml": {}, ".yml": {},
	".toml": {}, ".ini": {}, ".cfg": {}, ".conf": {}, ".env": {}, ".xml": {}, ".csv": {},
	".html": {}, ".css": {}, ".scss": {}, ".svg": {}, ".lock": {},
}

var knownBaseNames = map[string]struct{}{
	"makefile": {}, "dockerfile": {}, "readme": {}, "license": {}, "procfile": {}, "gemfile": {},
}

var (
	keywordSymbolPattern = regexp.MustCompile(`^(?:func|def|class|type|function|interface|struct)\s+(?:\([^)]*\)\s*)?([A-Za-z_][A-Za-z0-9_]*)`)
	callSymbolPattern    = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_.]*)\([^()]*\)$`)
	lineSuffixPattern    = regexp.MustCompile(`:\d+(?:-\d+)?$`)
	pathCharsPattern     = regexp.MustCompile(`^[A-Za-z0-9._\-/~@+]+$`)
)

const tokenCutset = "`\"'()[]{}<>,;:!?*"

// parseSymbol recognises `func Name`, `def name`, `class Name`, `type Name`,
// `function name`, and `Name()` forms. Qualified calls keep the last segment.
func parseSymbol(span string) (string, bool) {
	span = strings.TrimSpace(span)
	if m := keywordSymbolPattern.FindStringSubmatch(span); m != nil {
		return m[1], true
	}
	if m := callSymbolPattern.FindStringSubmatch(span); m != nil {
		name := m[1]
		if idx := strings.LastIndex(name, "."); idx >= 0 {
			name = name[idx+1:]
		}
		if name != "" {
			return name, true
		}
	}
	return "", false
}

// cleanPath strips decoration that commonly trails a path in prose: a
// `:line` suffix and a sentence-ending period.
func cleanPath(value string) string {
	value = strings.TrimSpace(value)
	value = lineSuffixPattern.ReplaceAllString(value, "")
	if !strings.HasSuffix(value, "..") {
		value = strings.TrimRight(value, ".")
	}
	return value
}

// isPathLike reports whether value looks like a file or directory path.
// Code spans may name extension-less paths as long as they contain a slash;
// bare prose tokens need a known extension or a trailing slash.
func isPathLike(value string, inCode bool) bool {
	if value == "" || value == "/" || value == "." || value == ".." {
		return false
	}
	if strings.ContainsAny(value, " \t") || strings.Contains(value, "://") {
		return false
	}
	lower := strings.ToLower(value)
	if strings.HasPrefix(lower, "mailto:") || strings.HasPrefix(lower, "www.") {
		return false
	}
	if !pathCharsPattern.MatchString(value) {
		return false
	}
	base := strings.ToLower(filepath.Base(strings.TrimSuffix(value, "/")))
	if _, ok := knownBaseNames[base]; ok {
		return true
	}
	if _, ok := knownExtensions[strings.ToLower(filepath.Ext(value))]; ok {
		return true
	}
	if strings.HasSuffix(value, "/") && len(strings.Trim(value, "./")) > 0 {
		return true
	}
	return inCode && strings.Contains(strings.Trim(value, "/"), "/")
}

// extractTargets returns the paths and symbols named by one list item.
func extractTargets(plain string, spans []string) ([]string, []string) {
	var paths, symbols []string
	seen := map[string]struct{}{}
	addPath := func(p string) {
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		paths = append(paths, p)
	}

	for _, span := range spans {
		if sym, ok := parseSymbol(span); ok {
			symbols = append(symbols, sym)
			continue
		}
		candidate := cleanPath(span)
		if isPathLike(candidate, true) {
			addPath(candidate)
		}
	}
	for _, field := range strings.Fields(plain) {
		candidate := cleanPath(strings.Trim(field, tokenCutset))
		if isPathLike(candidate, false) {
			addPath(candidate)
		}
	}
	return paths, symbols
}
