package audit

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"reconcile/internal/plan"
)

// maxSymbolScanBytes bounds how much of a file is searched for a symbol.
const maxSymbolScanBytes = 8 << 20

type checker struct {
	root         string
	realRoot     string
	checkSymbols bool
}

func newChecker(root string, checkSymbols bool) checker {
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		resolved = root
	}
	return checker{root: root, realRoot: resolved, checkSymbols: checkSymbols}
}

func (c checker) check(d plan.Deliverable) Check {
	out := Check{Deliverable: d}

	target, ok := c.resolve(d.Path)
	if !ok {
		out.Status = StatusOutsideRoot
		out.Detail = "path escapes the workspace root"
		return out
	}
	out.ResolvedPath = target

	info, err := os.Stat(target)
	if err != nil {
		out.Status = StatusMissing
		if !errors.Is(err, os.ErrNotExist) {
			out.Detail = err.Error()
		}
		return out
	}

	// A symlink inside the workspace may still point outside it.
	if resolved, err := filepath.EvalSymlinks(target); err == nil && !within(c.realRoot, resolved) {
		out.Status = StatusOutsideRoot
		out.Detail = "path resolves outside the workspace root"
		return out
	}

	if info.IsDir() {
		entries, err := os.ReadDir(target)
		if err != nil {
			out.Status = StatusMissing
			out.Detail = err.Error()
			return out
		}
		if len(entries) == 0 {
			out.Status = StatusStub
			out.Detail = "directory is empty"
			return out
		}
	} else if info.Size() == 0 {
		out.Status = StatusStub
		out.Detail = "file is empty"
		return out
	}

	if d.Symbol != "" && c.checkSymbols {
		found, err := containsSymbol(target, info.IsDir(), d.Symbol)
		if err != nil {
			out.Status = StatusSymbolMissing
			out.Detail = err.Error()
			return out
		}
		if !found {
			out.Status = StatusSymbolMissing
			out.Detail = fmt.Sprintf("symbol %q not found", d.Symbol)
			return out
		}
	}

	out.Status = StatusPresent
	return out
}

// resolve joins a deliverable path onto the root and reports false when the
// result escapes it. Home-relative paths are never resolved.
func (c checker) resolve(path string) (string, bool) {
	path = strings.TrimSpace(path)
	if path == "" || strings.HasPrefix(path, "~") {
		return "", false
	}
	var target string
	if filepath.IsAbs(path) {
		target = filepath.Clean(path)
	} else {
		target = filepath.Join(c.root, filepath.FromSlash(path))
	}
	if !within(c.root, target) {
		return "", false
	}
	return target, true
}

func within(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func containsSymbol(target string, isDir bool, symbol string) (bool, error) {
	pattern, err := regexp.Compile(`\b` + regexp.QuoteMeta(symbol) + `\b`)
	if err != nil {
		return false, fmt.Errorf("compile symbol pattern: %w", err)
	}
	if !isDir {
		return fileMatches(target, pattern)
	}
	entries, err := os.ReadDir(target)
	if err != nil {
		return false, err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ok, err := fileMatches(filepath.Join(target, entry.Name()), pattern)
		if err != nil {
			continue
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func fileMatches(path string, pattern *regexp.Regexp) (bool, error) {
	file, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxSymbolScanBytes))
	if err != nil {
		return false, err
	}
	return pattern.Match(data), nil
}
