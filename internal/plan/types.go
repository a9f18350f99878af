package plan

import (
	"path/filepath"
	"strings"
)

// Claim records what the plan author asserts about a deliverable.
type Claim string

const (
	ClaimChecked   Claim = "checked"
	ClaimUnchecked Claim = "unchecked"
	ClaimNone      Claim = "none"
)

// FrontMatter holds the optional YAML header of a plan.
type FrontMatter struct {
	Title  string `yaml:"title" json:"title,omitempty"`
	Owner  string `yaml:"owner" json:"owner,omitempty"`
	Root   string `yaml:"root" json:"root,omitempty"`
	Status string `yaml:"status" json:"status,omitempty"`
}

// Deliverable is one expected artefact listed in a plan.
type Deliverable struct {
	Line    int    `json:"line"`
	Section string `json:"section,omitempty"`
	Text    string `json:"text"`
	Path    string `json:"path"`
	Symbol  string `json:"symbol,omitempty"`
	Claim   Claim  `json:"claim"`
}

// Key identifies a deliverable for de-duplication.
func (d Deliverable) Key() string {
	return filepath.ToSlash(d.Path) + "#" + d.Symbol
}

// Claimed reports whether the author marked the deliverable done.
func (d Deliverable) Claimed() bool {
	return d.Claim == ClaimChecked
}

// Plan is a parsed plan document.
type Plan struct {
	Path         string        `json:"path"`
	Title        string        `json:"title"`
	Meta         FrontMatter   `json:"meta"`
	Deliverables []Deliverable `json:"deliverables"`
}

// ClaimedCount returns the number of checked deliverables.
func (p *Plan) ClaimedCount() int {
	if p == nil {
		return 0
	}
	n := 0
	for _, d := range p.Deliverables {
		if d.Claimed() {
			n++
		}
	}
	return n
}

// ResolveRoot returns the workspace root the plan's deliverables are relative
// to. A front matter root wins and is resolved against the plan's directory;
// otherwise fallback is returned unchanged.
func (p *Plan) ResolveRoot(fallback string) string {
	if p == nil {
		return fallback
	}
	root := strings.TrimSpace(p.Meta.Root)
	if root == "" {
		return fallback
	}
	if filepath.IsAbs(root) {
		return filepath.Clean(root)
	}
	base := fallback
	if p.Path != "" {
		base = filepath.Dir(p.Path)
	}
	return filepath.Clean(filepath.Join(base, root))
}
