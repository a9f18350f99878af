package plan

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.TaskList))

// Parse reads and parses the plan at path.
func Parse(path string) (*Plan, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve plan path: %w", err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	return ParseBytes(abs, data)
}

// ParseBytes parses plan content. name is recorded as the plan path and
// used for the fallback title.
func ParseBytes(name string, data []byte) (*Plan, error) {
	meta, body, offset, err := splitFrontMatter(data)
	if err != nil {
		return nil, err
	}

	p := &Plan{Path: name, Meta: meta}
	doc := markdown.Parser().Parse(text.NewReader(body))

	var (
		section string
		h1      string
		seen    = map[string]struct{}{}
	)
	walkErr := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			var c inlineCollector
			c.collectChildren(node, body)
			section = c.text()
			if node.Level == 1 && h1 == "" {
				h1 = section
			}
			return ast.WalkSkipChildren, nil
		case *ast.ListItem:
			for _, d := range itemDeliverables(node, body, offset, section) {
				if _, dup := seen[d.Key()]; dup {
					continue
				}
				seen[d.Key()] = struct{}{}
				p.Deliverables = append(p.Deliverables, d)
			}
		}
		return ast.WalkContinue, nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("walk plan markdown: %w", walkErr)
	}

	switch {
	case strings.TrimSpace(meta.Title) != "":
		p.Title = strings.TrimSpace(meta.Title)
	case h1 != "":
		p.Title = h1
	default:
		base := filepath.Base(name)
		p.Title = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return p, nil
}

func itemDeliverables(item *ast.ListItem, source []byte, offset int, section string) []Deliverable {
	var c inlineCollector
	line := 0
	for child := item.FirstChild(); child != nil; child = child.NextSibling() {
		if _, nested := child.(*ast.List); nested {
			continue
		}
		if line == 0 && child.Lines().Len() > 0 {
			line = lineOf(source, child.Lines().At(0).Start) + offset
		}
		c.collectChildren(child, source)
		c.space()
	}

	paths, symbols := extractTargets(c.plain.String(), c.spans)
	if len(paths) == 0 {
		return nil
	}

	claim := ClaimNone
	itemText := c.text()
	switch {
	case c.checkbox != nil && *c.checkbox:
		claim = ClaimChecked
	case c.checkbox != nil:
		claim = ClaimUnchecked
	case strings.HasPrefix(itemText, "✅"):
		claim = ClaimChecked
	case strings.HasPrefix(itemText, "⬜"), strings.HasPrefix(itemText, "❌"):
		claim = ClaimUnchecked
	}

	base := Deliverable{Line: line, Section: section, Text: itemText, Claim: claim}
	var out []Deliverable
	for i, path := range paths {
		if i == 0 && len(symbols) > 0 {
			for _, sym := range symbols {
				d := base
				d.Path = path
				d.Symbol = sym
				out = append(out, d)
			}
			continue
		}
		d := base
		d.Path = path
		out = append(out, d)
	}
	return out
}

func lineOf(source []byte, pos int) int {
	if pos > len(source) {
		pos = len(source)
	}
	return bytes.Count(source[:pos], []byte("\n")) + 1
}

// inlineCollector accumulates the rendered text of inline nodes, keeping
// code spans aside for path and symbol detection.
type inlineCollector struct {
	full     strings.Builder
	plain    strings.Builder
	spans    []string
	checkbox *bool
}

func (c *inlineCollector) text() string {
	return strings.Join(strings.Fields(c.full.String()), " ")
}

func (c *inlineCollector) space() {
	c.full.WriteByte(' ')
	c.plain.WriteByte(' ')
}

func (c *inlineCollector) write(value []byte) {
	c.full.Write(value)
	c.plain.Write(value)
}

func (c *inlineCollector) collectChildren(n ast.Node, source []byte) {
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		c.collect(child, source)
	}
}

func (c *inlineCollector) collect(n ast.Node, source []byte) {
	switch node := n.(type) {
	case *extast.TaskCheckBox:
		checked := node.IsChecked
		c.checkbox = &checked
	case *ast.Text:
		c.write(node.Segment.Value(source))
		if node.SoftLineBreak() || node.HardLineBreak() {
			c.space()
		}
	case *ast.String:
		c.write(node.Value)
	case *ast.CodeSpan:
		var span strings.Builder
		for child := node.FirstChild(); child != nil; child = child.NextSibling() {
			switch seg := child.(type) {
			case *ast.Text:
				span.Write(seg.Segment.Value(source))
			case *ast.String:
				span.Write(seg.Value)
			}
		}
		c.spans = append(c.spans, span.String())
		c.full.WriteString("`" + span.String() + "`")
		c.plain.WriteByte(' ')
	case *ast.AutoLink:
		c.write(node.URL(source))
	case *ast.RawHTML:
	default:
		c.collectChildren(n, source)
	}
}
