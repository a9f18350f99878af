package plan

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// splitFrontMatter separates a leading `---` fenced YAML block from the
// Markdown body. It returns the number of lines consumed so body line numbers
// can be mapped back onto the file.
func splitFrontMatter(data []byte) (FrontMatter, []byte, int, error) {
	var meta FrontMatter
	if !bytes.HasPrefix(data, []byte("---")) {
		return meta, data, 0, nil
	}
	lines := bytes.SplitAfter(data, []byte("\n"))
	if len(lines) == 0 || string(bytes.TrimSpace(lines[0])) != "---" {
		return meta, data, 0, nil
	}
	for i := 1; i < len(lines); i++ {
		marker := string(bytes.TrimSpace(lines[i]))
		if marker != "---" && marker != "..." {
			continue
		}
		header := bytes.Join(lines[1:i], nil)
		if err := yaml.Unmarshal(header, &meta); err != nil {
			return FrontMatter{}, nil, 0, fmt.Errorf("parse front matter: %w", err)
		}
		return meta, bytes.Join(lines[i+1:], nil), i + 1, nil
	}
	// Unterminated fence: treat the whole file as Markdown.
	return meta, data, 0, nil
}
