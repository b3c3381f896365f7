package utils

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/text"
)

// CleanMarkdown strips outer code fences a model wraps its answer in
// (```markdown, ```json, or bare ```), leaving the content itself.
func CleanMarkdown(input string) string {
	cleaned := strings.TrimSpace(input)

	for _, fence := range []string{"```markdown", "```json", "```"} {
		if strings.HasPrefix(cleaned, fence) && strings.HasSuffix(cleaned, "```") && len(cleaned) > len(fence)+3 {
			cleaned = strings.TrimPrefix(cleaned, fence)
			cleaned = strings.TrimSuffix(cleaned, "```")
			cleaned = strings.TrimSpace(cleaned)
			break
		}
	}

	return cleaned
}

// ValidateMarkdown checks that the string parses as Markdown. Goldmark is
// very permissive, so this catches only badly broken output.
func ValidateMarkdown(input string) bool {
	parser := goldmark.DefaultParser()
	reader := text.NewReader([]byte(input))
	doc := parser.Parse(reader)
	return doc != nil
}
