package markdown

import (
	"html"
	"regexp"
	"strings"

	"github.com/russross/blackfriday/v2"
)

var (
	tagPattern      = regexp.MustCompile(`</?([a-zA-Z][a-zA-Z0-9]*)(?:\s[^>]*)?>`)
	newlinePattern  = regexp.MustCompile(`\n{3,}`)
	listItemPattern = regexp.MustCompile(`<li>`)
)

// ToPlainText flattens a markdown answer into plain text suitable for
// the marketplace chat, which renders no formatting. Models tend to
// answer in markdown regardless of instructions.
func ToPlainText(markdown string) string {
	if markdown == "" {
		return ""
	}

	rendered := string(blackfriday.Run([]byte(markdown), blackfriday.WithExtensions(blackfriday.CommonExtensions)))

	// Keep list structure readable, drop every other tag.
	rendered = listItemPattern.ReplaceAllString(rendered, "• ")
	rendered = strings.ReplaceAll(rendered, "</p>", "\n")
	rendered = strings.ReplaceAll(rendered, "</li>", "\n")
	rendered = strings.ReplaceAll(rendered, "<br>", "\n")
	rendered = strings.ReplaceAll(rendered, "<br/>", "\n")
	rendered = tagPattern.ReplaceAllString(rendered, "")

	rendered = html.UnescapeString(rendered)
	rendered = newlinePattern.ReplaceAllString(rendered, "\n\n")

	return strings.TrimSpace(rendered)
}
