package template

import (
	"html"
	"strings"
)

// htmlToText derives a plain-text part from an HTML body: block-level
// closers become newlines, remaining tags are dropped and entities
// unescaped.
func htmlToText(s string) string {
	replacer := strings.NewReplacer(
		"<br>", "\n",
		"<br/>", "\n",
		"<br />", "\n",
		"</p>", "\n\n",
		"</div>", "\n",
		"</h1>", "\n\n",
		"</h2>", "\n\n",
		"</h3>", "\n\n",
		"</li>", "\n",
		"</tr>", "\n",
	)
	s = replacer.Replace(s)

	var out strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			out.WriteRune(r)
		}
	}

	text := html.UnescapeString(out.String())

	// Collapse runs of blank lines left behind by stripped markup.
	lines := strings.Split(text, "\n")
	var cleaned []string
	blank := 0
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			blank++
			if blank > 1 {
				continue
			}
		} else {
			blank = 0
		}
		cleaned = append(cleaned, line)
	}
	return strings.TrimSpace(strings.Join(cleaned, "\n"))
}
