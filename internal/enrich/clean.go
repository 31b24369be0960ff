package enrich

import (
	"regexp"
	"strings"
)

// trailingCommaRe matches a comma directly before a closing brace or
// bracket, the most common way models break their own JSON.
var trailingCommaRe = regexp.MustCompile(`,([ \t\r\n]*[}\]])`)

// CleanResponse strips the decoration models wrap around JSON replies:
// markdown code fences, prose before the object, and trailing commas.
func CleanResponse(raw string) string {
	text := strings.TrimSpace(raw)

	if strings.HasPrefix(text, "```") {
		text = strings.ReplaceAll(text, "```json", "")
		text = strings.ReplaceAll(text, "```", "")
		text = strings.TrimSpace(text)
	}

	if !strings.HasPrefix(text, "{") {
		if idx := strings.Index(text, "{"); idx != -1 {
			text = text[idx:]
		}
	}

	return trailingCommaRe.ReplaceAllString(text, "$1")
}
