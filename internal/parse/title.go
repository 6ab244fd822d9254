package parse

import (
	"regexp"
	"strings"
)

var listMarkerPattern = regexp.MustCompile(`^\s*(?:\d+\)\s*|\d+\.\s+|[a-zA-Z][.)]\s+|[-*•·▪‣◦–]\s*|\[[ xX]?\]\s*|[✓✔☐☑✅]\s*)`)

// metaPrefixes are matched case-insensitively, longest first.
var metaPrefixes = []string{
	"create a task to",
	"add a task to",
	"make a task to",
	"create task to",
	"add task to",
	"remind me to",
	"i need to",
	"i want to",
	"i have to",
	"i should",
	"need to",
	"please",
	"task:",
	"todo:",
	"to do:",
}

// NormalizeTitle strips list markers and meta-request phrasing. Casing and
// inner wording are preserved.
func NormalizeTitle(line string) string {
	title := strings.TrimSpace(line)
	for {
		next := stripMetaPrefix(stripListMarkers(title))
		if next == title {
			return title
		}
		title = next
	}
}

func stripListMarkers(text string) string {
	trimmed := strings.TrimSpace(text)
	for {
		next := strings.TrimSpace(listMarkerPattern.ReplaceAllString(trimmed, ""))
		if next == trimmed {
			return trimmed
		}
		trimmed = next
	}
}

func stripMetaPrefix(text string) string {
	lower := strings.ToLower(text)
	for _, prefix := range metaPrefixes {
		if !strings.HasPrefix(lower, prefix) {
			continue
		}
		rest := text[len(prefix):]
		// "need to" must not eat "needle ...".
		if rest != "" && !strings.HasSuffix(prefix, ":") && rest[0] != ' ' && rest[0] != ',' {
			continue
		}
		return strings.TrimLeft(rest, " ,")
	}
	return text
}
