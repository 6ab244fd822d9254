package parse

import (
	"regexp"
	"strings"

	"github.com/bnema/taskdump/internal/domain"
)

var (
	priorityTokenPattern = regexp.MustCompile(`(?i)(^|\s|\()p([1-4])(\)|\s|[,.;!]|$)`)
	urgentWordPattern    = regexp.MustCompile(`(?i)\b(?:urgent|urgently|asap|critical)\b`)
)

// ExtractPriority pulls a standalone P1..P4 token out of the title. Urgency
// words mark P1 without being removed.
func ExtractPriority(title string) (domain.Priority, string) {
	loc := priorityTokenPattern.FindStringSubmatchIndex(title)
	if loc != nil {
		groups := submatches(title, loc)
		level, _ := atoi(groups[2])
		punct := ""
		if strings.ContainsAny(groups[3], ",.;!") {
			punct = groups[3]
		}
		cleaned := strings.TrimRight(title[:loc[0]], " ") + punct + " " + strings.TrimLeft(title[loc[1]:], " ")
		return domain.Priority(level), tidy(cleaned)
	}

	if urgentWordPattern.MatchString(title) {
		return domain.PriorityP1, strings.TrimSpace(title)
	}

	return domain.PriorityUnset, strings.TrimSpace(title)
}
