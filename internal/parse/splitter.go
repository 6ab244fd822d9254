package parse

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const minLineLength = 3

var (
	newlinePattern      = regexp.MustCompile(`[\r\n]+`)
	numberedItemPattern = regexp.MustCompile(`\d+\)`)
)

const bulletSeparator = "•"

// SplitLines turns one blob into ordered candidate task lines. Rules are
// tried in order and the first that fires wins; prose that triggers none of
// them stays a single line.
func SplitLines(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	lines := keepCandidates(newlinePattern.Split(text, -1))
	switch len(lines) {
	case 0:
		return nil
	case 1:
		text = lines[0]
	default:
		return lines
	}

	if len(numberedItemPattern.FindAllStringIndex(text, -1)) >= 2 {
		segments := numberedItemPattern.Split(text, -1)
		if lines := keepCandidates(segments[1:]); len(lines) > 0 {
			return lines
		}
	}

	if strings.Contains(text, bulletSeparator) {
		segments := strings.Split(text, bulletSeparator)
		if lines := keepCandidates(segments[1:]); len(lines) > 0 {
			return lines
		}
	}

	if strings.Contains(text, ",") {
		if lines := keepCandidates(smartCommaSplit(text)); len(lines) > 0 {
			return lines
		}
	} else if CountTimeExpressions(text) >= 2 {
		if lines := keepCandidates(splitAfterTimeExpressions(text)); len(lines) > 0 {
			return lines
		}
	}

	return keepCandidates([]string{text})
}

// smartCommaSplit splits on commas, then folds each fragment back into the
// previous task unless it opens with a quick-action verb or carries its own
// time expression next to other words. A fragment that is only a duration
// ("…, 2 mins") belongs to the task before it.
func smartCommaSplit(text string) []string {
	fragments := strings.Split(text, ",")
	tasks := make([]string, 0, len(fragments))

	for _, fragment := range fragments {
		trimmed := strings.TrimSpace(fragment)
		if trimmed == "" {
			continue
		}
		if len(tasks) == 0 || startsNewTask(trimmed) {
			tasks = append(tasks, trimmed)
			continue
		}
		tasks[len(tasks)-1] = tasks[len(tasks)-1] + ", " + trimmed
	}

	return tasks
}

func startsNewTask(fragment string) bool {
	if startsWithQuickAction(fragment) {
		return true
	}
	if !HasTimeExpression(fragment) {
		return false
	}
	return ParseDuration(fragment).CleanedText != ""
}

// splitAfterTimeExpressions cuts a comma-less line after each duration, so
// "email Sam 5 min call Bob 10 min" yields two lines.
func splitAfterTimeExpressions(text string) []string {
	spans := timeSpans(text)
	parts := make([]string, 0, len(spans)+1)
	start := 0
	for _, s := range spans {
		end := s.end
		if end < len(text) && text[end] == ')' {
			end++
		}
		parts = append(parts, text[start:end])
		start = end
	}
	if start < len(text) {
		tail := strings.TrimSpace(text[start:])
		if tail != "" && len(parts) > 0 && !startsWithQuickAction(tail) {
			parts[len(parts)-1] += " " + tail
		} else {
			parts = append(parts, tail)
		}
	}
	return parts
}

func keepCandidates(lines []string) []string {
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if utf8.RuneCountInString(trimmed) < minLineLength {
			continue
		}
		kept = append(kept, trimmed)
	}
	return kept
}
