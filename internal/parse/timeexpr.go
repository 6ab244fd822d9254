package parse

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/bnema/taskdump/internal/domain"
)

// Estimate is the result of scanning one line for a duration.
type Estimate struct {
	Minutes     *int
	Bucket      domain.DurationBucket
	CleanedText string
	Matched     string
}

const minuteUnit = `(?:minutes?|minuets?|minuts?|mintues?|minues?|mnts?|mins?|mns?)`

type timePattern struct {
	name    string
	re      *regexp.Regexp
	minutes func(groups []string) (int, bool)
}

// Priority order matters: first match wins.
var timePatterns = []timePattern{
	{
		name: "range",
		re:   regexp.MustCompile(`(?i)\b(\d{1,3})\s*(?:-|–|—|to)\s*(\d{1,3})\s*(?:` + minuteUnit + `|m)\b`),
		minutes: func(groups []string) (int, bool) {
			return atoi(groups[2])
		},
	},
	{
		name: "hour range",
		re:   regexp.MustCompile(`(?i)\b(\d{1,2})\s*(?:-|–|—|to)\s*(\d{1,2})\s*(?:hours?|hrs?|h)\b`),
		minutes: func(groups []string) (int, bool) {
			hours, ok := atoi(groups[2])
			return hours * 60, ok
		},
	},
	{
		name: "idiom",
		re:   regexp.MustCompile(`(?i)\b(half|quarter)(?:\s+|-)(?:of\s+)?(?:an?\s+)?(?:hour|hr)\b`),
		minutes: func(groups []string) (int, bool) {
			if strings.EqualFold(groups[1], "half") {
				return 30, true
			}
			return 15, true
		},
	},
	{
		name: "hours",
		re:   regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*(?:hours?|hrs?|hous?|horus?|h)\b`),
		minutes: func(groups []string) (int, bool) {
			hours, err := strconv.ParseFloat(groups[1], 64)
			if err != nil || hours <= 0 {
				return 0, false
			}
			return int(math.Round(hours * 60)), true
		},
	},
	{
		name: "qualified",
		re:   regexp.MustCompile(`(?i)(?:\b(?:about|around|roughly|approximately|approx|maybe)\s+|~\s*)(\d{1,3})\s*(?:` + minuteUnit + `|m)\b`),
		minutes: func(groups []string) (int, bool) {
			return atoi(groups[1])
		},
	},
	{
		name: "minutes",
		re:   regexp.MustCompile(`(?i)\b(\d{1,3})\s*` + minuteUnit + `\b|\b(\d{1,3})m\b`),
		minutes: func(groups []string) (int, bool) {
			if groups[1] != "" {
				return atoi(groups[1])
			}
			return atoi(groups[2])
		},
	},
}

var (
	edgeJunkPattern      = regexp.MustCompile(`^[\s\-–—:,;]+|[\s\-–—:,;(]+$`)
	emptyParensPattern   = regexp.MustCompile(`\(\s*\)`)
	spacePattern         = regexp.MustCompile(`\s{2,}`)
	leadingJoinerPattern = regexp.MustCompile(`(?i)^(?:to|for|of)\s+`)
)

// ParseDuration extracts an explicit duration and its bucket from one
// candidate line. Without a time expression, a quick-action first word
// yields SHORT with no minutes.
func ParseDuration(line string) Estimate {
	for _, pattern := range timePatterns {
		loc := pattern.re.FindStringSubmatchIndex(line)
		if loc == nil {
			continue
		}

		groups := submatches(line, loc)
		minutes, ok := pattern.minutes(groups)
		if !ok || minutes <= 0 {
			continue
		}

		start, end := loc[0], loc[1]
		matched := line[start:end]
		start, end = widenToParens(line, start, end)

		cleaned := cleanRemainder(line[:start], line[end:], strings.TrimSpace(line[:start]) == "")
		value := minutes
		return Estimate{
			Minutes:     &value,
			Bucket:      domain.BucketForMinutes(minutes),
			CleanedText: cleaned,
			Matched:     strings.TrimSpace(matched),
		}
	}

	cleaned := tidy(line)
	bucket := domain.BucketNone
	if IsQuickAction(firstWord(stripListMarkers(cleaned))) {
		bucket = domain.BucketShort
	}

	return Estimate{Bucket: bucket, CleanedText: cleaned}
}

// CountTimeExpressions counts non-overlapping duration expressions across
// all pattern families.
func CountTimeExpressions(text string) int {
	return len(timeSpans(text))
}

// HasTimeExpression reports whether text carries any duration.
func HasTimeExpression(text string) bool {
	return len(timeSpans(text)) > 0
}

type span struct {
	start int
	end   int
}

func timeSpans(text string) []span {
	var spans []span
	for _, pattern := range timePatterns {
		for _, loc := range pattern.re.FindAllStringIndex(text, -1) {
			candidate := span{start: loc[0], end: loc[1]}
			if overlapsAny(spans, candidate) {
				continue
			}
			spans = append(spans, candidate)
		}
	}
	sortSpans(spans)
	return spans
}

func overlapsAny(spans []span, candidate span) bool {
	for _, existing := range spans {
		if candidate.start < existing.end && existing.start < candidate.end {
			return true
		}
	}
	return false
}

func sortSpans(spans []span) {
	for i := 1; i < len(spans); i++ {
		for j := i; j > 0 && spans[j].start < spans[j-1].start; j-- {
			spans[j], spans[j-1] = spans[j-1], spans[j]
		}
	}
}

func widenToParens(line string, start, end int) (int, int) {
	left := start
	for left > 0 && line[left-1] == ' ' {
		left--
	}
	right := end
	for right < len(line) && line[right] == ' ' {
		right++
	}
	if left > 0 && right < len(line) && line[left-1] == '(' && line[right] == ')' {
		return left - 1, right + 1
	}
	return start, end
}

func cleanRemainder(before, after string, leading bool) string {
	if leading {
		after = leadingJoinerPattern.ReplaceAllString(strings.TrimSpace(after), "")
	}
	return tidy(strings.TrimRight(before, " ") + " " + strings.TrimLeft(after, " "))
}

func tidy(text string) string {
	text = emptyParensPattern.ReplaceAllString(text, "")
	text = spacePattern.ReplaceAllString(text, " ")
	text = edgeJunkPattern.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

func submatches(text string, loc []int) []string {
	groups := make([]string, len(loc)/2)
	for i := range groups {
		if loc[2*i] >= 0 {
			groups[i] = text[loc[2*i]:loc[2*i+1]]
		}
	}
	return groups
}

func atoi(raw string) (int, bool) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, false
	}
	return value, true
}

func firstWord(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(strings.Trim(fields[0], ".,;:!?()[]\"'"))
}
