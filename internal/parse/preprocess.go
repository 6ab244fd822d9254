// Package parse holds the deterministic text pipeline: line splitting,
// duration extraction and title cleanup.
package parse

import (
	"strings"

	"github.com/bnema/taskdump/internal/domain"
)

// Preprocess runs the deterministic pipeline over a raw blob. Every
// candidate line yields exactly one task.
func Preprocess(text string) []domain.ParsedTask {
	lines := SplitLines(text)
	tasks := make([]domain.ParsedTask, 0, len(lines))
	for _, line := range lines {
		tasks = append(tasks, PreprocessLine(line))
	}
	return tasks
}

func PreprocessLine(line string) domain.ParsedTask {
	normalized := NormalizeTitle(line)
	estimate := ParseDuration(normalized)
	priority, title := ExtractPriority(NormalizeTitle(estimate.CleanedText))
	if title == "" {
		title = strings.TrimSpace(normalized)
	}
	if title == "" {
		title = strings.TrimSpace(line)
	}

	return domain.ParsedTask{
		Raw:                line,
		Title:              title,
		ExplicitMinutes:    estimate.Minutes,
		DurationBucket:     estimate.Bucket,
		MatchedExpression:  estimate.Matched,
		IsProjectCandidate: estimate.Bucket == domain.BucketLong,
		Priority:           priority,
	}
}
