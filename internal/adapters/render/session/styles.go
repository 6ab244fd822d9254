package session

import (
	"github.com/bnema/taskdump/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

type styles struct {
	title    lipgloss.Style
	header   lipgloss.Style
	index    lipgloss.Style
	task     lipgloss.Style
	subtask  lipgloss.Style
	quick    lipgloss.Style
	short    lipgloss.Style
	long     lipgloss.Style
	estimate lipgloss.Style
	priority lipgloss.Style
	project  lipgloss.Style
	success  lipgloss.Style
	warning  lipgloss.Style
	section  lipgloss.Style
	empty    lipgloss.Style
	hint     lipgloss.Style
}

func newStyles() styles {
	return styles{
		title:    lipgloss.NewStyle().Bold(true),
		header:   lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		index:    lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		task:     lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		subtask:  lipgloss.NewStyle().Foreground(lipgloss.Color("248")),
		quick:    lipgloss.NewStyle().Foreground(lipgloss.Color("114")),
		short:    lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		long:     lipgloss.NewStyle().Foreground(lipgloss.Color("213")),
		estimate: lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("214")),
		priority: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		project:  lipgloss.NewStyle().Foreground(lipgloss.Color("141")),
		success:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("114")),
		warning:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		section:  lipgloss.NewStyle().MarginTop(1),
		empty:    lipgloss.NewStyle().Faint(true),
		hint:     lipgloss.NewStyle().Faint(true),
	}
}

func (s styles) forBucket(bucket domain.DurationBucket) lipgloss.Style {
	switch bucket {
	case domain.BucketQuick:
		return s.quick
	case domain.BucketShort:
		return s.short
	case domain.BucketLong:
		return s.long
	default:
		return s.estimate
	}
}
