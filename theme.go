package main

import (
	"time"

	"github.com/charmbracelet/lipgloss"
)

type Theme struct {
	Name     string
	Banner   string
	Title    lipgloss.Style
	Cursor   lipgloss.Style
	Unseen   lipgloss.Style
	Seen     lipgloss.Style
	Duration lipgloss.Style
	Status   lipgloss.Style
	Border   lipgloss.Color
}

func baseTheme() Theme {
	return Theme{
		Name:     "default",
		Banner:   "ytRSS",
		Title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		Cursor:   lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true),
		Unseen:   lipgloss.NewStyle().Foreground(lipgloss.Color("255")),
		Seen:     lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		Duration: lipgloss.NewStyle().Foreground(lipgloss.Color("86")),
		Status:   lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		Border:   lipgloss.Color("63"),
	}
}

// season reports the holiday the date falls in: Christmas from Dec 20 to
// Dec 26 and New Year from Dec 30 to Jan 2.
func season(now time.Time) string {
	month, day := now.Month(), now.Day()
	switch {
	case month == time.December && day >= 20 && day <= 26:
		return "christmas"
	case month == time.December && day >= 30, month == time.January && day <= 2:
		return "newyear"
	}
	return ""
}

func currentTheme(now time.Time, seasonal bool) Theme {
	theme := baseTheme()
	if !seasonal {
		return theme
	}
	switch season(now) {
	case "christmas":
		theme.Name = "christmas"
		theme.Banner = "* ytRSS * Merry Christmas *"
		theme.Title = theme.Title.Foreground(lipgloss.Color("160"))
		theme.Cursor = theme.Cursor.Foreground(lipgloss.Color("34"))
		theme.Duration = theme.Duration.Foreground(lipgloss.Color("220"))
		theme.Border = lipgloss.Color("28")
	case "newyear":
		theme.Name = "newyear"
		theme.Banner = "ytRSS ~ Happy New Year " + newYearLabel(now)
		theme.Title = theme.Title.Foreground(lipgloss.Color("220"))
		theme.Cursor = theme.Cursor.Foreground(lipgloss.Color("51"))
		theme.Duration = theme.Duration.Foreground(lipgloss.Color("213"))
		theme.Border = lipgloss.Color("220")
	}
	return theme
}

func newYearLabel(now time.Time) string {
	year := now.Year()
	if now.Month() == time.December {
		year++
	}
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC).Format("2006")
}
