package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/fyrsmithlabs/assessd/internal/catalog"
	"github.com/fyrsmithlabs/assessd/internal/recommend"
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().Padding(0, 1)

	promotedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")).
			Padding(0, 1)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))
)

const maxNameWidth = 48

// renderTable formats a result for terminals. Items swapped in for
// category coverage are highlighted. Data rows are zero-indexed in
// StyleFunc; the header row is table.HeaderRow.
func renderTable(result *recommend.RankedResult) string {
	rows := make([][]string, 0, len(result.Items))
	promoted := make(map[int]bool)
	for i, item := range result.Items {
		a := recommend.NewAssessment(item.Record)
		duration := "-"
		if a.Duration > 0 {
			duration = fmt.Sprintf("%d min", a.Duration)
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			truncate(a.Name, maxNameWidth),
			strings.Join(codes(a.TestType), ","),
			duration,
			a.RemoteSupport,
			fmt.Sprintf("%.3f", item.Score),
		})
		if item.Promoted {
			promoted[i] = true
		}
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("#", "Assessment", "Types", "Duration", "Remote", "Score").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case promoted[row]:
				return promotedStyle
			default:
				return cellStyle
			}
		})

	footer := dimStyle.Render(fmt.Sprintf("intent: %s  candidates: %d  elapsed: %s  request: %s",
		result.Intent, result.Candidates, result.Elapsed.Round(time.Microsecond), result.RequestID))
	return t.Render() + "\n" + footer
}

func codes(types []string) []string {
	out := make([]string, 0, len(types))
	for _, t := range types {
		if c := catalog.ParseTestType(t).Code(); c != "" {
			out = append(out, c)
		} else {
			out = append(out, t)
		}
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
