package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"tweetgraph/pkg/graphstore"
	"tweetgraph/pkg/pipeline"
)

// RenderSummary lays out the phases, statistics and collection sizes of a
// finished crawl
func RenderSummary(s *pipeline.Summary) string {
	if s == nil {
		return ""
	}

	var phases []string
	for _, p := range s.Phases {
		status := successStyle.Render("done")
		detail := p.Elapsed.Round(time.Millisecond).String()
		if p.Skipped {
			status = dimStyle.Render("skipped")
			detail = p.Reason
		}
		phases = append(phases, fmt.Sprintf("%-10s %s %s", p.Name, status, dimStyle.Render(detail)))
	}

	st := s.Stats
	stats := table([][2]string{
		{"accounts added", fmt.Sprint(st.AccountsDiscovered)},
		{"timelines fetched", fmt.Sprint(st.TimelinesFetched)},
		{"timelines skipped", fmt.Sprint(st.TimelinesSkipped)},
		{"fetch errors", fmt.Sprint(st.FetchErrors)},
		{"tweets analyzed", fmt.Sprint(st.TweetsAnalyzed)},
		{"tweets failed", fmt.Sprint(st.TweetErrors)},
		{"unresolved retweets", fmt.Sprint(st.UnresolvedReferences)},
		{"accounts pruned", fmt.Sprint(st.Pruned)},
	})

	var counts [][2]string
	for _, coll := range graphstore.Collections {
		if n, ok := s.Counts[coll]; ok {
			counts = append(counts, [2]string{string(coll), fmt.Sprint(n)})
		}
	}

	sections := []string{
		headerStyle.Render("Crawl " + s.RunID),
		strings.Join(phases, "\n"),
		"",
		headerStyle.Render("Statistics"),
		stats,
	}
	if len(counts) > 0 {
		sections = append(sections, "", headerStyle.Render("Collections"), table(counts))
	}
	if !s.Finished.IsZero() {
		sections = append(sections, "", dimStyle.Render("elapsed "+s.Finished.Sub(s.Started).Round(time.Second).String()))
	}
	return panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

// PrintSummary writes RenderSummary(s) to Output
func PrintSummary(s *pipeline.Summary) {
	if out := RenderSummary(s); out != "" {
		fmt.Fprintln(Output, out)
	}
}

func table(rows [][2]string) string {
	width := 0
	for _, r := range rows {
		if w := lipgloss.Width(r[0]); w > width {
			width = w
		}
	}
	label := labelStyle.Width(width + 2)
	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, label.Render(r[0]), valueStyle.Render(r[1])))
	}
	return strings.Join(lines, "\n")
}
