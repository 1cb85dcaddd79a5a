package digest

import (
	"fmt"
	"html"
	"strings"

	"Web3Scanner/internal/domain"
)

// Telegram caps messages at 4096 characters; leave headroom for the
// truncation marker.
const renderLimit = 3800

var viewTitles = map[domain.ViewName]string{
	domain.ViewDailyBrief:  "🧠 Web3 Daily Brief",
	domain.ViewNews:        "📰 News",
	domain.ViewNewProjects: "🚀 New Projects",
	domain.ViewTrends:      "📈 Trends",
	domain.ViewFunding:     "💰 Funding",
	domain.ViewGitHub:      "🛠 GitHub Activity",
	domain.ViewRawSignals:  "Raw Signals",
}

// Render produces Telegram-HTML. HTML parse mode is deliberate: MarkdownV2
// rejects messages whenever a reserved character slips through unescaped.
func Render(d domain.Digest) string {
	var lines []string
	lines = append(lines, "<b>"+html.EscapeString(viewTitles[d.View])+"</b>")

	if d.Stale {
		lines = append(lines, "<i>⚠ all sources backed off — showing last known signals</i>")
	}
	if d.Narrative != "" {
		lines = append(lines, html.EscapeString(d.Narrative))
	}

	if len(d.Trends) > 0 {
		lines = append(lines, "\n<b>Trends (24h)</b>")
		for _, t := range d.Trends {
			lines = append(lines, fmt.Sprintf("• %s / %s — %d signals, score %.1f",
				html.EscapeString(t.Ecosystem), html.EscapeString(t.Sector), t.Count, t.ScoreSum))
		}
	}

	if len(d.Items) > 0 {
		if d.View == domain.ViewDailyBrief {
			lines = append(lines, "\n<b>Top Signals</b>")
		}
		for _, item := range d.Items {
			lines = append(lines, "\n"+formatSignal(item))
		}
	} else if len(d.Trends) == 0 {
		lines = append(lines, "\n<i>No signals found in the last 24h window.</i>")
	}

	if d.Excluded > 0 {
		lines = append(lines, fmt.Sprintf("\n<i>%d malformed signals excluded</i>", d.Excluded))
	}

	return clip(strings.TrimSpace(strings.Join(lines, "\n")))
}

func formatSignal(s domain.Signal) string {
	var parts []string
	if t := strings.TrimSpace(s.Payload.Title); t != "" {
		parts = append(parts, "<b>"+html.EscapeString(t)+"</b>")
	}
	parts = append(parts, "<i>"+html.EscapeString(s.SourceID)+"</i>")
	if s.Scored {
		parts = append(parts, fmt.Sprintf("Score: <b>%.2f</b>", s.Score))
	}
	if s.Payload.AmountUSD > 0 {
		parts = append(parts, fmt.Sprintf("Raised: $%.1fM", s.Payload.AmountUSD/1e6))
	}
	if summary := strings.TrimSpace(s.Payload.Summary); summary != "" && summary != strings.TrimSpace(s.Payload.Title) {
		parts = append(parts, html.EscapeString(snippet(summary, 280)))
	}
	if u := strings.TrimSpace(s.Payload.URL); u != "" {
		parts = append(parts, fmt.Sprintf(`<a href="%s">open</a>`, html.EscapeString(u)))
	}
	return strings.Join(parts, "\n")
}

func snippet(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "…"
}

func clip(text string) string {
	if len(text) <= renderLimit {
		return text
	}
	return text[:renderLimit-20] + "\n…(truncated)"
}
