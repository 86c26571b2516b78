package slackbot

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/slack-go/slack"

	"builddesk/internal/analyzer"
	"builddesk/internal/domain"
)

// parseID reads a numeric record id from slash command text ("42" or "#42").
func parseID(text string) (int64, bool) {
	text = strings.TrimPrefix(strings.TrimSpace(text), "#")
	id, err := strconv.ParseInt(text, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

var statusEmoji = map[domain.HealthStatus]string{
	domain.StatusExcellent: ":large_green_circle:",
	domain.StatusGood:      ":white_check_mark:",
	domain.StatusWarning:   ":warning:",
	domain.StatusCritical:  ":red_circle:",
}

var trendArrow = map[domain.Trend]string{
	domain.TrendUp:     "↑",
	domain.TrendDown:   "↓",
	domain.TrendStable: "→",
}

func formatTriage(r analyzer.TriageReport) string {
	c := r.Classification
	var b strings.Builder
	if r.Ticket.ID > 0 {
		fmt.Fprintf(&b, "*Ticket #%d*", r.Ticket.ID)
	} else {
		b.WriteString("*Triage*")
	}
	if subject := strings.TrimSpace(r.Ticket.Subject); subject != "" {
		fmt.Fprintf(&b, ": %s", subject)
	}
	fmt.Fprintf(&b, "\n`%s` / `%s` (confidence %.2f, %s)\n", c.Category, c.Priority, c.Confidence, r.Source)
	fmt.Fprintf(&b, "Sentiment: %s | Complexity: %s\n", c.Sentiment, c.Complexity)

	if r.Account.Known {
		ct := r.Account.Contact
		fmt.Fprintf(&b, "Reporter: %s", firstNonEmpty(ct.FullName, ct.Email))
		if ct.CompanyName != "" {
			fmt.Fprintf(&b, ", %s", ct.CompanyName)
		}
		if ct.Plan != "" {
			fmt.Fprintf(&b, " (%s)", ct.Plan)
		}
		b.WriteString("\n")
	}
	if n := len(r.RecentTickets); n > 0 {
		fmt.Fprintf(&b, "Recent tickets from this reporter: %d\n", n)
	}
	if len(r.Articles) > 0 {
		b.WriteString("Articles:\n")
		for _, a := range r.Articles {
			if a.URL != "" {
				fmt.Fprintf(&b, "• <%s|%s>\n", a.URL, a.Title)
			} else {
				fmt.Fprintf(&b, "• %s\n", a.Title)
			}
		}
	}
	for _, s := range r.Suggestions {
		if s.Type != domain.SuggestionAutoResponse {
			continue
		}
		b.WriteString("Suggested response:\n")
		for _, line := range strings.Split(s.ResponseText, "\n") {
			fmt.Fprintf(&b, ">%s\n", line)
		}
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(&b, "_%s_\n", w)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatHealth(r analyzer.HealthReport) string {
	var b strings.Builder
	agg := r.Aggregate
	fmt.Fprintf(&b, "%s *%s*: %.1f (%s)\n", statusEmoji[agg.OverallStatus], projectName(r.Project), agg.OverallScore, agg.OverallStatus)
	for _, d := range agg.Dimensions {
		fmt.Fprintf(&b, "• %s: %.0f %s %s", d.Name, d.Score, d.Status, trendArrow[d.Trend])
		if d.Details != "" {
			fmt.Fprintf(&b, " (%s)", d.Details)
		}
		b.WriteString("\n")
	}
	b.WriteString(formatUndefined(r.Undefined))
	return strings.TrimRight(b.String(), "\n")
}

func formatUndefined(undefined map[domain.Dimension]string) string {
	if len(undefined) == 0 {
		return ""
	}
	dims := make([]string, 0, len(undefined))
	for d := range undefined {
		dims = append(dims, string(d))
	}
	sort.Strings(dims)
	var b strings.Builder
	for _, d := range dims {
		fmt.Fprintf(&b, "_%s not scored: %s_\n", d, undefined[domain.Dimension(d)])
	}
	return b.String()
}

func projectName(p domain.Project) string {
	if p.Name != "" {
		return p.Name
	}
	return fmt.Sprintf("Project #%d", p.ID)
}

func mentionPrefix(userIDs []string) string {
	if len(userIDs) == 0 {
		return ""
	}
	tags := make([]string, len(userIDs))
	for i, id := range userIDs {
		tags[i] = "<@" + id + ">"
	}
	return strings.Join(tags, " ") + " "
}

func alertBlocks(title, body string) []slack.Block {
	return []slack.Block{
		slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, title, false, false)),
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, body, false, false), nil, nil),
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

const helpText = "*BuildDesk Commands*\n\n" +
	"`/triage <ticket-id>` - Classify a stored ticket and show routing, context and suggested replies.\n" +
	"`/triage <text>` - Classify free text without storing anything.\n" +
	"`/health <project-id>` - Score a project's schedule, budget, safety, team and progress.\n" +
	"`/builddesk-help` - Show this help."
