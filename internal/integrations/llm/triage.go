package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"builddesk/internal/domain"
)

// Verdict is the model's opinion of a ticket, already checked against the
// domain enums.
type Verdict struct {
	Category   domain.Category
	Priority   domain.Priority
	Sentiment  domain.Sentiment
	Complexity domain.Complexity
	Confidence float64
}

type verdictPayload struct {
	Category   string  `json:"category"`
	Priority   string  `json:"priority"`
	Sentiment  string  `json:"sentiment"`
	Complexity string  `json:"complexity"`
	Confidence float64 `json:"confidence"`
}

const maxTicketPromptChars = 6000

func buildTriagePrompts(t domain.Ticket) (string, string) {
	categories := make([]string, len(domain.Categories))
	for i, c := range domain.Categories {
		categories[i] = string(c)
	}

	systemPrompt := fmt.Sprintf(`You triage customer support tickets for BuildDesk, a construction workforce management product.
Classify the ticket into exactly one category and rate it.

Categories: %s
Priorities: urgent, high, medium, low
Sentiments: frustrated, neutral, happy
Complexity: simple, medium, complex

Set confidence between 0 and 1 for the category choice.
Respond with JSON only (no markdown):
{"category": "...", "priority": "...", "sentiment": "...", "complexity": "...", "confidence": 0.0}`,
		strings.Join(categories, ", "))

	body := strings.TrimSpace(t.Body)
	if truncated := truncateRunes(body, maxTicketPromptChars); truncated != body {
		body = truncated + "..."
	}
	userPrompt := fmt.Sprintf("Subject: %s\n\n%s", strings.TrimSpace(t.Subject), body)
	return systemPrompt, userPrompt
}

// ClassifyTicket asks the model to classify a ticket. Any transport, parse
// or validation problem is reported as domain.ErrUpstreamFailure.
func (c *Client) ClassifyTicket(ctx context.Context, t domain.Ticket) (Verdict, error) {
	systemPrompt, userPrompt := buildTriagePrompts(t)
	text, err := c.complete(ctx, "classify", c.model, systemPrompt, userPrompt)
	if err != nil {
		return Verdict{}, err
	}
	v, err := parseVerdict(text)
	if err != nil {
		return Verdict{}, fmt.Errorf("%w: %v", domain.ErrUpstreamFailure, err)
	}
	return v, nil
}

func parseVerdict(responseText string) (Verdict, error) {
	responseText = stripCodeFence(responseText)
	var p verdictPayload
	if err := json.Unmarshal([]byte(responseText), &p); err != nil {
		return Verdict{}, fmt.Errorf("parsing classification response: %w (truncated response: %s)", err, truncateForError(responseText))
	}

	v := Verdict{
		Category:   domain.Category(normalizeEnum(p.Category)),
		Priority:   domain.Priority(normalizeEnum(p.Priority)),
		Sentiment:  domain.Sentiment(normalizeEnum(p.Sentiment)),
		Complexity: domain.Complexity(normalizeEnum(p.Complexity)),
		Confidence: p.Confidence,
	}
	switch {
	case !v.Category.Valid():
		return Verdict{}, fmt.Errorf("unknown category %q", p.Category)
	case !v.Priority.Valid():
		return Verdict{}, fmt.Errorf("unknown priority %q", p.Priority)
	case !v.Sentiment.Valid():
		return Verdict{}, fmt.Errorf("unknown sentiment %q", p.Sentiment)
	case !v.Complexity.Valid():
		return Verdict{}, fmt.Errorf("unknown complexity %q", p.Complexity)
	case v.Confidence < 0 || v.Confidence > 1:
		return Verdict{}, fmt.Errorf("confidence %v out of range", p.Confidence)
	}
	return v, nil
}

func normalizeEnum(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "-", "_")
	return strings.ReplaceAll(s, " ", "_")
}
