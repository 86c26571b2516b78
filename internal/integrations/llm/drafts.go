package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"builddesk/internal/domain"
	"builddesk/internal/metrics"
)

const wordsPerMinute = 200

// FallbackModel marks drafts built from the template instead of a model.
const FallbackModel = "template"

// DraftResult holds exactly one of Parsed or Fallback.
type DraftResult struct {
	Parsed   *domain.ContentDraft
	Fallback *domain.ContentDraft
}

// Draft returns whichever draft is set.
func (r DraftResult) Draft() *domain.ContentDraft {
	if r.Parsed != nil {
		return r.Parsed
	}
	return r.Fallback
}

type draftPayload struct {
	Title          string   `json:"title"`
	Body           string   `json:"body"`
	Excerpt        string   `json:"excerpt"`
	SEOTitle       string   `json:"seo_title"`
	SEODescription string   `json:"seo_description"`
	Keywords       []string `json:"keywords"`
}

// GenerateDraft asks the model for a blog post on topic. It never fails:
// upstream errors and malformed replies produce the templated fallback.
// An empty model uses the configured content model.
func (c *Client) GenerateDraft(ctx context.Context, topic, model string) DraftResult {
	topic = strings.TrimSpace(topic)
	if model == "" {
		model = c.contentModel
	}

	systemPrompt := `You write help-center and blog content for BuildDesk, a construction workforce management product.
Audience: construction company owners, superintendents and office managers. Tone: practical and plain.
Respond with JSON only (no markdown):
{"title": "...", "body": "markdown body, 600-900 words", "excerpt": "one or two sentences", "seo_title": "max 60 chars", "seo_description": "max 155 chars", "keywords": ["..."]}`
	userPrompt := "Topic: " + topic

	text, err := c.complete(ctx, "draft", model, systemPrompt, userPrompt)
	if err == nil {
		var d *domain.ContentDraft
		d, err = parseDraft(text, topic)
		if err == nil {
			d.Model = model
			return DraftResult{Parsed: d}
		}
	}

	metrics.LLMFallbacks.WithLabelValues("draft").Inc()
	c.logger.Info("using fallback draft", zap.String("topic", topic), zap.Error(err))
	return DraftResult{Fallback: FallbackDraft(topic)}
}

func parseDraft(responseText, topic string) (*domain.ContentDraft, error) {
	responseText = stripCodeFence(responseText)
	var p draftPayload
	if err := json.Unmarshal([]byte(responseText), &p); err != nil {
		return nil, fmt.Errorf("parsing draft response: %w (truncated response: %s)", err, truncateForError(responseText))
	}
	if strings.TrimSpace(p.Title) == "" || strings.TrimSpace(p.Body) == "" {
		return nil, fmt.Errorf("draft response missing title or body")
	}
	d := &domain.ContentDraft{
		Topic:           topic,
		Title:           strings.TrimSpace(p.Title),
		Body:            strings.TrimSpace(p.Body),
		Excerpt:         strings.TrimSpace(p.Excerpt),
		SEOTitle:        strings.TrimSpace(p.SEOTitle),
		SEODescription:  strings.TrimSpace(p.SEODescription),
		Keywords:        p.Keywords,
		ReadTimeMinutes: ReadTime(p.Body),
	}
	if d.SEOTitle == "" {
		d.SEOTitle = d.Title
	}
	if d.Excerpt == "" {
		d.Excerpt = firstSentence(d.Body)
	}
	return d, nil
}

// ReadTime is the body's word count over 200, rounded up.
func ReadTime(body string) int {
	words := len(strings.Fields(body))
	return int(math.Ceil(float64(words) / wordsPerMinute))
}

// FallbackDraft builds a deterministic article outline from the topic.
func FallbackDraft(topic string) *domain.ContentDraft {
	topic = strings.TrimSpace(topic)
	subject := titleCase(topic)
	title := "A Practical Guide to " + subject

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "%s comes up on every job site sooner or later. This guide covers the basics your crew and office staff need to handle it with confidence.\n\n", subject)
	b.WriteString("## Why it matters\n\n")
	fmt.Fprintf(&b, "Getting %s right keeps projects on schedule, keeps payroll accurate and keeps clients informed.\n\n", strings.ToLower(topic))
	b.WriteString("## Getting started\n\n")
	b.WriteString("1. Review how your team handles it today.\n")
	b.WriteString("2. Write down the steps that cause delays or rework.\n")
	b.WriteString("3. Set up BuildDesk so those steps happen in one place.\n\n")
	b.WriteString("## Next steps\n\n")
	b.WriteString("Visit the BuildDesk Help Center for step-by-step articles, or contact support for a walkthrough.\n")
	body := b.String()

	excerpt := fmt.Sprintf("What construction teams need to know about %s, and how to get started.", strings.ToLower(topic))
	return &domain.ContentDraft{
		Topic:           topic,
		Title:           title,
		Body:            body,
		Excerpt:         excerpt,
		SEOTitle:        truncateRunes(title, 60),
		SEODescription:  truncateRunes(excerpt, 155),
		Keywords:        keywordsFor(topic),
		ReadTimeMinutes: ReadTime(body),
		Fallback:        true,
		Model:           FallbackModel,
	}
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

func keywordsFor(topic string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, w := range strings.FieldsFunc(strings.ToLower(topic), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len(w) < 3 || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return append(out, "construction", "builddesk")
}

func firstSentence(body string) string {
	body = strings.TrimSpace(body)
	if i := strings.IndexAny(body, ".!?"); i >= 0 {
		return body[:i+1]
	}
	return truncateRunes(body, 155)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
