package triage

import (
	"builddesk/internal/domain"
)

// Engine runs every classifier over one ticket. It holds no state besides
// the shared tables.
type Engine struct {
	tables *Tables
}

func NewEngine(tables *Tables) *Engine {
	return &Engine{tables: tables}
}

// Classify returns a fresh classification for ticket.
func (e *Engine) Classify(ticket domain.Ticket) (domain.Classification, error) {
	if err := ticket.Validate(); err != nil {
		return domain.Classification{}, err
	}
	text := ticket.Text()

	category, score, err := Categorize(e.tables, text)
	if err != nil {
		return domain.Classification{}, err
	}

	return domain.Classification{
		Category:      category,
		Priority:      ClassifyPriority(e.tables, text, ticket.Priority),
		Sentiment:     ScoreSentiment(e.tables, text),
		Complexity:    EstimateComplexity(e.tables, text, MetaFor(ticket)),
		ExtractedInfo: ExtractInfo(text),
		Confidence:    CategoryConfidence(score),
	}, nil
}
