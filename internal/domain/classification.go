package domain

import (
	"strings"
	"time"
)

type Category string

// Declaration order is the tie-break order for keyword scoring.
const (
	CategoryBilling          Category = "billing"
	CategoryAccountAccess    Category = "account_access"
	CategoryBugReport        Category = "bug_report"
	CategoryFeatureRequest   Category = "feature_request"
	CategoryIntegrationIssue Category = "integration_issue"
	CategoryPerformanceIssue Category = "performance_issue"
	CategoryDataImport       Category = "data_import"
	CategoryMobileApp        Category = "mobile_app"
	CategoryHowToQuestion    Category = "how_to_question"
	CategoryGeneralInquiry   Category = "general_inquiry"
)

var Categories = []Category{
	CategoryBilling,
	CategoryAccountAccess,
	CategoryBugReport,
	CategoryFeatureRequest,
	CategoryIntegrationIssue,
	CategoryPerformanceIssue,
	CategoryDataImport,
	CategoryMobileApp,
	CategoryHowToQuestion,
	CategoryGeneralInquiry,
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityUrgent, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

type Sentiment string

const (
	SentimentFrustrated Sentiment = "frustrated"
	SentimentNeutral    Sentiment = "neutral"
	SentimentHappy      Sentiment = "happy"
)

func (s Sentiment) Valid() bool {
	switch s {
	case SentimentFrustrated, SentimentNeutral, SentimentHappy:
		return true
	}
	return false
}

type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityMedium  Complexity = "medium"
	ComplexityComplex Complexity = "complex"
)

func (c Complexity) Valid() bool {
	switch c {
	case ComplexitySimple, ComplexityMedium, ComplexityComplex:
		return true
	}
	return false
}

// Extracted info keys.
const (
	InfoEmails     = "emails"
	InfoURLs       = "urls"
	InfoErrorCodes = "error_codes"
	InfoAmounts    = "amounts"
)

// Ticket is a support ticket as handed to the triage engine. It is never
// mutated by the engine.
type Ticket struct {
	ID            int64     `json:"id"`
	Subject       string    `json:"subject"`
	Body          string    `json:"body"`
	ReporterEmail string    `json:"reporter_email,omitempty"`
	Priority      Priority  `json:"priority,omitempty"` // current priority, empty when unset
	Status        string    `json:"status,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Text returns subject and body joined the way the classifiers read them.
func (t Ticket) Text() string {
	return strings.TrimSpace(t.Subject + " " + t.Body)
}

// Validate rejects tickets the classifiers cannot read.
func (t Ticket) Validate() error {
	if strings.TrimSpace(t.Subject) == "" && strings.TrimSpace(t.Body) == "" {
		return invalidInput("ticket has no subject or body")
	}
	if t.Priority != "" && !t.Priority.Valid() {
		return invalidInput("unknown priority %q", t.Priority)
	}
	return nil
}

type Classification struct {
	Category      Category            `json:"category"`
	Priority      Priority            `json:"priority"`
	Sentiment     Sentiment           `json:"sentiment"`
	Complexity    Complexity          `json:"complexity"`
	ExtractedInfo map[string][]string `json:"extracted_info"`
	Confidence    float64             `json:"confidence"`
}

type ClassificationRecord struct {
	ID           int64      `json:"id"`
	TicketID     int64      `json:"ticket_id"`
	Category     Category   `json:"category"`
	Priority     Priority   `json:"priority"`
	Sentiment    Sentiment  `json:"sentiment"`
	Complexity   Complexity `json:"complexity"`
	Confidence   float64    `json:"confidence"`
	Source       string     `json:"source"` // "heuristic" or "llm"
	LLMProvider  string     `json:"llm_provider,omitempty"`
	LLMModel     string     `json:"llm_model,omitempty"`
	ClassifiedAt time.Time  `json:"classified_at"`
}

type ClassificationStats struct {
	TotalClassifications int              `json:"total_classifications"`
	AvgConfidence        float64          `json:"avg_confidence"`
	ByCategory           map[Category]int `json:"by_category"`
	ByPriority           map[Priority]int `json:"by_priority"`
}
