package domain

import "time"

type SuggestionType string

const (
	SuggestionRouting      SuggestionType = "routing"
	SuggestionAutoResponse SuggestionType = "auto_response"
)

type RoutingHint struct {
	Category Category `json:"category"`
	Priority Priority `json:"priority"`
}

// Suggestion carries exactly one payload: Routing for routing suggestions,
// ResponseText for auto responses.
type Suggestion struct {
	Type            SuggestionType `json:"type"`
	ConfidenceScore float64        `json:"confidence_score"`
	Routing         *RoutingHint   `json:"routing,omitempty"`
	ResponseText    string         `json:"response_text,omitempty"`
}

// Contact is the account context attached to a reporter email.
type Contact struct {
	Email       string    `json:"email"`
	FullName    string    `json:"full_name"`
	CompanyName string    `json:"company_name"`
	Plan        string    `json:"plan"`
	CreatedAt   time.Time `json:"created_at"`
}

// AccountContext is what the composer knows about the reporter. Known is
// false for anonymous tickets.
type AccountContext struct {
	Known   bool    `json:"known"`
	Contact Contact `json:"contact"`
}

// ContactNotFound is the sentinel context returned for unknown reporters.
var ContactNotFound = AccountContext{}

type KBArticle struct {
	ID       int64    `json:"id"`
	Title    string   `json:"title"`
	Body     string   `json:"-"`
	Category Category `json:"category"`
	URL      string   `json:"url"`
	Score    float64  `json:"score"`
}

type ContentDraft struct {
	ID              int64     `json:"id,omitempty"`
	Topic           string    `json:"topic"`
	Title           string    `json:"title"`
	Body            string    `json:"body"`
	Excerpt         string    `json:"excerpt"`
	SEOTitle        string    `json:"seo_title"`
	SEODescription  string    `json:"seo_description"`
	Keywords        []string  `json:"keywords"`
	ReadTimeMinutes int       `json:"read_time_minutes"`
	Fallback        bool      `json:"fallback"`
	Model           string    `json:"model"`
	CreatedAt       time.Time `json:"created_at,omitempty"`
}
