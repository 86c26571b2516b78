// Package suggest turns a ticket classification into routing hints and
// canned responses.
package suggest

import (
	"fmt"
	"strings"

	"builddesk/internal/domain"
)

const genericTemplate = "Thanks for contacting BuildDesk support. We received your message and a member of our team will follow up shortly."

var templates = map[domain.Category]string{
	domain.CategoryHowToQuestion: "Thanks for your question! Most how-to topics are covered step by step in our Help Center at https://help.builddesk.io. " +
		"If the guide doesn't answer it, reply here and we'll walk you through it.",
}

// Compose always returns a routing suggestion and, for simple how-to
// questions, an auto-response.
func Compose(c domain.Classification, ctx domain.AccountContext) []domain.Suggestion {
	suggestions := []domain.Suggestion{{
		Type:            domain.SuggestionRouting,
		ConfidenceScore: c.Confidence,
		Routing:         &domain.RoutingHint{Category: c.Category, Priority: c.Priority},
	}}

	if c.Category == domain.CategoryHowToQuestion && c.Complexity == domain.ComplexitySimple {
		suggestions = append(suggestions, domain.Suggestion{
			Type:            domain.SuggestionAutoResponse,
			ConfidenceScore: c.Confidence,
			ResponseText:    ResponseFor(c.Category, ctx),
		})
	}
	return suggestions
}

// ResponseFor renders the response template of a category, falling back to
// the generic acknowledgement.
func ResponseFor(category domain.Category, ctx domain.AccountContext) string {
	body, ok := templates[category]
	if !ok {
		body = genericTemplate
	}
	return Greeting(ctx) + "\n\n" + body + "\n\n- The BuildDesk Team"
}

func Greeting(ctx domain.AccountContext) string {
	if !ctx.Known {
		return "Hi there,"
	}
	name := firstName(ctx.Contact.FullName)
	company := strings.TrimSpace(ctx.Contact.CompanyName)
	switch {
	case name != "" && company != "":
		return fmt.Sprintf("Hi %s (%s),", name, company)
	case name != "":
		return fmt.Sprintf("Hi %s,", name)
	case company != "":
		return fmt.Sprintf("Hi %s team,", company)
	default:
		return "Hi there,"
	}
}

func firstName(full string) string {
	fields := strings.Fields(full)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
