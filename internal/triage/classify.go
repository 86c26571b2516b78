package triage

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"builddesk/internal/domain"
)

const (
	fallbackConfidence   = 0.5
	confidencePerPoint   = 0.05
	maxKeywordConfidence = 0.95
)

var (
	repeatedPunctuation = regexp.MustCompile(`[!?]{3,}`)
	allCapsWord         = regexp.MustCompile(`\b[A-Z]{3,}\b`)
)

// Categorize scores text against every category's keyword groups and
// returns the best category with its score. Ties go to the category
// declared first; a zero score falls back to general_inquiry.
func Categorize(t *Tables, text string) (domain.Category, int, error) {
	if strings.TrimSpace(text) == "" {
		return "", 0, domain.InvalidInput("empty text")
	}
	text = strings.ToLower(text)

	best := domain.CategoryGeneralInquiry
	bestScore := 0
	for _, category := range domain.Categories {
		score := 0
		for _, g := range t.categoryGroups[category] {
			if g.re.MatchString(text) {
				score += g.weight
			}
		}
		if score > bestScore {
			best = category
			bestScore = score
		}
	}
	return best, bestScore, nil
}

// CategoryConfidence maps a keyword score onto [0,1].
func CategoryConfidence(score int) float64 {
	if score <= 0 {
		return fallbackConfidence
	}
	c := fallbackConfidence + float64(score)*confidencePerPoint
	if c > maxKeywordConfidence {
		c = maxKeywordConfidence
	}
	return c
}

// ClassifyPriority checks urgent, high and low keywords in that order and
// stops at the first hit. Without a hit the current priority is kept, or
// medium when there is none.
func ClassifyPriority(t *Tables, text string, current domain.Priority) domain.Priority {
	text = strings.ToLower(text)
	switch {
	case anyMatch(t.urgent, text):
		return domain.PriorityUrgent
	case anyMatch(t.high, text):
		return domain.PriorityHigh
	case anyMatch(t.low, text):
		return domain.PriorityLow
	}
	if current.Valid() {
		return current
	}
	return domain.PriorityMedium
}

// SentimentScore returns the raw signed sentiment score of text.
// Keyword occurrences compound; punctuation and capitalization checks read
// the original casing.
func SentimentScore(t *Tables, text string) int {
	lower := strings.ToLower(text)
	score := 0
	for _, re := range t.frustrated {
		score -= 2 * len(re.FindAllStringIndex(lower, -1))
	}
	for _, re := range t.happy {
		score += 2 * len(re.FindAllStringIndex(lower, -1))
	}
	if repeatedPunctuation.MatchString(text) {
		score--
	}
	if len(allCapsWord.FindAllStringIndex(text, -1)) >= 3 {
		score--
	}
	return score
}

func ScoreSentiment(t *Tables, text string) domain.Sentiment {
	score := SentimentScore(t, text)
	switch {
	case score < -2:
		return domain.SentimentFrustrated
	case score > 2:
		return domain.SentimentHappy
	default:
		return domain.SentimentNeutral
	}
}

// RecordMeta carries the record facts the complexity estimate needs besides
// the text itself.
type RecordMeta struct {
	BodyLength int
}

func MetaFor(ticket domain.Ticket) RecordMeta {
	return RecordMeta{BodyLength: utf8.RuneCountInString(ticket.Body)}
}

func ComplexityScore(t *Tables, text string, meta RecordMeta) int {
	lower := strings.ToLower(text)
	score := 0
	if meta.BodyLength > 500 {
		score += 2
	}
	if meta.BodyLength > 1000 {
		score += 2
	}
	if strings.Count(text, "?") > 3 {
		score += 2
	}
	if distinctTechnicalTerms(t, lower) > 3 {
		score += 2
	}
	if anyMatch(t.conjunctions, lower) {
		score++
	}
	return score
}

func EstimateComplexity(t *Tables, text string, meta RecordMeta) domain.Complexity {
	score := ComplexityScore(t, text, meta)
	switch {
	case score > 5:
		return domain.ComplexityComplex
	case score > 2:
		return domain.ComplexityMedium
	default:
		return domain.ComplexitySimple
	}
}

// distinctTechnicalTerms counts vocabulary terms that occur as words. The
// automaton finds candidates; each is confirmed on a word boundary so
// "important" or "async" do not count as import or sync.
func distinctTechnicalTerms(t *Tables, lower string) int {
	if t.technicalMatcher == nil {
		return 0
	}
	seen := make(map[int]bool)
	for _, hit := range t.technicalMatcher.MatchThreadSafe([]byte(lower)) {
		if hit < 0 || hit >= len(t.technicalPatterns) || seen[hit] {
			continue
		}
		if t.technicalPatterns[hit].MatchString(lower) {
			seen[hit] = true
		}
	}
	return len(seen)
}
