// Package analyzer runs the triage and project health pipelines against
// their data sources.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"builddesk/internal/domain"
	"builddesk/internal/integrations/llm"
	"builddesk/internal/metrics"
	"builddesk/internal/suggest"
	"builddesk/internal/triage"
)

type RecordSource interface {
	GetTicket(ctx context.Context, id int64) (domain.Ticket, error)
}

// ContextProvider returns domain.ContactNotFound for unknown reporters.
type ContextProvider interface {
	LookupContact(ctx context.Context, email string) (domain.AccountContext, error)
}

type ActivitySource interface {
	RecentTickets(ctx context.Context, email string, limit int) ([]domain.Ticket, error)
}

type KnowledgeBase interface {
	Search(ctx context.Context, text string, category domain.Category, limit int) ([]domain.KBArticle, error)
}

type Sink interface {
	SaveTriage(ctx context.Context, rec domain.ClassificationRecord, suggestions []domain.Suggestion) (int64, error)
}

// Refiner is an optional second opinion on the category.
type Refiner interface {
	ClassifyTicket(ctx context.Context, t domain.Ticket) (llm.Verdict, error)
	Provider() string
	Model() string
}

const (
	SourceHeuristic = "heuristic"
	SourceLLM       = "llm"

	recentTicketLimit = 5
)

// TriageReport is everything the support agent sees for one ticket.
type TriageReport struct {
	Ticket           domain.Ticket         `json:"ticket"`
	Classification   domain.Classification `json:"classification"`
	Source           string                `json:"source"`
	Account          domain.AccountContext `json:"account"`
	RecentTickets    []domain.Ticket       `json:"recent_tickets"`
	Articles         []domain.KBArticle    `json:"articles"`
	Suggestions      []domain.Suggestion   `json:"suggestions"`
	ClassificationID int64                 `json:"classification_id,omitempty"`
	Warnings         []string              `json:"warnings,omitempty"`
}

type Options struct {
	// ConfidenceThreshold is the minimum model confidence for a category
	// override.
	ConfidenceThreshold float64
	KBResultLimit       int
	Logger              *zap.Logger
	Now                 func() time.Time
}

type Analyzer struct {
	engine   *triage.Engine
	records  RecordSource
	contacts ContextProvider
	activity ActivitySource
	kb       KnowledgeBase
	sink     Sink
	refiner  Refiner
	opts     Options
	logger   *zap.Logger
}

// New wires an analyzer. kb and refiner may be nil.
func New(engine *triage.Engine, records RecordSource, contacts ContextProvider, activity ActivitySource,
	kb KnowledgeBase, sink Sink, refiner Refiner, opts Options) *Analyzer {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Analyzer{
		engine:   engine,
		records:  records,
		contacts: contacts,
		activity: activity,
		kb:       kb,
		sink:     sink,
		refiner:  refiner,
		opts:     opts,
		logger:   opts.Logger.With(zap.String("component", "analyzer")),
	}
}

// AnalyzeTicket loads a stored ticket, classifies it, gathers context and
// persists the result.
func (a *Analyzer) AnalyzeTicket(ctx context.Context, id int64) (TriageReport, error) {
	ticket, err := a.records.GetTicket(ctx, id)
	if err != nil {
		return TriageReport{}, fmt.Errorf("get ticket %d: %w", id, err)
	}
	report, err := a.analyze(ctx, ticket)
	if err != nil {
		return TriageReport{}, err
	}

	rec := domain.ClassificationRecord{
		TicketID:     ticket.ID,
		Category:     report.Classification.Category,
		Priority:     report.Classification.Priority,
		Sentiment:    report.Classification.Sentiment,
		Complexity:   report.Classification.Complexity,
		Confidence:   report.Classification.Confidence,
		Source:       report.Source,
		ClassifiedAt: a.opts.Now().UTC(),
	}
	if report.Source == SourceLLM {
		rec.LLMProvider = a.refiner.Provider()
		rec.LLMModel = a.refiner.Model()
	}
	report.ClassificationID, err = a.sink.SaveTriage(ctx, rec, report.Suggestions)
	if err != nil {
		return TriageReport{}, fmt.Errorf("save triage for ticket %d: %w", id, err)
	}
	return report, nil
}

// AnalyzeText classifies text that is not stored anywhere. Nothing is
// persisted.
func (a *Analyzer) AnalyzeText(ctx context.Context, subject, body, reporterEmail string) (TriageReport, error) {
	return a.analyze(ctx, domain.Ticket{Subject: subject, Body: body, ReporterEmail: reporterEmail})
}

func (a *Analyzer) analyze(ctx context.Context, ticket domain.Ticket) (TriageReport, error) {
	start := time.Now()
	ticket.Body = PlainText(ticket.Body)

	classification, err := a.engine.Classify(ticket)
	if err != nil {
		return TriageReport{}, fmt.Errorf("classify ticket %d: %w", ticket.ID, err)
	}

	report := TriageReport{
		Ticket:         ticket,
		Classification: classification,
		Source:         SourceHeuristic,
		Account:        domain.ContactNotFound,
	}
	var (
		verdict    llm.Verdict
		verdictErr error
		kbErr      error
	)

	g, gctx := errgroup.WithContext(ctx)
	if ticket.ReporterEmail != "" {
		g.Go(func() error {
			account, err := a.contacts.LookupContact(gctx, ticket.ReporterEmail)
			if err != nil {
				a.logger.Warn("contact lookup failed", zap.Int64("ticket_id", ticket.ID), zap.Error(err))
				return nil
			}
			report.Account = account
			return nil
		})
		g.Go(func() error {
			recent, err := a.activity.RecentTickets(gctx, ticket.ReporterEmail, recentTicketLimit+1)
			if err != nil {
				a.logger.Warn("recent tickets lookup failed", zap.Int64("ticket_id", ticket.ID), zap.Error(err))
				return nil
			}
			report.RecentTickets = excludeTicket(recent, ticket.ID, recentTicketLimit)
			return nil
		})
	}
	if a.kb != nil && a.opts.KBResultLimit > 0 {
		g.Go(func() error {
			report.Articles, kbErr = a.kb.Search(gctx, ticket.Text(), classification.Category, a.opts.KBResultLimit)
			return nil
		})
	}
	if a.refiner != nil {
		g.Go(func() error {
			verdict, verdictErr = a.refiner.ClassifyTicket(gctx, ticket)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return TriageReport{}, err
	}

	if kbErr != nil {
		metrics.KnowledgeBaseFailures.Inc()
		a.logger.Warn("knowledge base unavailable, continuing without articles",
			zap.Int64("ticket_id", ticket.ID), zap.Error(kbErr))
		report.Articles = nil
		report.Warnings = append(report.Warnings, "knowledge base unavailable")
	}
	if a.refiner != nil {
		a.applyVerdict(&report, verdict, verdictErr)
	}

	report.Suggestions = suggest.Compose(report.Classification, report.Account)

	metrics.TicketsTriaged.WithLabelValues(string(report.Classification.Category), string(report.Classification.Priority), report.Source).Inc()
	metrics.TriageDuration.Observe(time.Since(start).Seconds())
	return report, nil
}

// applyVerdict adopts the model's category only when it is more confident
// than both the threshold and the keyword classifier.
func (a *Analyzer) applyVerdict(report *TriageReport, v llm.Verdict, err error) {
	if err != nil {
		metrics.LLMFallbacks.WithLabelValues("classify").Inc()
		if !errors.Is(err, context.Canceled) {
			a.logger.Info("llm classification unavailable, keeping heuristic result",
				zap.Int64("ticket_id", report.Ticket.ID), zap.Error(err))
		}
		return
	}
	if v.Confidence <= a.opts.ConfidenceThreshold || v.Confidence <= report.Classification.Confidence {
		return
	}
	a.logger.Debug("llm category adopted",
		zap.Int64("ticket_id", report.Ticket.ID),
		zap.String("heuristic", string(report.Classification.Category)),
		zap.String("llm", string(v.Category)),
		zap.Float64("confidence", v.Confidence),
	)
	report.Classification.Category = v.Category
	report.Classification.Confidence = v.Confidence
	report.Source = SourceLLM
}

func excludeTicket(tickets []domain.Ticket, id int64, limit int) []domain.Ticket {
	out := make([]domain.Ticket, 0, len(tickets))
	for _, t := range tickets {
		if id != 0 && t.ID == id {
			continue
		}
		out = append(out, t)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
