package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"builddesk/internal/domain"
)

const ticketColumns = `id, subject, body, reporter_email, priority, status, created_at`

func scanTicket(row interface{ Scan(...any) error }) (domain.Ticket, error) {
	var t domain.Ticket
	var priority string
	err := row.Scan(&t.ID, &t.Subject, &t.Body, &t.ReporterEmail, &priority, &t.Status, &t.CreatedAt)
	t.Priority = domain.Priority(priority)
	return t, err
}

func (s *Store) InsertTicket(ctx context.Context, t domain.Ticket) (int64, error) {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if t.Status == "" {
		t.Status = "open"
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tickets (subject, body, reporter_email, priority, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.Subject, t.Body, normalizeEmail(t.ReporterEmail), string(t.Priority), t.Status, t.CreatedAt.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert ticket: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) GetTicket(ctx context.Context, id int64) (domain.Ticket, error) {
	t, err := scanTicket(s.db.QueryRowContext(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE id = ?`, id))
	if err != nil {
		return domain.Ticket{}, notFound(err, "ticket", id)
	}
	return t, nil
}

// RecentTickets returns the reporter's latest tickets, newest first.
func (s *Store) RecentTickets(ctx context.Context, email string, limit int) ([]domain.Ticket, error) {
	email = normalizeEmail(email)
	if email == "" || limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+ticketColumns+` FROM tickets
		 WHERE reporter_email = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		email, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent tickets: %w", err)
	}
	defer rows.Close()

	var out []domain.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Store) UpsertContact(ctx context.Context, c domain.Contact) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO contacts (email, full_name, company_name, plan, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(email) DO UPDATE SET
		   full_name = excluded.full_name,
		   company_name = excluded.company_name,
		   plan = excluded.plan`,
		normalizeEmail(c.Email), c.FullName, c.CompanyName, c.Plan, c.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert contact: %w", err)
	}
	return nil
}

// LookupContact returns domain.ContactNotFound, not an error, for unknown
// or empty addresses.
func (s *Store) LookupContact(ctx context.Context, email string) (domain.AccountContext, error) {
	email = normalizeEmail(email)
	if email == "" {
		return domain.ContactNotFound, nil
	}
	var c domain.Contact
	err := s.db.QueryRowContext(ctx,
		`SELECT email, full_name, company_name, plan, created_at FROM contacts WHERE email = ?`,
		email,
	).Scan(&c.Email, &c.FullName, &c.CompanyName, &c.Plan, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ContactNotFound, nil
	}
	if err != nil {
		return domain.ContactNotFound, fmt.Errorf("lookup contact: %w", err)
	}
	return domain.AccountContext{Known: true, Contact: c}, nil
}

// SaveTriage records a classification and its suggestions atomically and
// returns the classification id.
func (s *Store) SaveTriage(ctx context.Context, rec domain.ClassificationRecord, suggestions []domain.Suggestion) (int64, error) {
	if rec.ClassifiedAt.IsZero() {
		rec.ClassifiedAt = time.Now().UTC()
	}
	if rec.Source == "" {
		rec.Source = "heuristic"
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO ticket_classifications
		 (ticket_id, category, priority, sentiment, complexity, confidence, source, llm_provider, llm_model, classified_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.TicketID, string(rec.Category), string(rec.Priority), string(rec.Sentiment),
		string(rec.Complexity), rec.Confidence, rec.Source, rec.LLMProvider, rec.LLMModel, rec.ClassifiedAt.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert classification: %w", err)
	}
	classificationID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	if len(suggestions) > 0 {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO ticket_suggestions
			 (classification_id, ticket_id, type, confidence, route_category, route_priority, response_text)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		)
		if err != nil {
			return 0, err
		}
		defer stmt.Close()

		for _, sg := range suggestions {
			var category, priority string
			if sg.Routing != nil {
				category, priority = string(sg.Routing.Category), string(sg.Routing.Priority)
			}
			if _, err := stmt.ExecContext(ctx,
				classificationID, rec.TicketID, string(sg.Type), sg.ConfidenceScore,
				category, priority, sg.ResponseText,
			); err != nil {
				return 0, fmt.Errorf("insert suggestion: %w", err)
			}
		}
	}
	return classificationID, tx.Commit()
}

// LatestTriage returns the newest classification of a ticket with the
// suggestions stored alongside it.
func (s *Store) LatestTriage(ctx context.Context, ticketID int64) (domain.ClassificationRecord, []domain.Suggestion, error) {
	var r domain.ClassificationRecord
	var category, priority, sentiment, complexity string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, ticket_id, category, priority, sentiment, complexity, confidence,
		        source, llm_provider, llm_model, classified_at
		 FROM ticket_classifications
		 WHERE ticket_id = ?
		 ORDER BY classified_at DESC, id DESC LIMIT 1`,
		ticketID,
	).Scan(
		&r.ID, &r.TicketID, &category, &priority, &sentiment, &complexity, &r.Confidence,
		&r.Source, &r.LLMProvider, &r.LLMModel, &r.ClassifiedAt,
	)
	if err != nil {
		return r, nil, notFound(err, "triage for ticket", ticketID)
	}
	r.Category = domain.Category(category)
	r.Priority = domain.Priority(priority)
	r.Sentiment = domain.Sentiment(sentiment)
	r.Complexity = domain.Complexity(complexity)

	rows, err := s.db.QueryContext(ctx,
		`SELECT type, confidence, route_category, route_priority, response_text
		 FROM ticket_suggestions WHERE classification_id = ? ORDER BY id`,
		r.ID,
	)
	if err != nil {
		return r, nil, fmt.Errorf("suggestions for classification %d: %w", r.ID, err)
	}
	defer rows.Close()

	var out []domain.Suggestion
	for rows.Next() {
		var sg domain.Suggestion
		var typ, routeCategory, routePriority string
		if err := rows.Scan(&typ, &sg.ConfidenceScore, &routeCategory, &routePriority, &sg.ResponseText); err != nil {
			return r, nil, err
		}
		sg.Type = domain.SuggestionType(typ)
		if sg.Type == domain.SuggestionRouting {
			sg.Routing = &domain.RoutingHint{
				Category: domain.Category(routeCategory),
				Priority: domain.Priority(routePriority),
			}
		}
		out = append(out, sg)
	}
	return r, out, rows.Err()
}

func (s *Store) GetClassificationStats(ctx context.Context, since time.Time) (domain.ClassificationStats, error) {
	st := domain.ClassificationStats{
		ByCategory: make(map[domain.Category]int),
		ByPriority: make(map[domain.Priority]int),
	}
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(AVG(confidence), 0)
		 FROM ticket_classifications WHERE classified_at >= ?`,
		since.UTC(),
	).Scan(&st.TotalClassifications, &st.AvgConfidence)
	if err != nil {
		return st, fmt.Errorf("classification stats: %w", err)
	}

	groups := []struct {
		column string
		add    func(key string, n int)
	}{
		{"category", func(k string, n int) { st.ByCategory[domain.Category(k)] = n }},
		{"priority", func(k string, n int) { st.ByPriority[domain.Priority(k)] = n }},
	}
	for _, g := range groups {
		rows, err := s.db.QueryContext(ctx,
			`SELECT `+g.column+`, COUNT(*) FROM ticket_classifications
			 WHERE classified_at >= ? GROUP BY `+g.column,
			since.UTC(),
		)
		if err != nil {
			return st, fmt.Errorf("classification stats by %s: %w", g.column, err)
		}
		for rows.Next() {
			var key string
			var n int
			if err := rows.Scan(&key, &n); err != nil {
				rows.Close()
				return st, err
			}
			g.add(key, n)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return st, err
		}
	}
	return st, nil
}
