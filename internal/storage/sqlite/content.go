package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"builddesk/internal/domain"
)

func (s *Store) InsertArticle(ctx context.Context, a domain.KBArticle) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO kb_articles (title, body, category, url) VALUES (?, ?, ?, ?)`,
		a.Title, a.Body, string(a.Category), a.URL,
	)
	if err != nil {
		return 0, fmt.Errorf("insert article: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) ListArticles(ctx context.Context) ([]domain.KBArticle, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, body, category, url FROM kb_articles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	defer rows.Close()

	var out []domain.KBArticle
	for rows.Next() {
		var a domain.KBArticle
		var category string
		if err := rows.Scan(&a.ID, &a.Title, &a.Body, &category, &a.URL); err != nil {
			return nil, err
		}
		a.Category = domain.Category(category)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) SaveDraft(ctx context.Context, d domain.ContentDraft) (int64, error) {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	keywords, err := json.Marshal(d.Keywords)
	if err != nil {
		return 0, fmt.Errorf("encode keywords: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO content_drafts
		 (topic, title, body, excerpt, seo_title, seo_description, keywords, read_time, fallback, model, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.Topic, d.Title, d.Body, d.Excerpt, d.SEOTitle, d.SEODescription,
		string(keywords), d.ReadTimeMinutes, d.Fallback, d.Model, d.CreatedAt.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert draft: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) GetDraft(ctx context.Context, id int64) (domain.ContentDraft, error) {
	var d domain.ContentDraft
	var keywords string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, topic, title, body, excerpt, seo_title, seo_description, keywords, read_time, fallback, model, created_at
		 FROM content_drafts WHERE id = ?`,
		id,
	).Scan(&d.ID, &d.Topic, &d.Title, &d.Body, &d.Excerpt, &d.SEOTitle, &d.SEODescription,
		&keywords, &d.ReadTimeMinutes, &d.Fallback, &d.Model, &d.CreatedAt)
	if err != nil {
		return domain.ContentDraft{}, notFound(err, "draft", id)
	}
	if err := json.Unmarshal([]byte(keywords), &d.Keywords); err != nil {
		return d, fmt.Errorf("decode keywords of draft %d: %w", id, err)
	}
	return d, nil
}
