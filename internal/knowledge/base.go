package knowledge

import (
	"context"
	"fmt"

	"builddesk/internal/domain"
)

// ArticleLoader supplies the article corpus.
type ArticleLoader interface {
	ListArticles(ctx context.Context) ([]domain.KBArticle, error)
}

// Base searches the stored corpus. The index is rebuilt per search so newly
// published articles are visible immediately; the corpus is small.
type Base struct {
	loader ArticleLoader
}

func NewBase(loader ArticleLoader) *Base {
	return &Base{loader: loader}
}

func (b *Base) Search(ctx context.Context, text string, category domain.Category, limit int) ([]domain.KBArticle, error) {
	articles, err := b.loader.ListArticles(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: load kb articles: %v", domain.ErrUpstreamFailure, err)
	}
	return NewIndex(articles).Search(text, category, limit), nil
}
