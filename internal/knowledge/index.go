// Package knowledge ranks help-center articles against ticket text.
package knowledge

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"builddesk/internal/domain"
)

// categoryBoost is added to the similarity of articles filed under the
// ticket's category.
const categoryBoost = 0.15

type sparseVec = map[int]float64

// Index is an immutable TF-IDF index over a set of articles.
type Index struct {
	vocab    map[string]int
	idf      []float64
	docs     []sparseVec
	articles []domain.KBArticle
}

func tokenize(s string) []string {
	s = strings.ToLower(s)
	var tokens []string
	var cur strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			cur.WriteRune(r)
		} else if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	if cur.Len() > 0 {
		tokens = append(tokens, cur.String())
	}
	return tokens
}

func articleText(a domain.KBArticle) string {
	return a.Title + " " + a.Title + " " + a.Body
}

// NewIndex builds an index; titles are weighted double.
func NewIndex(articles []domain.KBArticle) *Index {
	if len(articles) == 0 {
		return &Index{vocab: make(map[string]int)}
	}

	vocab := make(map[string]int)
	tokenized := make([][]string, len(articles))
	for i, a := range articles {
		tokenized[i] = tokenize(articleText(a))
		for _, tok := range tokenized[i] {
			if _, ok := vocab[tok]; !ok {
				vocab[tok] = len(vocab)
			}
		}
	}

	df := make([]int, len(vocab))
	docs := make([]sparseVec, len(articles))
	for i, tokens := range tokenized {
		tf := make(map[int]int)
		for _, tok := range tokens {
			tf[vocab[tok]]++
		}
		vec := make(sparseVec, len(tf))
		for idx, count := range tf {
			vec[idx] = float64(count)
			df[idx]++
		}
		docs[i] = vec
	}

	n := float64(len(articles))
	idf := make([]float64, len(vocab))
	for i, d := range df {
		if d > 0 {
			idf[i] = math.Log(n/float64(d)) + 1.0
		}
	}
	for _, vec := range docs {
		for idx := range vec {
			vec[idx] *= idf[idx]
		}
	}

	copied := make([]domain.KBArticle, len(articles))
	copy(copied, articles)
	return &Index{vocab: vocab, idf: idf, docs: docs, articles: copied}
}

func (idx *Index) Len() int { return len(idx.articles) }

func (idx *Index) queryVec(query string) sparseVec {
	tf := make(map[int]int)
	for _, tok := range tokenize(query) {
		if i, ok := idx.vocab[tok]; ok {
			tf[i]++
		}
	}
	vec := make(sparseVec, len(tf))
	for i, count := range tf {
		vec[i] = float64(count) * idx.idf[i]
	}
	return vec
}

// Search returns up to k articles sharing vocabulary with text, best first.
// Each result carries its score. Articles with no overlapping term are never
// returned, even when their category matches.
func (idx *Index) Search(text string, category domain.Category, k int) []domain.KBArticle {
	if len(idx.articles) == 0 || k <= 0 {
		return nil
	}
	qvec := idx.queryVec(text)
	if len(qvec) == 0 {
		return nil
	}

	type scored struct {
		index int
		score float64
	}
	var results []scored
	for i, dvec := range idx.docs {
		sim := cosineSim(qvec, dvec)
		if sim <= 0 {
			continue
		}
		if category != "" && idx.articles[i].Category == category {
			sim += categoryBoost
		}
		results = append(results, scored{i, sim})
	}
	sort.SliceStable(results, func(a, b int) bool {
		return results[a].score > results[b].score
	})
	if len(results) > k {
		results = results[:k]
	}
	out := make([]domain.KBArticle, len(results))
	for i, r := range results {
		out[i] = idx.articles[r.index]
		out[i].Score = math.Round(r.score*1000) / 1000
	}
	return out
}

func cosineSim(a, b sparseVec) float64 {
	var dot, normA, normB float64
	for i, va := range a {
		if vb, ok := b[i]; ok {
			dot += va * vb
		}
		normA += va * va
	}
	for _, vb := range b {
		normB += vb * vb
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
