package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/upnorway/sanity-plugin-media/internal/domain"
)

// Hit is a single matching tag.
type Hit struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// Search returns tags whose name matches q, best match first. An empty q
// matches nothing.
func (i *TagIndex) Search(ctx context.Context, q string, limit int) ([]Hit, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, nil
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	if limit <= 0 {
		count, err := i.index.DocCount()
		if err != nil {
			return nil, fmt.Errorf("count documents: %w", err)
		}
		limit = max(int(count), 1)
	}

	req := bleve.NewSearchRequestOptions(buildNameQuery(q), limit, 0, false)
	req.Fields = []string{"name"}

	res, err := i.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hit := Hit{ID: h.ID, Score: h.Score}
		if n, ok := h.Fields["name"].(string); ok {
			hit.Name = n
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// Filter keeps the items whose tag matches q, preserving their order. An
// empty q keeps every item.
func (i *TagIndex) Filter(ctx context.Context, items []domain.TagItem, q string) ([]domain.TagItem, error) {
	if strings.TrimSpace(q) == "" {
		return items, nil
	}

	hits, err := i.Search(ctx, q, 0)
	if err != nil {
		return nil, err
	}

	matched := make(map[string]struct{}, len(hits))
	for _, h := range hits {
		matched[h.ID] = struct{}{}
	}

	out := make([]domain.TagItem, 0, len(hits))
	for _, item := range items {
		if _, ok := matched[item.Tag.ID]; ok {
			out = append(out, item)
		}
	}
	return out, nil
}

// buildNameQuery matches whole words, word prefixes, near misses, and the
// exact name, with the exact name ranked highest.
func buildNameQuery(q string) query.Query {
	lower := strings.ToLower(q)

	exact := bleve.NewTermQuery(lower)
	exact.SetField("name_exact")
	exact.SetBoost(5.0)

	match := bleve.NewMatchQuery(q)
	match.SetField("name")
	match.SetBoost(3.0)

	queries := []query.Query{exact, match}

	// Prefix on the whole input and on its last word, for autocomplete.
	prefix := bleve.NewPrefixQuery(lower)
	prefix.SetField("name_exact")
	prefix.SetBoost(1.5)
	queries = append(queries, prefix)

	if words := strings.Fields(lower); len(words) > 0 {
		wordPrefix := bleve.NewPrefixQuery(words[len(words)-1])
		wordPrefix.SetField("name")
		wordPrefix.SetBoost(1.0)
		queries = append(queries, wordPrefix)
	}

	// Typo tolerance only for inputs long enough to be meaningful.
	if len([]rune(q)) >= 4 {
		fuzzy := bleve.NewFuzzyQuery(lower)
		fuzzy.SetFuzziness(1)
		fuzzy.SetField("name")
		fuzzy.SetBoost(0.5)
		queries = append(queries, fuzzy)
	}

	return bleve.NewDisjunctionQuery(queries...)
}
