package responder

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"sigma-chat/internal/catalog"
	"sigma-chat/internal/response"
)

type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]catalog.Product, error)
}

const DefaultCatalogIntro = "Dưới đây là các sản phẩm phù hợp với bạn:"

// Catalog answers with matching products. When the whole text matches
// nothing, each word of at least three letters is tried on its own.
type Catalog struct {
	Store Searcher
	Limit int
	Intro string
}

func (c *Catalog) Respond(ctx context.Context, in response.Input) (response.Outcome, error) {
	limit := c.Limit
	if limit <= 0 {
		limit = 4
	}

	products, err := c.Store.Search(ctx, in.Text, limit)
	if err != nil {
		return response.Outcome{}, fmt.Errorf("catalog search: %w", err)
	}
	if len(products) == 0 {
		products, err = c.searchWords(ctx, in.Text, limit)
		if err != nil {
			return response.Outcome{}, err
		}
	}
	if len(products) == 0 {
		return response.Outcome{}, ErrNoAnswer
	}

	intro := c.Intro
	if intro == "" {
		intro = DefaultCatalogIntro
	}
	return response.Structured(intro, catalog.Attachments(products)), nil
}

func (c *Catalog) searchWords(ctx context.Context, text string, limit int) ([]catalog.Product, error) {
	seen := make(map[string]bool)
	var out []catalog.Product
	for _, w := range strings.Fields(text) {
		if utf8.RuneCountInString(w) < 3 {
			continue
		}
		hits, err := c.Store.Search(ctx, w, limit)
		if err != nil {
			return nil, fmt.Errorf("catalog search %q: %w", w, err)
		}
		for _, p := range hits {
			if seen[p.ID] {
				continue
			}
			seen[p.ID] = true
			out = append(out, p)
			if len(out) == limit {
				return out, nil
			}
		}
	}
	return out, nil
}
