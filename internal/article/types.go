package article

import (
	"errors"
	"strings"
)

// Article is one publishable piece of content. Immutable once stored.
type Article struct {
	ID            int      `json:"id"`
	Title         string   `json:"title"`
	Keyword       string   `json:"keyword"`
	Body          string   `json:"body"`
	ImageURL      string   `json:"image_url"`
	InternalLinks []string `json:"internal_links"`
}

// Draft is the input for appending a new article; the id is assigned on insert.
type Draft struct {
	Title         string   `json:"title"`
	Keyword       string   `json:"keyword"`
	Body          string   `json:"body"`
	ImageURL      string   `json:"image_url"`
	InternalLinks []string `json:"internal_links"`
}

var ErrInvalidDraft = errors.New("invalid article")

func (d Draft) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return errors.Join(ErrInvalidDraft, errors.New("title is required"))
	}
	return nil
}

func (d Draft) toArticle(id int) Article {
	links := d.InternalLinks
	if links == nil {
		links = []string{}
	}
	return Article{
		ID:            id,
		Title:         strings.TrimSpace(d.Title),
		Keyword:       strings.TrimSpace(d.Keyword),
		Body:          d.Body,
		ImageURL:      strings.TrimSpace(d.ImageURL),
		InternalLinks: links,
	}
}

// Pending returns the articles whose id is not in published, keeping file order.
func Pending(all []Article, published map[int]struct{}) []Article {
	out := make([]Article, 0, len(all))
	for _, a := range all {
		if _, ok := published[a.ID]; ok {
			continue
		}
		out = append(out, a)
	}
	return out
}

// NextID returns max(id)+1, or 1 for an empty collection.
func NextID(all []Article) int {
	next := 1
	for _, a := range all {
		if a.ID >= next {
			next = a.ID + 1
		}
	}
	return next
}
