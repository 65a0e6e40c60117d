package render

import (
	"html/template"
	"math/rand"
	"strings"
	"testing"
	"time"

	"publishbot/internal/article"
)

var testLang = article.Language{Code: "en", Dir: "ltr", TagPrefix: "🍳", PublishedLabel: "Published on"}

func newTestRenderer() *Renderer {
	fixed := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)
	return New(WithRand(rand.New(rand.NewSource(1))), WithClock(func() time.Time { return fixed }))
}

func longBody(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteString("This is a fairly long sentence number ")
		b.WriteString(strings.Repeat("x", i%3+1))
		b.WriteString(". ")
	}
	return b.String()
}

func TestSplitSentences(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "  ", nil},
		{"short fragments merge", "Hi. Ok. This is now long enough.", []string{"Hi. Ok. This is now long enough."}},
		{"two sentences", "Preheat the oven well. Whisk the eggs gently!", []string{"Preheat the oven well.", "Whisk the eggs gently!"}},
		{"trailing remainder", "Preheat the oven well. then rest", []string{"Preheat the oven well.", "then rest"}},
		{"paragraph break", "Chop the onions finely\n\nFry them until golden?", []string{"Chop the onions finely.", "Fry them until golden?"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := SplitSentences(tc.in)
			if len(got) != len(tc.want) {
				t.Fatalf("SplitSentences(%q) = %q, want %q", tc.in, got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("SplitSentences(%q)[%d] = %q, want %q", tc.in, i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestLayoutShortBodyIsPlain(t *testing.T) {
	sentences := SplitSentences(longBody(7))
	if len(sentences) != 7 {
		t.Fatalf("sentences = %d, want 7", len(sentences))
	}
	sections, plain := Layout(sentences)
	if sections != nil {
		t.Fatalf("sections = %v, want nil", sections)
	}
	if len(plain) != 3 {
		t.Fatalf("paragraphs = %d, want 3", len(plain))
	}
}

func TestLayoutSections(t *testing.T) {
	// 28 sentences: 7 per section, paragraphs at sentence offsets 0, 3, 6.
	sentences := SplitSentences(longBody(28))
	sections, plain := Layout(sentences)
	if plain != nil {
		t.Fatalf("plain = %v, want nil", plain)
	}
	if len(sections) != 4 {
		t.Fatalf("sections = %d, want 4", len(sections))
	}
	if sections[0].Title != "Ingredients & Prep" || sections[3].Title != "Serving & Storage" {
		t.Fatalf("section titles = %q, %q", sections[0].Title, sections[3].Title)
	}
	ps := sections[0].Paragraphs
	if len(ps) != 3 {
		t.Fatalf("paragraphs = %d, want 3", len(ps))
	}
	if ps[0].KeyPoint != 0 || ps[1].KeyPoint != 0 || ps[2].KeyPoint != 2 {
		t.Fatalf("key points = %d,%d,%d, want 0,0,2", ps[0].KeyPoint, ps[1].KeyPoint, ps[2].KeyPoint)
	}
	total := 0
	for _, s := range sections {
		for _, p := range s.Paragraphs {
			total += strings.Count(p.Text, ". ") + 1
		}
	}
	if total != 28 {
		t.Fatalf("sentences across sections = %d, want 28", total)
	}
}

func TestContentHash(t *testing.T) {
	a := article.Article{ID: 1, Title: "Pasta"}
	got := ContentHash(a)
	if len(got) != 12 {
		t.Fatalf("len(ContentHash) = %d, want 12", len(got))
	}
	if got != ContentHash(a) {
		t.Fatalf("ContentHash not stable")
	}
	if got == ContentHash(article.Article{ID: 2, Title: "Pasta"}) {
		t.Fatalf("ContentHash ignores id")
	}
}

func TestHeroImageURL(t *testing.T) {
	got := HeroImageURL("Grandma's Chicken Soup", 42)
	want := "https://source.unsplash.com/800x500/?soup,food,cooking&sig=42"
	if got != want {
		// "soup" precedes "chicken" in the term list.
		t.Fatalf("HeroImageURL = %q, want %q", got, want)
	}
	if got := HeroImageURL("Mystery dish", 1); !strings.Contains(got, "?food,food,cooking") {
		t.Fatalf("HeroImageURL fallback = %q", got)
	}
}

func TestRenderDocument(t *testing.T) {
	r := newTestRenderer()
	a := article.Article{
		ID:            7,
		Title:         "Easy Pasta <Night>",
		Keyword:       "weeknight pasta",
		Body:          longBody(12) + "<script>alert(1)</script>",
		InternalLinks: []string{"https://example.com/a", " "},
	}
	subject, doc, err := r.Render(a, testLang)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if subject != a.Title {
		t.Fatalf("subject = %q, want %q", subject, a.Title)
	}
	for _, want := range []string{
		`<html lang="en" dir="ltr">`,
		"Easy Pasta &lt;Night&gt;",
		"Ingredients &amp; Prep",
		"Weeknight Pasta",
		"Published on:",
		"March 05, 2024",
		ContentHash(a),
		"https://example.com/a",
		"?pasta,food,cooking",
	} {
		if !strings.Contains(doc, want) {
			t.Fatalf("document missing %q", want)
		}
	}
	if strings.Contains(doc, "<script>") {
		t.Fatalf("document contains raw script tag")
	}
	if strings.Contains(doc, "ZgotmplZ") {
		t.Fatalf("template rejected a value")
	}
	tips := 0
	for _, tip := range closingTips {
		if strings.Contains(doc, template.HTMLEscapeString(tip)) {
			tips++
		}
	}
	if tips != 3 {
		t.Fatalf("tips shown = %d, want 3", tips)
	}
}

func TestRenderEmptyBody(t *testing.T) {
	r := newTestRenderer()
	_, doc, err := r.Render(article.Article{ID: 1, Title: "Toast", ImageURL: "https://img.example/t.jpg"}, testLang)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(doc, "Content unavailable.") {
		t.Fatalf("document missing empty-body notice")
	}
	if !strings.Contains(doc, "https://img.example/t.jpg") {
		t.Fatalf("explicit image_url not used")
	}
	if strings.Contains(doc, "Related") {
		t.Fatalf("related block rendered without links")
	}
}
