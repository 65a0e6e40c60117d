// Package render turns an article into the (subject, HTML) pair posted to
// the webhook. Layout is randomized per call: theme, hero image signature
// and the closing tips.
package render

import (
	"bytes"
	"crypto/md5"
	"embed"
	"encoding/hex"
	"fmt"
	"html"
	"html/template"
	"math/rand"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"publishbot/internal/article"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

const (
	imageBase   = "https://source.unsplash.com/800x500/"
	tipsShown   = 3
	dateLayout  = "January 02, 2006"
	hashLength  = 12
	maxImageSig = 10000
)

type Renderer struct {
	mu  sync.Mutex
	rng *rand.Rand

	now    func() time.Time
	tmpl   *template.Template
	policy *bluemonday.Policy
	title  cases.Caser
	lower  cases.Caser
}

type Option func(*Renderer)

// WithRand fixes the random source, mainly for tests.
func WithRand(r *rand.Rand) Option { return func(x *Renderer) { x.rng = r } }

func WithClock(now func() time.Time) Option { return func(x *Renderer) { x.now = now } }

func New(opts ...Option) *Renderer {
	r := &Renderer{
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		now:    time.Now,
		tmpl:   template.Must(template.ParseFS(templateFS, "templates/email.html.tmpl")),
		policy: bluemonday.StrictPolicy(),
		title:  cases.Title(language.Und),
		lower:  cases.Lower(language.Und),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

type themeView struct {
	Name     string
	Gradient template.CSS
	Accent   template.CSS
}

type view struct {
	Lang           string
	Dir            string
	Title          string
	Keyword        string
	KeywordLower   string
	Category       string
	TagPrefix      string
	PublishedLabel string
	ImageURL       string
	Theme          themeView
	Empty          bool
	Sections       []Section
	Plain          []Paragraph
	Links          []string
	Tips           []string
	Date           string
	Hash           string
}

// Render returns the email subject (the article title) and the full HTML document.
func (r *Renderer) Render(a article.Article, lang article.Language) (string, string, error) {
	r.mu.Lock()
	theme := Themes[r.rng.Intn(len(Themes))]
	imageURL := strings.TrimSpace(a.ImageURL)
	if imageURL == "" {
		imageURL = HeroImageURL(a.Title, r.rng.Intn(maxImageSig)+1)
	}
	tips := pickTips(r.rng, tipsShown)
	r.mu.Unlock()

	sentences := SplitSentences(r.plainText(a.Body))
	sections, plain := Layout(sentences)

	label := lang.PublishedLabel
	if label == "" {
		label = "Published"
	}
	v := view{
		Lang:           lang.Code,
		Dir:            lang.Dir,
		Title:          a.Title,
		Keyword:        a.Keyword,
		KeywordLower:   r.lower.String(a.Keyword),
		Category:       r.title.String(a.Keyword),
		TagPrefix:      lang.TagPrefix,
		PublishedLabel: label,
		ImageURL:       imageURL,
		Theme:          themeView{Name: theme.Name, Gradient: template.CSS(theme.Gradient), Accent: template.CSS(theme.Accent)},
		Empty:          len(sentences) == 0,
		Sections:       sections,
		Plain:          plain,
		Links:          nonEmpty(a.InternalLinks),
		Tips:           tips,
		Date:           r.now().Format(dateLayout),
		Hash:           ContentHash(a),
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, v); err != nil {
		return "", "", fmt.Errorf("render article %d: %w", a.ID, err)
	}
	return a.Title, buf.String(), nil
}

// plainText strips any markup from body; the template re-escapes it.
func (r *Renderer) plainText(body string) string {
	return html.UnescapeString(r.policy.Sanitize(body))
}

// ContentHash is the short fingerprint printed in the footer.
func ContentHash(a article.Article) string {
	sum := md5.Sum([]byte(strconv.Itoa(a.ID) + ":" + a.Title))
	return hex.EncodeToString(sum[:])[:hashLength]
}

// HeroImageURL picks a food term from the title and builds an Unsplash URL.
func HeroImageURL(title string, sig int) string {
	term := "food"
	lower := strings.ToLower(title)
	for _, k := range foodTerms {
		if strings.Contains(lower, k) {
			term = k
			break
		}
	}
	return imageBase + "?" + url.PathEscape(term) + ",food,cooking&sig=" + strconv.Itoa(sig)
}

func pickTips(rng *rand.Rand, n int) []string {
	idx := rng.Perm(len(closingTips))[:n]
	out := make([]string, 0, n)
	for _, i := range idx {
		out = append(out, closingTips[i])
	}
	return out
}

func nonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
