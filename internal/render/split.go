package render

import "strings"

const (
	minSentenceLen     = 15
	sectionedThreshold = 8
	sentencesPerPara   = 3
	// A "Key Point" sub-heading precedes every second paragraph after the first.
	keyPointEvery = 2 * sentencesPerPara
)

// SplitSentences breaks body on . ! ? once the running sentence is longer
// than 15 characters. Paragraph breaks become sentence breaks.
func SplitSentences(body string) []string {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil
	}
	body = strings.ReplaceAll(body, "\n\n", ". ")
	body = strings.ReplaceAll(body, "\n", " ")

	var (
		out []string
		cur strings.Builder
	)
	for _, r := range body {
		cur.WriteRune(r)
		if (r == '.' || r == '!' || r == '?') && len([]rune(strings.TrimSpace(cur.String()))) > minSentenceLen {
			out = append(out, strings.TrimSpace(cur.String()))
			cur.Reset()
		}
	}
	if rest := strings.TrimSpace(cur.String()); rest != "" {
		out = append(out, rest)
	}
	return out
}

// Paragraph is one rendered block; KeyPoint > 0 asks for a sub-heading before it.
type Paragraph struct {
	Text     string
	KeyPoint int
}

// Section is one H2 block of a long article.
type Section struct {
	Icon       string
	Title      string
	Paragraphs []Paragraph
}

// Layout groups sentences for rendering. Short bodies (fewer than 8
// sentences) come back as plain paragraphs with no sections.
func Layout(sentences []string) (sections []Section, plain []Paragraph) {
	if len(sentences) < sectionedThreshold {
		return nil, group(sentences, false)
	}
	chunk := len(sentences) / 4
	bounds := [5]int{0, chunk, 2 * chunk, 3 * chunk, len(sentences)}
	sections = make([]Section, 0, 4)
	for i, h := range sectionHeads {
		sections = append(sections, Section{
			Icon:       h.Icon,
			Title:      h.Title,
			Paragraphs: group(sentences[bounds[i]:bounds[i+1]], true),
		})
	}
	return sections, nil
}

func group(sentences []string, keyPoints bool) []Paragraph {
	out := make([]Paragraph, 0, (len(sentences)+sentencesPerPara-1)/sentencesPerPara)
	for i := 0; i < len(sentences); i += sentencesPerPara {
		end := min(i+sentencesPerPara, len(sentences))
		p := Paragraph{Text: strings.Join(sentences[i:end], " ")}
		if keyPoints && i > 0 && i%keyPointEvery == 0 {
			p.KeyPoint = i/keyPointEvery + 1
		}
		out = append(out, p)
	}
	return out
}
