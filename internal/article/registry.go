package article

import "fmt"

// Language describes one publishing language: where its articles and ledger live
// and how rendered output is labelled.
type Language struct {
	Code           string
	Label          string
	Dir            string // "ltr" | "rtl"
	ArticlesFile   string
	LedgerFile     string
	SeedFile       string
	Sections       []string
	TagPrefix      string
	PublishedLabel string
}

// Registry is an ordered, read-only set of languages keyed by code.
type Registry struct {
	order []string
	langs map[string]Language
}

func NewRegistry(langs ...Language) (*Registry, error) {
	r := &Registry{langs: make(map[string]Language, len(langs))}
	for _, l := range langs {
		if l.Code == "" {
			return nil, fmt.Errorf("language code is required")
		}
		if _, dup := r.langs[l.Code]; dup {
			return nil, fmt.Errorf("duplicate language %q", l.Code)
		}
		if l.Dir == "" {
			l.Dir = "ltr"
		}
		r.order = append(r.order, l.Code)
		r.langs[l.Code] = l
	}
	return r, nil
}

func (r *Registry) Get(code string) (Language, bool) {
	l, ok := r.langs[code]
	return l, ok
}

func (r *Registry) Codes() []string { return append([]string(nil), r.order...) }

func (r *Registry) All() []Language {
	out := make([]Language, 0, len(r.order))
	for _, c := range r.order {
		out = append(out, r.langs[c])
	}
	return out
}

func (r *Registry) Len() int { return len(r.order) }
