package article

import (
	"embed"
	"errors"
	"fmt"
	"os"

	"publishbot/internal/filestore"
)

//go:embed seed/*.json
var seedFS embed.FS

// Repository reads and appends one language's article collection.
type Repository struct {
	store *filestore.Store
	lang  Language
}

func NewRepository(store *filestore.Store, lang Language) *Repository {
	return &Repository{store: store, lang: lang}
}

func (r *Repository) Language() Language { return r.lang }

func (r *Repository) List() ([]Article, error) {
	return filestore.ReadList[Article](r.store, r.lang.ArticlesFile)
}

var ErrNotFound = errors.New("article not found")

func (r *Repository) Get(id int) (Article, error) {
	all, err := r.List()
	if err != nil {
		return Article{}, err
	}
	for _, a := range all {
		if a.ID == id {
			return a, nil
		}
	}
	return Article{}, ErrNotFound
}

// Add appends d with id max+1. Id assignment and the write happen under the store lock.
func (r *Repository) Add(d Draft) (Article, error) {
	if err := d.Validate(); err != nil {
		return Article{}, err
	}
	var added Article
	err := filestore.UpdateList(r.store, r.lang.ArticlesFile, func(cur []Article) ([]Article, error) {
		added = d.toArticle(NextID(cur))
		return append(cur, added), nil
	})
	if err != nil {
		return Article{}, err
	}
	return added, nil
}

// EnsureSeeded writes the seed collection when the articles file does not exist yet.
// It reports whether a seed was written.
func (r *Repository) EnsureSeeded() (bool, error) {
	ok, err := r.store.Exists(r.lang.ArticlesFile)
	if err != nil || ok {
		return false, err
	}
	seed, err := r.loadSeed()
	if err != nil {
		return false, err
	}
	if err := filestore.WriteList(r.store, r.lang.ArticlesFile, seed); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Repository) loadSeed() ([]Article, error) {
	if r.lang.SeedFile != "" {
		return filestore.ReadList[Article](r.store, r.lang.SeedFile)
	}
	b, err := seedFS.ReadFile("seed/" + r.lang.Code + ".json")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Article{}, nil
		}
		return nil, fmt.Errorf("read embedded seed %s: %w", r.lang.Code, err)
	}
	return DecodeSeed(b)
}
