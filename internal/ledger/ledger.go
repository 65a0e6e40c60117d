// Package ledger is the per-language append-only publish log.
//
// Line format:
//
//	ID:<id>|TITLE:<title>|STATUS:published|TIME:2006-01-02T15:04:05Z
//
// The file is the only source of truth. An id that appears once is published
// forever; there is no expiry and no (id, date) compound key.
package ledger

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"publishbot/internal/article"
	"publishbot/internal/filestore"
)

const (
	StatusPublished = "published"
	TimeLayout      = "2006-01-02T15:04:05Z"
)

// Entry is one parsed ledger line.
type Entry struct {
	ID     int
	Title  string
	Status string
	Time   time.Time
}

type Ledger struct {
	path  string
	store *filestore.Store
	now   func() time.Time
}

type Option func(*Ledger)

// WithClock overrides the wall clock (tests pin "today").
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// New opens the ledger at path, creating an empty file if needed.
func New(store *filestore.Store, path string, opts ...Option) (*Ledger, error) {
	l := &Ledger{path: path, store: store, now: time.Now}
	for _, o := range opts {
		o(l)
	}
	if err := store.Touch(path); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Ledger) Path() string { return l.path }

// IsPublished reports whether any line starts with "ID:<id>|".
func (l *Ledger) IsPublished(id int) (bool, error) {
	lines, err := l.store.ReadLines(l.path)
	if err != nil {
		return false, err
	}
	prefix := idPrefix(id)
	for _, line := range lines {
		if strings.HasPrefix(line, prefix) {
			return true, nil
		}
	}
	return false, nil
}

// PublishedIDs scans the file once and returns every id that has an entry.
// Same semantics as IsPublished, one read instead of one per article.
func (l *Ledger) PublishedIDs() (map[int]struct{}, error) {
	lines, err := l.store.ReadLines(l.path)
	if err != nil {
		return nil, err
	}
	ids := make(map[int]struct{}, len(lines))
	for _, line := range lines {
		if id, ok := lineID(line); ok {
			ids[id] = struct{}{}
		}
	}
	return ids, nil
}

// MarkPublished appends an entry stamped with the current UTC time.
func (l *Ledger) MarkPublished(a article.Article) error {
	return l.store.AppendLine(l.path, FormatEntry(Entry{
		ID:     a.ID,
		Title:  a.Title,
		Status: StatusPublished,
		Time:   l.now(),
	}))
}

// CountToday counts published entries whose TIME falls on the current UTC date.
func (l *Ledger) CountToday() (int, error) {
	entries, err := l.Entries()
	if err != nil {
		return 0, err
	}
	ty, tm, td := l.now().UTC().Date()
	n := 0
	for _, e := range entries {
		if e.Status != StatusPublished {
			continue
		}
		y, m, d := e.Time.UTC().Date()
		if y == ty && m == tm && d == td {
			n++
		}
	}
	return n, nil
}

// Entries returns every parseable line in file order. Malformed lines are skipped.
func (l *Ledger) Entries() ([]Entry, error) {
	lines, err := l.store.ReadLines(l.path)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(lines))
	for _, line := range lines {
		e, err := ParseEntry(line)
		if err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func FormatEntry(e Entry) string {
	// Newlines would split the entry; titles are single-line by construction but be strict.
	title := strings.NewReplacer("\r", " ", "\n", " ").Replace(e.Title)
	return fmt.Sprintf("ID:%d|TITLE:%s|STATUS:%s|TIME:%s", e.ID, title, e.Status, e.Time.UTC().Format(TimeLayout))
}

var ErrMalformed = errors.New("malformed ledger entry")

// ParseEntry parses one line. TITLE may contain '|': it spans up to the last "|STATUS:".
func ParseEntry(line string) (Entry, error) {
	line = strings.TrimSpace(line)
	id, ok := lineID(line)
	if !ok {
		return Entry{}, fmt.Errorf("%w: bad id in %q", ErrMalformed, line)
	}
	e := Entry{ID: id}

	ti := strings.LastIndex(line, "|TIME:")
	if ti < 0 {
		return Entry{}, fmt.Errorf("%w: missing TIME in %q", ErrMalformed, line)
	}
	ts := line[ti+len("|TIME:"):]
	t, err := time.Parse(TimeLayout, ts)
	if err != nil {
		// Accept fractional seconds / offsets written by other tools.
		t, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return Entry{}, fmt.Errorf("%w: bad TIME %q", ErrMalformed, ts)
		}
	}
	e.Time = t.UTC()

	head := line[:ti]
	si := strings.LastIndex(head, "|STATUS:")
	if si < 0 {
		return Entry{}, fmt.Errorf("%w: missing STATUS in %q", ErrMalformed, line)
	}
	e.Status = head[si+len("|STATUS:"):]

	head = head[:si]
	if i := strings.Index(head, "|TITLE:"); i >= 0 {
		e.Title = head[i+len("|TITLE:"):]
	}
	return e, nil
}

func idPrefix(id int) string { return "ID:" + strconv.Itoa(id) + "|" }

func lineID(line string) (int, bool) {
	if !strings.HasPrefix(line, "ID:") {
		return 0, false
	}
	rest := line[len("ID:"):]
	end := strings.IndexByte(rest, '|')
	if end <= 0 {
		return 0, false
	}
	id, err := strconv.Atoi(rest[:end])
	// Only the canonical form matches, same as the "ID:<id>|" prefix check.
	if err != nil || strconv.Itoa(id) != rest[:end] {
		return 0, false
	}
	return id, true
}
