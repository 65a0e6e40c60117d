// Package filestore is the durable file layer: JSON lists replaced atomically
// (tmp file + rename) and append-only text logs.
//
// Every write and append is serialized by one lock shared across all paths.
// Reads are lock-free; atomic replace guarantees readers only ever see a
// complete old or complete new file.
package filestore

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const tmpSuffix = ".tmp"

type Store struct {
	mu sync.Locker
}

type Option func(*Store)

// WithLocker injects the lock guarding writes (tests use it to observe serialization).
func WithLocker(l sync.Locker) Option {
	return func(s *Store) {
		if l != nil {
			s.mu = l
		}
	}
}

func New(opts ...Option) *Store {
	s := &Store{mu: &sync.Mutex{}}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ReadList decodes a JSON array from path. A missing file yields an empty list.
func ReadList[T any](s *Store, path string) ([]T, error) {
	_ = s
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []T{}, nil
		}
		return nil, &StorageError{Op: "read", Path: path, Err: err}
	}
	return decodeList[T](path, b)
}

func decodeList[T any](path string, b []byte) ([]T, error) {
	if len(bytes.TrimSpace(b)) == 0 {
		return []T{}, nil
	}
	var out []T
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

// WriteList replaces path with the JSON encoding of data.
func WriteList[T any](s *Store, path string, data []T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeListLocked(path, data)
}

// UpdateList runs a read-modify-write cycle under the write lock, so concurrent
// appends cannot lose each other's items. fn receives the current list; if it
// returns an error nothing is written.
func UpdateList[T any](s *Store, path string, fn func([]T) ([]T, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := ReadList[T](s, path)
	if err != nil {
		return err
	}
	next, err := fn(cur)
	if err != nil {
		return err
	}
	return writeListLocked(path, next)
}

func writeListLocked[T any](path string, data []T) error {
	if data == nil {
		data = []T{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return &StorageError{Op: "encode", Path: path, Err: err}
	}
	return replaceFile(path, buf.Bytes())
}

// replaceFile writes to a sibling tmp file then renames it over path.
// A crash before the rename leaves path untouched (a stale tmp may remain and is overwritten next time).
func replaceFile(path string, b []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &StorageError{Op: "mkdir", Path: path, Err: err}
	}
	tmp := path + tmpSuffix
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return &StorageError{Op: "create", Path: tmp, Err: err}
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return &StorageError{Op: "write", Path: tmp, Err: err}
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return &StorageError{Op: "sync", Path: tmp, Err: err}
	}
	if err := f.Close(); err != nil {
		return &StorageError{Op: "close", Path: tmp, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		return &StorageError{Op: "rename", Path: path, Err: err}
	}
	return nil
}

// AppendLine appends line plus a newline and flushes it to disk.
func (s *Store) AppendLine(path, line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &StorageError{Op: "mkdir", Path: path, Err: err}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return &StorageError{Op: "open", Path: path, Err: err}
	}
	if _, err := f.WriteString(line + "\n"); err != nil {
		_ = f.Close()
		return &StorageError{Op: "append", Path: path, Err: err}
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return &StorageError{Op: "sync", Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return &StorageError{Op: "close", Path: path, Err: err}
	}
	return nil
}

// ReadLines returns the trimmed, non-blank lines of path. A missing file yields no lines.
func (s *Store) ReadLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, &StorageError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	out := []string{}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		l := strings.TrimSpace(sc.Text())
		if l == "" {
			continue
		}
		out = append(out, l)
	}
	if err := sc.Err(); err != nil {
		return nil, &StorageError{Op: "scan", Path: path, Err: err}
	}
	return out, nil
}

// Touch creates an empty file (and parent dirs) if path does not exist yet.
func (s *Store) Touch(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &StorageError{Op: "mkdir", Path: path, Err: err}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return &StorageError{Op: "touch", Path: path, Err: err}
	}
	return f.Close()
}

// Exists reports whether path exists.
func (s *Store) Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, &StorageError{Op: "stat", Path: path, Err: err}
}
