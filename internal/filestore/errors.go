package filestore

import "fmt"

// StorageError wraps an I/O failure on a store path.
// Callers decide whether it is fatal (startup) or retried (worker loop).
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("filestore: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// DecodeError reports malformed JSON content. The file stays unusable until fixed externally.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("filestore: decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
