package stream

import (
	"archive/zip"
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"iter"
)

// MaxLineBytes bounds one JSONL line. Cached book text travels in a single
// line, so this must exceed the largest content record.
const MaxLineBytes = 64 << 20

// ErrFileNotFound indicates a file was not found in the archive.
var ErrFileNotFound = errors.New("file not found in backup")

// OpenFile finds and opens a file from a zip archive.
func OpenFile(zr *zip.Reader, path string) (io.ReadCloser, error) {
	for _, f := range zr.File {
		if f.Name == path {
			return f.Open()
		}
	}
	return nil, ErrFileNotFound
}

// Reader streams records from a JSONL file. Unknown fields are rejected.
type Reader[T any] struct {
	rc      io.ReadCloser
	scanner *bufio.Scanner
}

// NewReader creates a streaming reader for type T.
func NewReader[T any](rc io.ReadCloser) *Reader[T] {
	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineBytes)
	return &Reader[T]{rc: rc, scanner: scanner}
}

// All returns an iterator over the records in the file. A malformed line
// yields an error and iteration continues with the next line.
func (r *Reader[T]) All() iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		defer r.rc.Close()

		for r.scanner.Scan() {
			line := r.scanner.Bytes()
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}

			dec := json.NewDecoder(bytes.NewReader(line))
			dec.DisallowUnknownFields()
			rec := new(T)
			if err := dec.Decode(rec); err != nil {
				if !yield(nil, err) {
					return
				}
				continue
			}
			if !yield(rec, nil) {
				return
			}
		}

		if err := r.scanner.Err(); err != nil {
			yield(nil, err)
		}
	}
}
