package core

// streaming.go holds the io.Reader wrappers applied to an uploaded sheet
// before the CSV parser sees it:
//
//   - a leading UTF-8 byte order mark is dropped
//   - invalid UTF-8 bytes become '?'
//   - the byte count is tracked and capped at the configured size limit
//
// Each wrapper works in constant memory regardless of file size.

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"unicode/utf8"
)

// ErrFileTooLarge is returned once more than the allowed bytes have been read.
var ErrFileTooLarge = errors.New("file exceeds maximum upload size")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// SkipBOM returns a reader that omits a leading UTF-8 byte order mark.
func SkipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}

// UTF8Sanitizer replaces each invalid UTF-8 byte with '?'. Multi-byte
// sequences split across reads are carried over and decoded whole.
type UTF8Sanitizer struct {
	src   io.Reader
	chunk [4096]byte
	in    []byte // bytes not yet decoded
	out   []byte // decoded bytes not yet returned
	err   error
}

func NewUTF8Sanitizer(r io.Reader) *UTF8Sanitizer {
	return &UTF8Sanitizer{src: r}
}

func (s *UTF8Sanitizer) Read(p []byte) (int, error) {
	for len(s.out) == 0 && s.err == nil {
		n, err := s.src.Read(s.chunk[:])
		s.in = append(s.in, s.chunk[:n]...)
		s.err = err
		s.out = s.decode(s.out, err != nil)
	}
	if len(s.out) == 0 {
		return 0, s.err
	}

	n := copy(p, s.out)
	if n == len(s.out) {
		s.out = s.out[:0]
	} else {
		s.out = s.out[n:]
	}
	return n, nil
}

// decode moves complete runes from s.in to dst. When final is false a
// trailing partial sequence stays in s.in for the next read.
func (s *UTF8Sanitizer) decode(dst []byte, final bool) []byte {
	b := s.in
	i := 0
	for i < len(b) {
		if b[i] < utf8.RuneSelf {
			dst = append(dst, b[i])
			i++
			continue
		}
		if !final && !utf8.FullRune(b[i:]) {
			break
		}
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size == 1 {
			dst = append(dst, '?')
		} else {
			dst = append(dst, b[i:i+size]...)
		}
		i += size
	}
	s.in = append(b[:0], b[i:]...)
	return dst
}

// CountingReader counts bytes read and fails with ErrFileTooLarge past Limit.
// A Limit of zero disables the cap.
type CountingReader struct {
	src       io.Reader
	BytesRead int64
	Limit     int64
}

func NewCountingReader(r io.Reader, limit int64) *CountingReader {
	return &CountingReader{src: r, Limit: limit}
}

func (r *CountingReader) Read(p []byte) (int, error) {
	n, err := r.src.Read(p)
	r.BytesRead += int64(n)
	if r.Limit > 0 && r.BytesRead > r.Limit {
		return n, ErrFileTooLarge
	}
	return n, err
}

// WrapUpload applies the size cap, BOM removal and UTF-8 repair, in that order.
func WrapUpload(r io.Reader, limit int64) (io.Reader, *CountingReader) {
	counter := NewCountingReader(r, limit)
	return NewUTF8Sanitizer(SkipBOM(counter)), counter
}
