// Package stream provides pass-through reader stages used by the ingestion pipeline.
// None of the stages buffer; each Read is forwarded to the wrapped reader.
package stream

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"hash"
	"io"
	"sync"
)

// ErrHashNotComputed is returned by HashingReader.Hash before the stream is drained.
var ErrHashNotComputed = errors.New("hash not computed yet: stream has not been fully consumed")

// ByteCountChangeFunc is called after every chunk with the running total.
// Calling abort terminates the stream: the current and every later Read return err.
type ByteCountChangeFunc func(total int64, abort func(err error))

// CountingReader counts the bytes flowing through it.
type CountingReader struct {
	r        io.Reader
	onChange ByteCountChangeFunc

	mu       sync.Mutex
	total    int64
	abortErr error
}

// NewCountingReader wraps r. onChange may be nil.
func NewCountingReader(r io.Reader, onChange ByteCountChangeFunc) *CountingReader {
	return &CountingReader{r: r, onChange: onChange}
}

func (c *CountingReader) Read(p []byte) (int, error) {
	if err := c.aborted(); err != nil {
		return 0, err
	}

	n, err := c.r.Read(p)
	if n > 0 {
		c.mu.Lock()
		c.total += int64(n)
		total := c.total
		c.mu.Unlock()

		if c.onChange != nil {
			c.onChange(total, c.abort)
		}
		if abortErr := c.aborted(); abortErr != nil {
			return 0, abortErr
		}
	}
	return n, err
}

// Count returns the number of bytes read so far.
func (c *CountingReader) Count() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

func (c *CountingReader) abort(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.abortErr == nil {
		c.abortErr = err
	}
}

func (c *CountingReader) aborted() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.abortErr
}

// HashingReader computes the SHA-256 digest of every byte read through it.
type HashingReader struct {
	r io.Reader
	h hash.Hash

	mu     sync.Mutex
	digest string
	done   bool
}

// NewHashingReader wraps r.
func NewHashingReader(r io.Reader) *HashingReader {
	return &HashingReader{r: r, h: sha256.New()}
}

func (h *HashingReader) Read(p []byte) (int, error) {
	n, err := h.r.Read(p)
	if n > 0 {
		h.mu.Lock()
		h.h.Write(p[:n])
		h.mu.Unlock()
	}
	if errors.Is(err, io.EOF) {
		h.finalize()
	}
	return n, err
}

func (h *HashingReader) finalize() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.done {
		return
	}
	h.digest = hex.EncodeToString(h.h.Sum(nil))
	h.done = true
}

// Hash returns the hex encoded SHA-256 digest. It fails with ErrHashNotComputed
// until the wrapped reader has reported io.EOF.
func (h *HashingReader) Hash() (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.done {
		return "", ErrHashNotComputed
	}
	return h.digest, nil
}
