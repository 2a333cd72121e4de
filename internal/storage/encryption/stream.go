package encryption

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Framing of an encrypted file: magic | iv | ciphertext | tag.
const (
	ivSize     = 12
	tagSize    = 16
	headerSize = len(magicString) + ivSize

	magicString = "DVE1"
)

var magic = []byte(magicString)

var (
	ErrInvalidHeader  = errors.New("encrypted stream: invalid header")
	ErrTruncated      = errors.New("encrypted stream: truncated")
	ErrAuthentication = errors.New("encrypted stream: authentication failed")
)

// gcmStream holds the CTR keystream and the GHASH state of one AES-256-GCM stream.
type gcmStream struct {
	ctr     cipher.Stream
	hash    *ghash
	tagMask [16]byte
}

func newGCMStream(key, iv []byte) (*gcmStream, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init aes: %w", err)
	}

	var h [16]byte
	block.Encrypt(h[:], h[:])

	// J0 = iv || 0^31 || 1; the tag mask is E(K, J0) and data starts at inc32(J0).
	var j0 [16]byte
	copy(j0[:], iv)
	binary.BigEndian.PutUint32(j0[12:], 1)

	s := &gcmStream{hash: newGHASH(h[:])}
	block.Encrypt(s.tagMask[:], j0[:])

	binary.BigEndian.PutUint32(j0[12:], 2)
	s.ctr = cipher.NewCTR(block, j0[:])
	return s, nil
}

func (s *gcmStream) tag() [16]byte {
	sum := s.hash.Sum()
	for i := range sum {
		sum[i] ^= s.tagMask[i]
	}
	return sum
}

// encryptReader yields header, ciphertext and finally the tag.
type encryptReader struct {
	src     io.Reader
	gcm     *gcmStream
	pending []byte
	srcDone bool
	tagSent bool
}

func newEncryptReader(src io.Reader, key []byte) (*encryptReader, error) {
	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("generate iv: %w", err)
	}
	gcm, err := newGCMStream(key, iv)
	if err != nil {
		return nil, err
	}

	header := make([]byte, 0, headerSize)
	header = append(header, magic...)
	header = append(header, iv...)

	return &encryptReader{src: src, gcm: gcm, pending: header}, nil
}

func (e *encryptReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for {
		if len(e.pending) > 0 {
			n := copy(p, e.pending)
			e.pending = e.pending[n:]
			return n, nil
		}
		if e.srcDone {
			if e.tagSent {
				return 0, io.EOF
			}
			tag := e.gcm.tag()
			e.pending = tag[:]
			e.tagSent = true
			continue
		}

		n, err := e.src.Read(p)
		if n > 0 {
			e.gcm.ctr.XORKeyStream(p[:n], p[:n])
			e.gcm.hash.Write(p[:n])
		}
		if errors.Is(err, io.EOF) {
			e.srcDone = true
			if n > 0 {
				return n, nil
			}
			continue
		}
		if err != nil {
			return n, err
		}
		if n > 0 {
			return n, nil
		}
	}
}

// decryptReader parses the header, decrypts the body and holds back the trailing
// tagSize bytes until the source is exhausted, so the tag may arrive split across any
// number of chunks.
type decryptReader struct {
	src    io.Reader
	key    []byte
	header [headerSize]byte
	nHead  int
	gcm    *gcmStream

	tail    []byte
	scratch []byte
	done    bool
	err     error
}

func newDecryptReader(src io.Reader, key []byte) *decryptReader {
	return &decryptReader{src: src, key: key, tail: make([]byte, 0, tagSize)}
}

func (d *decryptReader) readHeader() error {
	for d.nHead < headerSize {
		n, err := d.src.Read(d.header[d.nHead:])
		d.nHead += n
		if d.nHead == headerSize {
			break
		}
		if errors.Is(err, io.EOF) {
			return ErrTruncated
		}
		if err != nil {
			return err
		}
	}
	if !bytes.Equal(d.header[:len(magic)], magic) {
		return ErrInvalidHeader
	}
	gcm, err := newGCMStream(d.key, d.header[len(magic):])
	if err != nil {
		return err
	}
	d.gcm = gcm
	return nil
}

func (d *decryptReader) Read(p []byte) (int, error) {
	if d.err != nil {
		return 0, d.err
	}
	if d.done {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}
	if d.gcm == nil {
		if err := d.readHeader(); err != nil {
			d.err = err
			return 0, err
		}
	}

	if cap(d.scratch) < len(p)+tagSize {
		d.scratch = make([]byte, 0, len(p)+tagSize)
	}

	for {
		n, err := d.src.Read(p)
		data := append(d.scratch[:0], d.tail...)
		data = append(data, p[:n]...)

		if len(data) > tagSize {
			body := data[:len(data)-tagSize]
			d.tail = append(d.tail[:0], data[len(data)-tagSize:]...)

			d.gcm.hash.Write(body)
			d.gcm.ctr.XORKeyStream(p[:len(body)], body)

			if errors.Is(err, io.EOF) {
				if vErr := d.verify(); vErr != nil {
					return 0, vErr
				}
			} else if err != nil {
				d.err = err
			}
			return len(body), nil
		}
		d.tail = append(d.tail[:0], data...)

		if errors.Is(err, io.EOF) {
			if vErr := d.verify(); vErr != nil {
				return 0, vErr
			}
			return 0, io.EOF
		}
		if err != nil {
			d.err = err
			return 0, err
		}
	}
}

func (d *decryptReader) verify() error {
	if len(d.tail) != tagSize {
		d.err = ErrTruncated
		return d.err
	}
	expected := d.gcm.tag()
	if subtle.ConstantTimeCompare(expected[:], d.tail) != 1 {
		d.err = ErrAuthentication
		return d.err
	}
	d.done = true
	return nil
}
