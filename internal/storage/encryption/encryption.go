// Package encryption implements the transparent file encryption layer of the storage
// service. Each file gets a fresh 256-bit data key; the data key is wrapped with a
// versioned key-encrypting key (KEK) and only the wrapped form is persisted.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"docvault/internal/storage"
)

// AlgorithmAES256GCM identifies the only supported file and key-wrap algorithm.
const AlgorithmAES256GCM = "aes-256-gcm"

const keySize = 32

var (
	ErrUnsupportedAlgorithm = errors.New("unsupported encryption algorithm")
	ErrKEKNotFound          = errors.New("key encryption key version not found")
	ErrWrapKey              = errors.New("unable to wrap file encryption key")
	ErrUnwrapKey            = errors.New("unable to unwrap file encryption key")
	ErrNoKeys               = errors.New("no key encryption keys configured")
)

// KEK is one version of the key-encrypting key.
type KEK struct {
	Version string
	Key     []byte
}

// ParseKEKs parses "version:base64key" pairs separated by commas. A single entry
// without a version prefix is accepted as version "1".
func ParseKEKs(raw string) ([]KEK, error) {
	var keks []KEK
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		version, encoded := "1", entry
		if i := strings.Index(entry, ":"); i >= 0 {
			version, encoded = strings.TrimSpace(entry[:i]), strings.TrimSpace(entry[i+1:])
		}
		if version == "" {
			return nil, fmt.Errorf("key encryption key %q: empty version", entry)
		}

		key, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("key encryption key version %s: invalid base64: %w", version, err)
		}
		if len(key) != keySize {
			return nil, fmt.Errorf("key encryption key version %s: want %d bytes, got %d", version, keySize, len(key))
		}
		keks = append(keks, KEK{Version: version, Key: key})
	}
	if len(keks) == 0 {
		return nil, ErrNoKeys
	}
	return keks, nil
}

// Layer implements storage.Encryptor.
type Layer struct {
	keks   map[string][]byte
	latest string
}

var _ storage.Encryptor = (*Layer)(nil)

// New builds the layer. New files are wrapped with the lexicographically highest version.
func New(keks []KEK) (*Layer, error) {
	if len(keks) == 0 {
		return nil, ErrNoKeys
	}
	l := &Layer{keks: make(map[string][]byte, len(keks))}
	versions := make([]string, 0, len(keks))
	for _, k := range keks {
		if len(k.Key) != keySize {
			return nil, fmt.Errorf("key encryption key version %s: want %d bytes, got %d", k.Version, keySize, len(k.Key))
		}
		if _, dup := l.keks[k.Version]; dup {
			return nil, fmt.Errorf("duplicate key encryption key version %s", k.Version)
		}
		l.keks[k.Version] = k.Key
		versions = append(versions, k.Version)
	}
	sort.Strings(versions)
	l.latest = versions[len(versions)-1]
	return l, nil
}

// LatestVersion returns the KEK version used for new files.
func (l *Layer) LatestVersion() string {
	return l.latest
}

// EncryptStream generates a data key, wraps it with the latest KEK and returns the
// ciphertext stream of r.
func (l *Layer) EncryptStream(r io.Reader) (io.Reader, *storage.EncryptionContext, error) {
	dataKey := make([]byte, keySize)
	if _, err := rand.Read(dataKey); err != nil {
		return nil, nil, fmt.Errorf("generate file encryption key: %w", err)
	}

	wrapped, err := wrapKey(l.keks[l.latest], dataKey)
	if err != nil {
		return nil, nil, err
	}

	enc, err := newEncryptReader(r, dataKey)
	if err != nil {
		return nil, nil, err
	}

	return enc, &storage.EncryptionContext{
		WrappedKey: wrapped,
		Algorithm:  AlgorithmAES256GCM,
		KEKVersion: l.latest,
	}, nil
}

// DecryptStream unwraps the data key described by ec and returns the plaintext stream of r.
func (l *Layer) DecryptStream(r io.Reader, ec *storage.EncryptionContext) (io.Reader, error) {
	if ec.Algorithm != AlgorithmAES256GCM {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, ec.Algorithm)
	}
	kek, ok := l.keks[ec.KEKVersion]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrKEKNotFound, ec.KEKVersion)
	}
	dataKey, err := unwrapKey(kek, ec.WrappedKey)
	if err != nil {
		return nil, err
	}
	return newDecryptReader(r, dataKey), nil
}

// wrapKey seals dataKey with AES-256-GCM under kek and returns base64(nonce || sealed).
func wrapKey(kek, dataKey []byte) (string, error) {
	aead, err := newAEAD(kek)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrWrapKey, err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("%w: %v", ErrWrapKey, err)
	}
	sealed := aead.Seal(nonce, nonce, dataKey, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func unwrapKey(kek []byte, wrapped string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(wrapped)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnwrapKey, err)
	}
	aead, err := newAEAD(kek)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnwrapKey, err)
	}
	if len(raw) < aead.NonceSize()+aead.Overhead() {
		return nil, fmt.Errorf("%w: wrapped key too short", ErrUnwrapKey)
	}
	nonce, sealed := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	dataKey, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnwrapKey, err)
	}
	return dataKey, nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
