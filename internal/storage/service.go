package storage

import (
	"context"
	"io"
)

// EncryptionContext is what a reader needs to decrypt a file written through the
// encryption layer. It is persisted alongside the document.
type EncryptionContext struct {
	WrappedKey string
	Algorithm  string
	KEKVersion string
}

// StorageContext is produced by SaveFile.
type StorageContext struct {
	StorageKey string
	Encryption *EncryptionContext
}

// Encryptor transparently encrypts and decrypts file streams.
type Encryptor interface {
	// EncryptStream returns a reader yielding the ciphertext framing of r. The returned
	// context is only meaningful once the reader has been fully consumed.
	EncryptStream(r io.Reader) (io.Reader, *EncryptionContext, error)
	// DecryptStream returns a reader yielding the plaintext of the framed ciphertext r.
	DecryptStream(r io.Reader, ec *EncryptionContext) (io.Reader, error)
}

// Service is the file storage surface used by the ingestion pipeline: a driver plus
// an optional encryption layer. It is safe for concurrent use.
type Service struct {
	driver    Driver
	encryptor Encryptor
}

// NewService composes driver with encryptor. A nil encryptor disables encryption.
func NewService(driver Driver, encryptor Encryptor) *Service {
	return &Service{driver: driver, encryptor: encryptor}
}

// SaveFile streams r to the driver under key.
func (s *Service) SaveFile(ctx context.Context, r io.Reader, key, mimeType, fileName string) (*StorageContext, error) {
	opt := PutObjectOptions{
		Size:        -1,
		ContentType: mimeType,
		Metadata:    map[string]string{"original-filename": fileName},
	}

	if s.encryptor == nil {
		if _, err := s.driver.Put(ctx, key, r, opt); err != nil {
			return nil, err
		}
		return &StorageContext{StorageKey: key}, nil
	}

	encrypted, ec, err := s.encryptor.EncryptStream(r)
	if err != nil {
		return nil, err
	}
	opt.ContentType = "application/octet-stream"
	if _, err := s.driver.Put(ctx, key, encrypted, opt); err != nil {
		return nil, err
	}
	return &StorageContext{StorageKey: key, Encryption: ec}, nil
}

// GetFileStream opens key for reading. When ec is nil the stored bytes are returned
// unmodified, which keeps files written before encryption was enabled readable.
func (s *Service) GetFileStream(ctx context.Context, key string, ec *EncryptionContext) (io.ReadCloser, error) {
	rc, err := s.driver.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if ec == nil {
		return rc, nil
	}
	if s.encryptor == nil {
		rc.Close()
		return nil, errEncryptionDisabled
	}

	plain, err := s.encryptor.DecryptStream(rc, ec)
	if err != nil {
		rc.Close()
		return nil, err
	}
	return readCloser{Reader: plain, Closer: rc}, nil
}

// DeleteFile removes key from the driver.
func (s *Service) DeleteFile(ctx context.Context, key string) error {
	return s.driver.Delete(ctx, key)
}

type readCloser struct {
	io.Reader
	io.Closer
}
