package geobase

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
)

// EncryptionKeySize is the key length AES-256 requires
const EncryptionKeySize = 32

// EncryptionBackend seals document bodies with AES-256-GCM before they reach
// the wrapped backend. The storage key is bound as additional data, so a body
// copied to another key no longer opens. Keys, listings and ETags pass through.
//
//	key, err := geobase.ParseEncryptionKey(os.Getenv(geobase.EnvEncryption))
//	backend, err := geobase.NewEncryptionBackend(geobase.NewFilesystemBackend("./data"), key)
type EncryptionBackend struct {
	Backend
	aead cipher.AEAD
}

// NewEncryptionBackend wraps backend. A key that is not EncryptionKeySize bytes is ErrInvalidConfig.
func NewEncryptionBackend(backend Backend, key []byte) (*EncryptionBackend, error) {
	if len(key) != EncryptionKeySize {
		return nil, encryptionKeyError(fmt.Sprintf("key must be %d bytes, got %d", EncryptionKeySize, len(key)))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &EncryptionBackend{Backend: backend, aead: aead}, nil
}

// ParseEncryptionKey decodes the standard base64 form used in config files and GEO_DB_ENCRYPTION_KEY
func ParseEncryptionKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, encryptionKeyError("key must be base64 encoded")
	}
	if len(key) != EncryptionKeySize {
		return nil, encryptionKeyError(fmt.Sprintf("key must decode to %d bytes, got %d", EncryptionKeySize, len(key)))
	}
	return key, nil
}

func encryptionKeyError(reason string) error {
	return WithContext(ErrInvalidConfig, map[string]interface{}{
		"field":  "encryption_key",
		"reason": reason,
	})
}

func (e *EncryptionBackend) Put(ctx context.Context, key string, data []byte) error {
	sealed, err := e.seal(key, data)
	if err != nil {
		return err
	}
	return e.Backend.Put(ctx, key, sealed)
}

func (e *EncryptionBackend) Get(ctx context.Context, key string) ([]byte, error) {
	sealed, err := e.Backend.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return e.open(key, sealed)
}

// PutIfMatch compares against the ETag of the stored ciphertext
func (e *EncryptionBackend) PutIfMatch(ctx context.Context, key string, data []byte, expectedETag string) (string, error) {
	sealed, err := e.seal(key, data)
	if err != nil {
		return "", err
	}
	return e.Backend.PutIfMatch(ctx, key, sealed, expectedETag)
}

func (e *EncryptionBackend) GetWithETag(ctx context.Context, key string) ([]byte, string, error) {
	sealed, etag, err := e.Backend.GetWithETag(ctx, key)
	if err != nil {
		return nil, "", err
	}
	plain, err := e.open(key, sealed)
	if err != nil {
		return nil, "", err
	}
	return plain, etag, nil
}

// seal returns nonce || ciphertext
func (e *EncryptionBackend) seal(key string, plain []byte) ([]byte, error) {
	nonce := make([]byte, e.aead.NonceSize(), e.aead.NonceSize()+len(plain)+e.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return e.aead.Seal(nonce, nonce, plain, []byte(key)), nil
}

func (e *EncryptionBackend) open(key string, sealed []byte) ([]byte, error) {
	n := e.aead.NonceSize()
	if len(sealed) < n+e.aead.Overhead() {
		return nil, WithContext(fmt.Errorf("%w: stored body too short to decrypt", ErrStorage), map[string]interface{}{
			"key":    key,
			"length": len(sealed),
		})
	}
	plain, err := e.aead.Open(nil, sealed[:n], sealed[n:], []byte(key))
	if err != nil {
		return nil, WithContext(fmt.Errorf("%w: decryption failed: %w", ErrStorage, err), map[string]interface{}{
			"key": key,
		})
	}
	return plain, nil
}
