package store

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
)

// ErrDecrypt means a stored value could not be opened with the configured key.
var ErrDecrypt = errors.New("decrypting value")

// EncryptedKV seals every value with AES-256-GCM before handing it to the inner KV.
// Keys stay in clear text so prefix scans keep working.
type EncryptedKV struct {
	inner KV
	aead  cipher.AEAD
}

// NewEncryptedKV derives a 256-bit key from passphrase and wraps inner.
func NewEncryptedKV(inner KV, passphrase string) (*EncryptedKV, error) {
	if passphrase == "" {
		return nil, errors.New("encryption key is empty")
	}
	sum := sha256.Sum256([]byte(passphrase))
	block, err := aes.NewCipher(sum[:])
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating gcm: %w", err)
	}
	return &EncryptedKV{inner: inner, aead: aead}, nil
}

func (e *EncryptedKV) seal(key string, plain []byte) ([]byte, error) {
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	// The key is bound as additional data so a value cannot be moved to another key.
	return e.aead.Seal(nonce, nonce, plain, []byte(key)), nil
}

func (e *EncryptedKV) open(key string, sealed []byte) ([]byte, error) {
	ns := e.aead.NonceSize()
	if len(sealed) < ns {
		return nil, fmt.Errorf("%w %s: ciphertext too short", ErrDecrypt, key)
	}
	plain, err := e.aead.Open(nil, sealed[:ns], sealed[ns:], []byte(key))
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrDecrypt, key, err)
	}
	return plain, nil
}

func (e *EncryptedKV) Get(ctx context.Context, key string) ([]byte, error) {
	sealed, err := e.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return e.open(key, sealed)
}

func (e *EncryptedKV) Put(ctx context.Context, key string, value []byte) error {
	sealed, err := e.seal(key, value)
	if err != nil {
		return err
	}
	return e.inner.Put(ctx, key, sealed)
}

func (e *EncryptedKV) Delete(ctx context.Context, key string) error {
	return e.inner.Delete(ctx, key)
}

func (e *EncryptedKV) Scan(ctx context.Context, prefix string, fn func(key string, value []byte) error) error {
	return e.inner.Scan(ctx, prefix, func(key string, sealed []byte) error {
		plain, err := e.open(key, sealed)
		if err != nil {
			return err
		}
		return fn(key, plain)
	})
}

func (e *EncryptedKV) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	return e.inner.DeletePrefix(ctx, prefix)
}

func (e *EncryptedKV) Close() error {
	return e.inner.Close()
}
