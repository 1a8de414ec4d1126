// Package crypt encrypts webhook payload snapshots at rest. Request and
// response bodies may carry card data and PII, so events persist only
// ciphertext; merchant-scoped key derivation keeps tenants isolated.
package crypt

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
)

// ErrDecrypt indicates ciphertext that could not be authenticated or
// decrypted.
var ErrDecrypt = errors.New("crypt: decryption failed")

// Encryptor protects payload snapshots at rest. Keys are scoped per
// merchant so ciphertext never crosses tenants.
type Encryptor interface {
	Encrypt(ctx context.Context, merchantID string, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, merchantID string, ciphertext []byte) ([]byte, error)
}

// AESGCM derives a per-merchant AES-256 key from a master key via
// HMAC-SHA256 and seals payloads with AES-GCM. The nonce is prepended to
// the ciphertext.
type AESGCM struct {
	masterKey []byte
}

// NewAESGCM creates an encryptor from a master key. The key must be at
// least 32 bytes.
func NewAESGCM(masterKey []byte) (*AESGCM, error) {
	if len(masterKey) < 32 {
		return nil, errors.New("crypt: master key must be at least 32 bytes")
	}
	return &AESGCM{masterKey: masterKey}, nil
}

func (e *AESGCM) gcm(merchantID string) (cipher.AEAD, error) {
	mac := hmac.New(sha256.New, e.masterKey)
	mac.Write([]byte(merchantID))
	key := mac.Sum(nil)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypt: %w", err)
	}
	return cipher.NewGCM(block)
}

// Encrypt seals plaintext under the merchant's derived key.
func (e *AESGCM) Encrypt(_ context.Context, merchantID string, plaintext []byte) ([]byte, error) {
	gcm, err := e.gcm(merchantID)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("crypt: %w", err)
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens ciphertext sealed by Encrypt for the same merchant.
func (e *AESGCM) Decrypt(_ context.Context, merchantID string, ciphertext []byte) ([]byte, error) {
	gcm, err := e.gcm(merchantID)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, ErrDecrypt
	}

	nonce, sealed := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}

// Plain stores payloads unencrypted. Intended for tests and local
// development only.
type Plain struct{}

func (Plain) Encrypt(_ context.Context, _ string, plaintext []byte) ([]byte, error) {
	return plaintext, nil
}

func (Plain) Decrypt(_ context.Context, _ string, ciphertext []byte) ([]byte, error) {
	return ciphertext, nil
}
