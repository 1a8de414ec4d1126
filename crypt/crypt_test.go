package crypt

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

func TestAESGCMRoundtrip(t *testing.T) {
	enc, err := NewAESGCM(bytes.Repeat([]byte{0x42}, 32))
	if err != nil {
		t.Fatalf("NewAESGCM: %v", err)
	}

	ctx := context.Background()
	plaintext := []byte(`{"card_number":"4242424242424242"}`)

	sealed, err := enc.Encrypt(ctx, "merchant_a", plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if bytes.Contains(sealed, []byte("4242")) {
		t.Fatal("ciphertext leaks plaintext")
	}

	opened, err := enc.Decrypt(ctx, "merchant_a", sealed)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(opened, plaintext) {
		t.Fatalf("roundtrip mismatch: got %q", opened)
	}
}

func TestAESGCMMerchantIsolation(t *testing.T) {
	enc, err := NewAESGCM(bytes.Repeat([]byte{0x42}, 32))
	if err != nil {
		t.Fatalf("NewAESGCM: %v", err)
	}

	ctx := context.Background()
	sealed, err := enc.Encrypt(ctx, "merchant_a", []byte("secret"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	if _, err := enc.Decrypt(ctx, "merchant_b", sealed); !errors.Is(err, ErrDecrypt) {
		t.Fatalf("expected ErrDecrypt for wrong merchant, got %v", err)
	}
}

func TestAESGCMShortKey(t *testing.T) {
	if _, err := NewAESGCM([]byte("short")); err == nil {
		t.Fatal("expected error for short master key")
	}
}

func TestAESGCMTamperedCiphertext(t *testing.T) {
	enc, _ := NewAESGCM(bytes.Repeat([]byte{0x42}, 32))
	ctx := context.Background()

	sealed, err := enc.Encrypt(ctx, "merchant_a", []byte("secret"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	sealed[len(sealed)-1] ^= 0xFF

	if _, err := enc.Decrypt(ctx, "merchant_a", sealed); !errors.Is(err, ErrDecrypt) {
		t.Fatalf("expected ErrDecrypt for tampered ciphertext, got %v", err)
	}
}
