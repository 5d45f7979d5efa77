package cose_test

import (
	"bytes"
	"testing"

	"github.com/qcbor-go/qcbor/cose"
)

// xorEncryptor is a minimal Encryptor/Decryptor stub for exercising the
// Encrypt/Encrypt0 message-flow plumbing; it is not a real AEAD and
// exists only so these tests don't depend on a concrete cipher this
// repository doesn't otherwise wire in.
type xorEncryptor struct {
	key byte
}

func (x xorEncryptor) Algorithm() int64 { return -999 }

func (x xorEncryptor) Encrypt(plaintext, aad []byte) ([]byte, error) {
	out := make([]byte, len(plaintext))
	for i, b := range plaintext {
		out[i] = b ^ x.key
	}
	return out, nil
}

func (x xorEncryptor) Decrypt(ciphertext, aad []byte) ([]byte, error) {
	return x.Encrypt(ciphertext, aad)
}

func TestEncrypt0RoundTrip(t *testing.T) {
	enc := xorEncryptor{key: 0x42}
	plaintext := []byte("secret message")

	data, err := cose.Encrypt0(&cose.Headers{}, plaintext, enc, nil)
	if err != nil {
		t.Fatalf("encrypt0: %v", err)
	}

	msg, err := cose.DecodeEncrypt0(data, nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !msg.CiphertextPresent {
		t.Fatal("expected ciphertext to be present")
	}

	got, err := cose.Decrypt0(msg, enc)
	if err != nil {
		t.Fatalf("decrypt0: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Errorf("plaintext mismatch: got %q, want %q", got, plaintext)
	}
}

func TestEncryptWithRecipients(t *testing.T) {
	enc := xorEncryptor{key: 0x17}
	plaintext := []byte("content for multiple recipients")

	recipients := []cose.RecipientEntry{
		{Headers: &cose.Headers{}, Ciphertext: []byte("wrapped-key-1")},
		{Headers: &cose.Headers{}, Ciphertext: []byte("wrapped-key-2")},
	}

	data, err := cose.Encrypt(&cose.Headers{}, plaintext, enc, recipients, nil)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	msg, err := cose.DecodeEncrypt(data, nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(msg.Recipients) != 2 {
		t.Fatalf("expected 2 recipients, got %d", len(msg.Recipients))
	}
	if string(msg.Recipients[0].Ciphertext) != "wrapped-key-1" {
		t.Errorf("unexpected recipient 0 ciphertext: %q", msg.Recipients[0].Ciphertext)
	}

	got, err := cose.Decrypt(msg, enc)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Errorf("plaintext mismatch: got %q, want %q", got, plaintext)
	}
}

func TestEncryptWithNestedRecipients(t *testing.T) {
	enc := xorEncryptor{key: 0x99}
	plaintext := []byte("nested recipient content")

	recipients := []cose.RecipientEntry{
		{
			Headers:    &cose.Headers{},
			Ciphertext: nil,
			Recipients: []cose.RecipientEntry{
				{Headers: &cose.Headers{}, Ciphertext: []byte("inner-wrapped-key")},
			},
		},
	}

	data, err := cose.Encrypt(&cose.Headers{}, plaintext, enc, recipients, nil)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	msg, err := cose.DecodeEncrypt(data, nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(msg.Recipients) != 1 {
		t.Fatalf("expected 1 top-level recipient, got %d", len(msg.Recipients))
	}
	if msg.Recipients[0].Ciphertext != nil {
		t.Errorf("expected nil ciphertext for direct-agreement recipient, got %q", msg.Recipients[0].Ciphertext)
	}
	if len(msg.Recipients[0].Recipients) != 1 {
		t.Fatalf("expected 1 nested recipient, got %d", len(msg.Recipients[0].Recipients))
	}
	if string(msg.Recipients[0].Recipients[0].Ciphertext) != "inner-wrapped-key" {
		t.Errorf("unexpected nested recipient ciphertext: %q", msg.Recipients[0].Recipients[0].Ciphertext)
	}
}
