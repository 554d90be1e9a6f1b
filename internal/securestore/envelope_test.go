package securestore

import (
	"bytes"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	plaintext := []byte(`{"id":"u-1","role":"admin"}`)
	encrypted, err := Encrypt("passphrase-1", plaintext)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if bytes.Contains(encrypted, plaintext) {
		t.Fatal("ciphertext must not contain plaintext")
	}
	decrypted, err := Decrypt("passphrase-1", encrypted)
	if err != nil {
		t.Fatalf("decrypt failed: %v", err)
	}
	if !bytes.Equal(decrypted, plaintext) {
		t.Fatalf("round trip mismatch: got %q", decrypted)
	}
}

func TestDecryptWrongPassphrase(t *testing.T) {
	encrypted, err := Encrypt("right", []byte("secret"))
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if _, err := Decrypt("wrong", encrypted); err != ErrAuthFailed {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
}

func TestDecryptRejectsForeignData(t *testing.T) {
	cases := [][]byte{
		nil,
		[]byte("not an envelope"),
		[]byte("SDENC1\nnot json"),
		[]byte(`SDENC1\n{"version":99}`),
	}
	for _, data := range cases {
		if _, err := Decrypt("pass", data); err == nil {
			t.Fatalf("expected error for %q", data)
		}
	}
}

func TestEncryptProducesFreshNonces(t *testing.T) {
	a, err := Encrypt("pass", []byte("same"))
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	b, err := Encrypt("pass", []byte("same"))
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if bytes.Equal(a, b) {
		t.Fatal("two encryptions of the same payload must differ")
	}
}
