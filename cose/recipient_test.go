package cose_test

import (
	"bytes"
	"testing"

	qcbor "github.com/qcbor-go/qcbor"
	"github.com/qcbor-go/qcbor/cose"
)

func TestEphemeralKeyRoundTrip(t *testing.T) {
	ek := cose.EphemeralKey{
		Kty:    cose.KeyTypeEC2,
		Crv:    1,
		X:      []byte{1, 2, 3, 4},
		YBytes: []byte{5, 6, 7, 8},
	}

	enc := qcbor.NewEncoder()
	if err := cose.EphemeralKeyEncoder(enc, ek); err != nil {
		t.Fatalf("encode: %v", err)
	}
	data, err := enc.Finish()
	if err != nil {
		t.Fatalf("finish: %v", err)
	}

	dec, err := qcbor.NewDecoder(data)
	if err != nil {
		t.Fatalf("new decoder: %v", err)
	}
	opened, err := dec.Next()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	decoder := cose.EphemeralKeyDecoder(cose.KeyTypeEC2)
	got, err := decoder(dec, opened)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	gotEK := got.(cose.EphemeralKey)
	if gotEK.Kty != ek.Kty || gotEK.Crv != ek.Crv || !bytes.Equal(gotEK.X, ek.X) || !bytes.Equal(gotEK.YBytes, ek.YBytes) {
		t.Errorf("round trip mismatch: got %+v, want %+v", gotEK, ek)
	}
}

func TestEphemeralKeyKtyMismatch(t *testing.T) {
	ek := cose.EphemeralKey{Kty: cose.KeyTypeOKP, Crv: 6, X: []byte{1}}

	enc := qcbor.NewEncoder()
	if err := cose.EphemeralKeyEncoder(enc, ek); err != nil {
		t.Fatalf("encode: %v", err)
	}
	data, err := enc.Finish()
	if err != nil {
		t.Fatalf("finish: %v", err)
	}

	dec, err := qcbor.NewDecoder(data)
	if err != nil {
		t.Fatalf("new decoder: %v", err)
	}
	opened, err := dec.Next()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	decoder := cose.EphemeralKeyDecoder(cose.KeyTypeEC2)
	if _, err := decoder(dec, opened); err != cose.ErrEphemeralKeyTypeMismatch {
		t.Errorf("expected ErrEphemeralKeyTypeMismatch, got %v", err)
	}
}
