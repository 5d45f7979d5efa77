package cose

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"math/big"
)

// Signer produces a signature over the bytes of a Sig_structure. Real
// deployments supply their own implementation (HSM-backed, KMS-backed,
// etc.); ES256Signer below is the one concrete pair this repository
// wires for demonstrability (spec.md section 1 Non-goals).
type Signer interface {
	Algorithm() int64
	Sign(toBeSigned []byte) ([]byte, error)
}

// Verifier checks a signature produced by the matching Signer.
type Verifier interface {
	Algorithm() int64
	Verify(toBeSigned, signature []byte) error
}

// MACer produces and verifies a MAC tag over a MAC_structure.
type MACer interface {
	Algorithm() int64
	MAC(toBeMACed []byte) ([]byte, error)
	VerifyMAC(toBeMACed, tag []byte) error
}

// ES256Signer signs with ECDSA P-256 + SHA-256, emitting the IEEE P1363
// (r || s) signature form RFC 9053 requires for ES256.
type ES256Signer struct {
	PrivateKey *ecdsa.PrivateKey
}

func (s *ES256Signer) Algorithm() int64 { return AlgorithmES256 }

func (s *ES256Signer) Sign(toBeSigned []byte) ([]byte, error) {
	hashed := sha256.Sum256(toBeSigned)
	r, sv, err := ecdsa.Sign(rand.Reader, s.PrivateKey, hashed[:])
	if err != nil {
		return nil, err
	}
	return p1363Encode(r, sv, 32), nil
}

// ES256Verifier verifies signatures produced by ES256Signer.
type ES256Verifier struct {
	PublicKey *ecdsa.PublicKey
}

func (v *ES256Verifier) Algorithm() int64 { return AlgorithmES256 }

func (v *ES256Verifier) Verify(toBeSigned, signature []byte) error {
	if len(signature) != 64 {
		return ErrVerificationFailed
	}
	hashed := sha256.Sum256(toBeSigned)
	r := new(big.Int).SetBytes(signature[:32])
	s := new(big.Int).SetBytes(signature[32:])
	if !ecdsa.Verify(v.PublicKey, hashed[:], r, s) {
		return ErrVerificationFailed
	}
	return nil
}

func p1363Encode(r, s *big.Int, size int) []byte {
	out := make([]byte, 2*size)
	r.FillBytes(out[:size])
	s.FillBytes(out[size:])
	return out
}

// HMAC256MACer implements Mac0's HMAC-SHA256 tag (AlgorithmHMAC256, RFC
// 9053 "HMAC 256/256").
type HMAC256MACer struct {
	Key []byte
}

func (m *HMAC256MACer) Algorithm() int64 { return AlgorithmHMAC256 }

func (m *HMAC256MACer) MAC(toBeMACed []byte) ([]byte, error) {
	h := hmac.New(sha256.New, m.Key)
	h.Write(toBeMACed)
	return h.Sum(nil), nil
}

func (m *HMAC256MACer) VerifyMAC(toBeMACed, tag []byte) error {
	want, err := m.MAC(toBeMACed)
	if err != nil {
		return err
	}
	if !hmac.Equal(want, tag) {
		return ErrVerificationFailed
	}
	return nil
}

// hashForAlgorithm maps an ES algorithm id to the hash it signs over.
// KnownAlgorithm uses it to recognize ES256/ES384/ES512, even though only
// ES256 has a concrete Signer wired here.
func hashForAlgorithm(alg int64) (crypto.Hash, bool) {
	switch alg {
	case AlgorithmES256:
		return crypto.SHA256, true
	case AlgorithmES384:
		return crypto.SHA384, true
	case AlgorithmES512:
		return crypto.SHA512, true
	default:
		return 0, false
	}
}

// KnownAlgorithm reports whether alg is a recognized COSE algorithm
// identifier (ES256/384/512, EdDSA, HMAC 256/256), independent of
// whether this repository has a concrete Signer/Verifier wired for it.
func KnownAlgorithm(alg int64) bool {
	if _, ok := hashForAlgorithm(alg); ok {
		return true
	}
	return alg == AlgorithmEdDSA || alg == AlgorithmHMAC256
}
