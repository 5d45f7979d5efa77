package cose

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
)

// ErrInvalidPEM is returned when a PEM block can't be parsed as the
// expected key type.
var ErrInvalidPEM = errors.New("cose: invalid PEM-encoded key")

// GenerateES256Key generates a fresh ECDSA P-256 key pair for ES256.
func GenerateES256Key() (*ecdsa.PrivateKey, error) {
	return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
}

// EncodeECPrivateKeyPEM PEM-encodes priv as a PKCS#8 private key, the
// format stdlib's crypto/x509 round-trips without an algorithm-specific
// wrapper (grounded on signer.go's direct crypto/ecdsa use, since the
// pack carries no third-party PEM/JWK library for this concern).
func EncodeECPrivateKeyPEM(priv *ecdsa.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}

// DecodeECPrivateKeyPEM parses a PEM-encoded PKCS#8 ECDSA private key.
func DecodeECPrivateKeyPEM(data []byte) (*ecdsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, ErrInvalidPEM
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, ErrInvalidPEM
	}
	ecKey, ok := key.(*ecdsa.PrivateKey)
	if !ok {
		return nil, ErrInvalidPEM
	}
	return ecKey, nil
}

// EncodeECPublicKeyPEM PEM-encodes pub as an SPKI public key.
func EncodeECPublicKeyPEM(pub *ecdsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}

// DecodeECPublicKeyPEM parses a PEM-encoded SPKI ECDSA public key.
func DecodeECPublicKeyPEM(data []byte) (*ecdsa.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, ErrInvalidPEM
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, ErrInvalidPEM
	}
	ecKey, ok := key.(*ecdsa.PublicKey)
	if !ok {
		return nil, ErrInvalidPEM
	}
	return ecKey, nil
}
