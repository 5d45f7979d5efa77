package cose

import (
	"bytes"
	"crypto"
)

// Hash algorithm identifiers for the payload_hash_alg header (RFC 9054).
const (
	HashAlgorithmSHA256 int64 = -16
	HashAlgorithmSHA384 int64 = -43
	HashAlgorithmSHA512 int64 = -44
)

func cryptoHash(alg int64) (crypto.Hash, bool) {
	switch alg {
	case HashAlgorithmSHA256:
		return crypto.SHA256, true
	case HashAlgorithmSHA384:
		return crypto.SHA384, true
	case HashAlgorithmSHA512:
		return crypto.SHA512, true
	default:
		return 0, false
	}
}

// HashEnvelopeOptions configures SignHashEnvelope's protected headers.
type HashEnvelopeOptions struct {
	HashAlgorithm       int64 // defaults to HashAlgorithmSHA256 when zero
	PreimageContentType string
	Location            string
}

// SignHashEnvelope signs the hash of artifact rather than artifact
// itself (spec.md section 12 supplement: "sign a hash of a large payload
// instead of the payload itself, labels 258-260"), built on top of Sign1
// rather than duplicating its logic.
func SignHashEnvelope(artifact []byte, opts HashEnvelopeOptions, signer Signer, extra *Headers, detached bool) ([]byte, error) {
	alg := opts.HashAlgorithm
	if alg == 0 {
		alg = HashAlgorithmSHA256
	}
	hashAlg, ok := cryptoHash(alg)
	if !ok {
		return nil, ErrUnsupportedAlgorithm
	}
	if !hashAlg.Available() {
		return nil, ErrUnsupportedAlgorithm
	}
	h := hashAlg.New()
	h.Write(artifact)
	payloadHash := h.Sum(nil)

	headers := &Headers{}
	if extra != nil {
		headers.Params = append(headers.Params, extra.Params...)
	}
	headers.Add(Int64Param(HeaderLabelPayloadHashAlgorithm, alg, true, false))
	if opts.PreimageContentType != "" {
		headers.Add(TextParam(HeaderLabelPayloadPreimageContentType, opts.PreimageContentType, true, false))
	}
	if opts.Location != "" {
		headers.Add(TextParam(HeaderLabelPayloadLocation, opts.Location, true, false))
	}

	return Sign1(headers, payloadHash, signer, detached, nil)
}

// HashEnvelopeResult reports the two independent things VerifyHashEnvelope
// checks, so a caller can distinguish a forged signature from a stale
// artifact.
type HashEnvelopeResult struct {
	SignatureValid bool
	HashValid      bool
}

// VerifyHashEnvelope checks both that msg's signature is valid and that
// its payload hash matches artifact.
func VerifyHashEnvelope(data []byte, artifact []byte, verifier Verifier) (HashEnvelopeResult, error) {
	msg, err := DecodeSign1(data, nil)
	if err != nil {
		return HashEnvelopeResult{}, err
	}

	var externalPayload []byte
	if !msg.PayloadPresent {
		algParam, ok := msg.Headers.Find(HeaderLabelPayloadHashAlgorithm)
		if !ok || algParam.Kind != KindInt64 {
			return HashEnvelopeResult{}, ErrParameterCBOR
		}
		hashAlg, ok := cryptoHash(algParam.Int64)
		if !ok {
			return HashEnvelopeResult{}, ErrUnsupportedAlgorithm
		}
		h := hashAlg.New()
		h.Write(artifact)
		externalPayload = h.Sum(nil)
	}

	sigErr := Verify1(msg, verifier, externalPayload)
	result := HashEnvelopeResult{SignatureValid: sigErr == nil}

	algParam, ok := msg.Headers.Find(HeaderLabelPayloadHashAlgorithm)
	if !ok || algParam.Kind != KindInt64 {
		return result, ErrParameterCBOR
	}
	hashAlg, ok := cryptoHash(algParam.Int64)
	if !ok {
		return result, ErrUnsupportedAlgorithm
	}
	h := hashAlg.New()
	h.Write(artifact)
	computed := h.Sum(nil)

	payloadHash := msg.Payload
	if !msg.PayloadPresent {
		payloadHash = externalPayload
	}
	result.HashValid = payloadHash != nil && bytes.Equal(computed, payloadHash)
	return result, nil
}
