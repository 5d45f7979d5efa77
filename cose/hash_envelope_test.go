package cose_test

import (
	"testing"

	"github.com/qcbor-go/qcbor/cose"
)

func TestHashEnvelopeRoundTrip(t *testing.T) {
	signer, verifier := testSigner(t)
	artifact := []byte("a large artifact that we'd rather not sign directly")

	t.Run("embedded hash verifies", func(t *testing.T) {
		data, err := cose.SignHashEnvelope(artifact, cose.HashEnvelopeOptions{}, signer, nil, false)
		if err != nil {
			t.Fatalf("sign hash envelope: %v", err)
		}

		result, err := cose.VerifyHashEnvelope(data, artifact, verifier)
		if err != nil {
			t.Fatalf("verify: %v", err)
		}
		if !result.SignatureValid || !result.HashValid {
			t.Errorf("expected both signature and hash valid, got %+v", result)
		}
	})

	t.Run("detects a stale artifact", func(t *testing.T) {
		data, err := cose.SignHashEnvelope(artifact, cose.HashEnvelopeOptions{}, signer, nil, false)
		if err != nil {
			t.Fatalf("sign hash envelope: %v", err)
		}

		result, err := cose.VerifyHashEnvelope(data, []byte("a different artifact entirely"), verifier)
		if err != nil {
			t.Fatalf("verify: %v", err)
		}
		if !result.SignatureValid {
			t.Error("expected signature to still be valid")
		}
		if result.HashValid {
			t.Error("expected hash mismatch to be detected")
		}
	})

	t.Run("detached hash requires the artifact to recompute", func(t *testing.T) {
		data, err := cose.SignHashEnvelope(artifact, cose.HashEnvelopeOptions{}, signer, nil, true)
		if err != nil {
			t.Fatalf("sign hash envelope: %v", err)
		}

		result, err := cose.VerifyHashEnvelope(data, artifact, verifier)
		if err != nil {
			t.Fatalf("verify: %v", err)
		}
		if !result.SignatureValid || !result.HashValid {
			t.Errorf("expected both valid for detached envelope, got %+v", result)
		}
	})

	t.Run("records preimage content type and location", func(t *testing.T) {
		opts := cose.HashEnvelopeOptions{
			HashAlgorithm:       cose.HashAlgorithmSHA384,
			PreimageContentType: "application/octet-stream",
			Location:            "s3://bucket/artifact",
		}
		data, err := cose.SignHashEnvelope(artifact, opts, signer, nil, false)
		if err != nil {
			t.Fatalf("sign hash envelope: %v", err)
		}

		msg, err := cose.DecodeSign1(data, nil)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		algParam, ok := msg.Headers.Find(cose.HeaderLabelPayloadHashAlgorithm)
		if !ok || algParam.Int64 != cose.HashAlgorithmSHA384 {
			t.Errorf("expected SHA-384 hash algorithm header, got %+v", algParam)
		}
		ctParam, ok := msg.Headers.Find(cose.HeaderLabelPayloadPreimageContentType)
		if !ok || ctParam.Text != opts.PreimageContentType {
			t.Errorf("expected preimage content type header, got %+v", ctParam)
		}
	})
}
