package cose

import (
	qcbor "github.com/qcbor-go/qcbor"
)

// SignerEntry pairs one signer's own header bucket with the Signer that
// produces its signature (spec.md section 4.10: "Sign is the same [as
// Sign1] with an additional array of per-signer structures").
type SignerEntry struct {
	Headers *Headers
	Signer  Signer
}

// SignMessage is a decoded COSE_Sign.
type SignMessage struct {
	Headers        *Headers
	RawProtected   []byte
	Payload        []byte
	PayloadPresent bool
	Signers        []SignedEntry
}

// SignedEntry is one decoded per-signer structure.
type SignedEntry struct {
	Headers      *Headers
	RawProtected []byte
	Signature    []byte
}

// Sign builds a tagged COSE_Sign message: body headers, payload, and one
// [protected, unprotected, signature] triple per signer. Each signer's
// to-be-signed bytes include both the body's protected bucket and its
// own (spec.md section 4.10).
func Sign(h *Headers, payload []byte, signers []SignerEntry, detached bool, specials map[int64]SpecialEncoder) ([]byte, error) {
	msg := qcbor.NewEncoder()
	if err := msg.WriteTag(TagSign); err != nil {
		return nil, err
	}
	if err := msg.OpenArray(4); err != nil {
		return nil, err
	}

	bodyProtected, err := EncodeHeaders(msg, h, specials)
	if err != nil {
		return nil, err
	}

	if detached {
		if err := msg.WriteNull(); err != nil {
			return nil, err
		}
	} else {
		if err := msg.WriteByteString(payload); err != nil {
			return nil, err
		}
	}

	if err := msg.OpenArray(len(signers)); err != nil {
		return nil, err
	}
	for _, se := range signers {
		signerHeaders := withAlgorithm(se.Headers, se.Signer.Algorithm())
		if err := msg.OpenArray(3); err != nil {
			return nil, err
		}
		signProtected, err := EncodeHeaders(msg, signerHeaders, specials)
		if err != nil {
			return nil, err
		}
		toBeSigned, err := buildSigStructure("Signature", bodyProtected, signProtected, nil, payload)
		if err != nil {
			return nil, err
		}
		signature, err := se.Signer.Sign(toBeSigned)
		if err != nil {
			return nil, err
		}
		if err := msg.WriteByteString(signature); err != nil {
			return nil, err
		}
		if err := msg.CloseArray(); err != nil {
			return nil, err
		}
	}
	if err := msg.CloseArray(); err != nil {
		return nil, err
	}
	if err := msg.CloseArray(); err != nil {
		return nil, err
	}
	return msg.Finish()
}

// DecodeSign parses a COSE_Sign message, tagged or not.
func DecodeSign(data []byte, specials map[int64]SpecialDecoder) (*SignMessage, error) {
	dec, err := qcbor.NewDecoder(data, qcbor.WithConfig(qcbor.AllowUnprocessedTagNumbers))
	if err != nil {
		return nil, err
	}
	item, err := dec.Next()
	if err != nil {
		return nil, err
	}
	if item.Type != qcbor.TypeArray || item.Count != 4 {
		return nil, ErrMalformedMessage
	}

	h, bodyRaw, err := DecodeHeaders(dec, specials)
	if err != nil {
		return nil, err
	}

	payloadItem, err := dec.Next()
	if err != nil {
		return nil, err
	}
	var payload []byte
	present := payloadItem.Type != qcbor.TypeNull
	if present {
		if payloadItem.Type != qcbor.TypeByteString {
			return nil, ErrMalformedMessage
		}
		payload = payloadItem.Bytes
	}

	signerCount, err := dec.EnterArray()
	if err != nil {
		return nil, err
	}
	signers := make([]SignedEntry, 0, signerCount)
	for {
		more, err := dec.MoreInContainer()
		if err != nil {
			return nil, err
		}
		if !more {
			break
		}
		entryItem, err := dec.Next()
		if err != nil {
			return nil, err
		}
		if entryItem.Type != qcbor.TypeArray || entryItem.Count != 3 {
			return nil, ErrMalformedMessage
		}
		sh, sraw, err := DecodeHeaders(dec, specials)
		if err != nil {
			return nil, err
		}
		sigItem, err := dec.Next()
		if err != nil {
			return nil, err
		}
		if sigItem.Type != qcbor.TypeByteString {
			return nil, ErrMalformedMessage
		}
		if err := dec.ExitArray(); err != nil {
			return nil, err
		}
		signers = append(signers, SignedEntry{Headers: sh, RawProtected: sraw, Signature: sigItem.Bytes})
	}
	if err := dec.ExitArray(); err != nil {
		return nil, err
	}
	if err := dec.ExitArray(); err != nil {
		return nil, err
	}
	if !dec.Finished() {
		return nil, ErrMalformedMessage
	}

	return &SignMessage{
		Headers:        h,
		RawProtected:   bodyRaw,
		Payload:        payload,
		PayloadPresent: present,
		Signers:        signers,
	}, nil
}

// VerifyEntry checks the signature of msg.Signers[index] using verifier.
func VerifyEntry(msg *SignMessage, index int, verifier Verifier, externalPayload []byte) error {
	if index < 0 || index >= len(msg.Signers) {
		return ErrMalformedMessage
	}
	payload := msg.Payload
	if !msg.PayloadPresent {
		if externalPayload == nil {
			return ErrDetachedPayloadRequired
		}
		payload = externalPayload
	}
	entry := msg.Signers[index]
	toBeSigned, err := buildSigStructure("Signature", msg.RawProtected, entry.RawProtected, nil, payload)
	if err != nil {
		return err
	}
	return verifier.Verify(toBeSigned, entry.Signature)
}
