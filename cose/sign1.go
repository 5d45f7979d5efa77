package cose

import (
	qcbor "github.com/qcbor-go/qcbor"
)

// COSE message tag numbers (RFC 9052 section 2).
const (
	TagSign1    qcbor.Tag = 18
	TagSign     qcbor.Tag = 98
	TagMac0     qcbor.Tag = 17
	TagMac      qcbor.Tag = 97
	TagEncrypt0 qcbor.Tag = 16
	TagEncrypt  qcbor.Tag = 96
)

// Sign1Message is a decoded COSE_Sign1 (spec.md section 4.10).
type Sign1Message struct {
	Headers        *Headers
	RawProtected   []byte
	Payload        []byte // nil when the message carries a detached payload
	PayloadPresent bool
	Signature      []byte
}

// Sign1 builds a tagged COSE_Sign1 message: the to-be-signed bytes are a
// canonical array of {"Signature1", body_protected, external_aad,
// payload}. If h has no algorithm parameter yet, signer.Algorithm() is
// recorded as a protected parameter automatically.
func Sign1(h *Headers, payload []byte, signer Signer, detached bool, specials map[int64]SpecialEncoder) ([]byte, error) {
	h = withAlgorithm(h, signer.Algorithm())

	msg := qcbor.NewEncoder()
	if err := msg.WriteTag(TagSign1); err != nil {
		return nil, err
	}
	if err := msg.OpenArray(4); err != nil {
		return nil, err
	}

	protectedBytes, err := EncodeHeaders(msg, h, specials)
	if err != nil {
		return nil, err
	}

	toBeSigned, err := buildSigStructure("Signature1", protectedBytes, nil, nil, payload)
	if err != nil {
		return nil, err
	}
	signature, err := signer.Sign(toBeSigned)
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
	if err := msg.WriteByteString(signature); err != nil {
		return nil, err
	}
	if err := msg.CloseArray(); err != nil {
		return nil, err
	}
	return msg.Finish()
}

// DecodeSign1 parses a COSE_Sign1 message, tagged or not (RFC 9052
// permits tag 18 to be omitted when the context makes the message type
// unambiguous).
func DecodeSign1(data []byte, specials map[int64]SpecialDecoder) (*Sign1Message, error) {
	dec, err := qcbor.NewDecoder(data, qcbor.WithConfig(qcbor.AllowUnprocessedTagNumbers))
	if err != nil {
		return nil, err
	}
	// A tag 18, if present, is carried on the array item itself.
	item, err := dec.Next()
	if err != nil {
		return nil, err
	}
	if item.Type != qcbor.TypeArray || item.Count != 4 {
		return nil, ErrMalformedMessage
	}

	h, raw, err := DecodeHeaders(dec, specials)
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
	if !dec.Finished() {
		return nil, ErrMalformedMessage
	}

	return &Sign1Message{
		Headers:        h,
		RawProtected:   raw,
		Payload:        payload,
		PayloadPresent: present,
		Signature:      sigItem.Bytes,
	}, nil
}

// Verify1 checks msg's signature. externalPayload must be supplied when
// the message carries a detached payload.
func Verify1(msg *Sign1Message, verifier Verifier, externalPayload []byte) error {
	payload := msg.Payload
	if !msg.PayloadPresent {
		if externalPayload == nil {
			return ErrDetachedPayloadRequired
		}
		payload = externalPayload
	}
	toBeSigned, err := buildSigStructure("Signature1", msg.RawProtected, nil, nil, payload)
	if err != nil {
		return err
	}
	return verifier.Verify(toBeSigned, msg.Signature)
}

// buildSigStructure encodes the canonical array spec.md section 4.10
// names for Sign1/Sign's to-be-signed bytes: {context, body_protected,
// [sign_protected,] external_aad, payload}. signProtected is nil for
// Sign1 (no per-signer bucket); non-nil callers get the 5-element Sign
// form.
func buildSigStructure(context string, bodyProtected, signProtected, externalAAD, payload []byte) ([]byte, error) {
	enc := qcbor.NewEncoder()
	n := 4
	if signProtected != nil {
		n = 5
	}
	if err := enc.OpenArray(n); err != nil {
		return nil, err
	}
	if err := enc.WriteTextString(context); err != nil {
		return nil, err
	}
	if err := enc.WriteByteString(bodyProtected); err != nil {
		return nil, err
	}
	if signProtected != nil {
		if err := enc.WriteByteString(signProtected); err != nil {
			return nil, err
		}
	}
	if err := enc.WriteByteString(externalAAD); err != nil {
		return nil, err
	}
	if err := enc.WriteByteString(payload); err != nil {
		return nil, err
	}
	if err := enc.CloseArray(); err != nil {
		return nil, err
	}
	return enc.Finish()
}

// withAlgorithm returns h unchanged if it already carries an alg
// parameter, otherwise a shallow copy with one appended as a protected
// parameter.
func withAlgorithm(h *Headers, alg int64) *Headers {
	if _, ok := h.Find(HeaderLabelAlgorithm); ok {
		return h
	}
	out := &Headers{Params: make([]Parameter, len(h.Params), len(h.Params)+1)}
	copy(out.Params, h.Params)
	out.Add(Int64Param(HeaderLabelAlgorithm, alg, true, false))
	return out
}
