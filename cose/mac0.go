package cose

import (
	qcbor "github.com/qcbor-go/qcbor"
)

// Mac0Message is a decoded COSE_Mac0 (spec.md section 4.10: "mirrors
// Sign1 but with an HMAC tag instead of a signature").
type Mac0Message struct {
	Headers        *Headers
	RawProtected   []byte
	Payload        []byte
	PayloadPresent bool
	Tag            []byte
}

// Mac0 builds a tagged COSE_Mac0 message; the to-be-MACed bytes use
// context string "MAC0".
func Mac0(h *Headers, payload []byte, macer MACer, detached bool, specials map[int64]SpecialEncoder) ([]byte, error) {
	h = withAlgorithm(h, macer.Algorithm())

	msg := qcbor.NewEncoder()
	if err := msg.WriteTag(TagMac0); err != nil {
		return nil, err
	}
	if err := msg.OpenArray(4); err != nil {
		return nil, err
	}

	protectedBytes, err := EncodeHeaders(msg, h, specials)
	if err != nil {
		return nil, err
	}

	toBeMACed, err := buildMACStructure(protectedBytes, nil, payload)
	if err != nil {
		return nil, err
	}
	tag, err := macer.MAC(toBeMACed)
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
	if err := msg.WriteByteString(tag); err != nil {
		return nil, err
	}
	if err := msg.CloseArray(); err != nil {
		return nil, err
	}
	return msg.Finish()
}

// DecodeMac0 parses a COSE_Mac0 message, tagged or not.
func DecodeMac0(data []byte, specials map[int64]SpecialDecoder) (*Mac0Message, error) {
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

	tagItem, err := dec.Next()
	if err != nil {
		return nil, err
	}
	if tagItem.Type != qcbor.TypeByteString {
		return nil, ErrMalformedMessage
	}

	if err := dec.ExitArray(); err != nil {
		return nil, err
	}
	if !dec.Finished() {
		return nil, ErrMalformedMessage
	}

	return &Mac0Message{
		Headers:        h,
		RawProtected:   raw,
		Payload:        payload,
		PayloadPresent: present,
		Tag:            tagItem.Bytes,
	}, nil
}

// VerifyMac0 checks msg's MAC tag. externalPayload must be supplied when
// the message carries a detached payload.
func VerifyMac0(msg *Mac0Message, macer MACer, externalPayload []byte) error {
	payload := msg.Payload
	if !msg.PayloadPresent {
		if externalPayload == nil {
			return ErrDetachedPayloadRequired
		}
		payload = externalPayload
	}
	toBeMACed, err := buildMACStructure(msg.RawProtected, nil, payload)
	if err != nil {
		return err
	}
	return macer.VerifyMAC(toBeMACed, msg.Tag)
}

// buildMACStructure encodes the canonical MAC_structure array: {"MAC0",
// protected, external_aad, payload}.
func buildMACStructure(protected, externalAAD, payload []byte) ([]byte, error) {
	enc := qcbor.NewEncoder()
	if err := enc.OpenArray(4); err != nil {
		return nil, err
	}
	if err := enc.WriteTextString("MAC0"); err != nil {
		return nil, err
	}
	if err := enc.WriteByteString(protected); err != nil {
		return nil, err
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
