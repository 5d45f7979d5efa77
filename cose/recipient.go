package cose

import (
	qcbor "github.com/qcbor-go/qcbor"
)

// COSE_Key common parameters (RFC 9053 section 7) needed to decode the
// ephemeral key an ECDH-ES recipient carries in its "epk" header.
const (
	KeyTypeLabel int64 = 1
	ParamCrv     int64 = -1
	ParamX       int64 = -2
	ParamY       int64 = -3

	KeyTypeOKP        int64 = 1
	KeyTypeEC2        int64 = 2
	KeyTypeSymmetric  int64 = 4

	// HeaderLabelEphemeralKey ("epk") carries the sender's ephemeral
	// public key for ECDH direct/key-wrap agreement (RFC 9053 section 8.5).
	HeaderLabelEphemeralKey int64 = -1
)

// EphemeralKey is the decoded content of an "epk" header's COSE_Key map.
// Y is either an explicit byte string (uncompressed point) or a sign bit
// for a compressed point, selected by YIsSign.
type EphemeralKey struct {
	Kty    int64
	Crv    int64
	X      []byte
	YBytes []byte
	YSign  bool
	YIsSign bool
}

// EphemeralKeyDecoder returns a SpecialDecoder for the "epk" header that
// rejects a key whose kty doesn't match expectedKty with
// ErrEphemeralKeyTypeMismatch (spec.md section 4.10's Open Question on
// ECDH-ES recipient decoding, resolved in DESIGN.md: a mismatch is a
// decode failure, not a silent coercion).
func EphemeralKeyDecoder(expectedKty int64) SpecialDecoder {
	return func(dec *qcbor.Decoder, opened qcbor.Item) (any, error) {
		if opened.Type != qcbor.TypeMap {
			return nil, ErrParameterCBOR
		}
		var ek EphemeralKey
		for {
			more, err := dec.MoreInContainer()
			if err != nil {
				return nil, err
			}
			if !more {
				break
			}
			keyItem, err := dec.Next()
			if err != nil {
				return nil, err
			}
			label, ok := int64FromItem(keyItem)
			if !ok {
				return nil, ErrParameterCBOR
			}
			valItem, err := dec.Next()
			if err != nil {
				return nil, err
			}
			switch label {
			case KeyTypeLabel:
				v, ok := int64FromItem(valItem)
				if !ok {
					return nil, ErrParameterCBOR
				}
				ek.Kty = v
			case ParamCrv:
				v, ok := int64FromItem(valItem)
				if !ok {
					return nil, ErrParameterCBOR
				}
				ek.Crv = v
			case ParamX:
				if valItem.Type != qcbor.TypeByteString {
					return nil, ErrParameterCBOR
				}
				ek.X = valItem.Bytes
			case ParamY:
				switch valItem.Type {
				case qcbor.TypeByteString:
					ek.YBytes = valItem.Bytes
				case qcbor.TypeTrue, qcbor.TypeFalse:
					ek.YIsSign = true
					ek.YSign = valItem.Type == qcbor.TypeTrue
				default:
					return nil, ErrParameterCBOR
				}
			default:
				if err := drainContainer(dec, valItem); err != nil {
					return nil, err
				}
			}
		}
		if err := dec.ExitMap(); err != nil {
			return nil, err
		}
		if ek.Kty != expectedKty {
			return nil, ErrEphemeralKeyTypeMismatch
		}
		return ek, nil
	}
}

// EphemeralKeyEncoder is the SpecialEncoder counterpart of
// EphemeralKeyDecoder.
func EphemeralKeyEncoder(enc *qcbor.Encoder, v any) error {
	ek, ok := v.(EphemeralKey)
	if !ok {
		return ErrParameterCBOR
	}
	n := 2
	if len(ek.X) > 0 {
		n++
	}
	if ek.YIsSign || len(ek.YBytes) > 0 {
		n++
	}
	if err := enc.OpenMap(n); err != nil {
		return err
	}
	if err := enc.WriteInt64(KeyTypeLabel); err != nil {
		return err
	}
	if err := enc.WriteInt64(ek.Kty); err != nil {
		return err
	}
	if err := enc.WriteInt64(ParamCrv); err != nil {
		return err
	}
	if err := enc.WriteInt64(ek.Crv); err != nil {
		return err
	}
	if len(ek.X) > 0 {
		if err := enc.WriteInt64(ParamX); err != nil {
			return err
		}
		if err := enc.WriteByteString(ek.X); err != nil {
			return err
		}
	}
	switch {
	case ek.YIsSign:
		if err := enc.WriteInt64(ParamY); err != nil {
			return err
		}
		if err := enc.WriteBool(ek.YSign); err != nil {
			return err
		}
	case len(ek.YBytes) > 0:
		if err := enc.WriteInt64(ParamY); err != nil {
			return err
		}
		if err := enc.WriteByteString(ek.YBytes); err != nil {
			return err
		}
	}
	return enc.CloseMap()
}

// RecipientEntry is one COSE_recipient: its own header bucket, an
// encrypted content-encryption-key (nil for direct key agreement, which
// carries no wrapped key), and optionally its own nested recipients for
// layered key distribution (RFC 9052 section 5.1).
type RecipientEntry struct {
	Headers    *Headers
	Ciphertext []byte
	Recipients []RecipientEntry
}

func encodeRecipient(enc *qcbor.Encoder, r RecipientEntry, specials map[int64]SpecialEncoder) error {
	n := 3
	if len(r.Recipients) > 0 {
		n = 4
	}
	if err := enc.OpenArray(n); err != nil {
		return err
	}
	if _, err := EncodeHeaders(enc, r.Headers, specials); err != nil {
		return err
	}
	if r.Ciphertext == nil {
		if err := enc.WriteNull(); err != nil {
			return err
		}
	} else if err := enc.WriteByteString(r.Ciphertext); err != nil {
		return err
	}
	if len(r.Recipients) > 0 {
		if err := enc.OpenArray(len(r.Recipients)); err != nil {
			return err
		}
		for _, nested := range r.Recipients {
			if err := encodeRecipient(enc, nested, specials); err != nil {
				return err
			}
		}
		if err := enc.CloseArray(); err != nil {
			return err
		}
	}
	return enc.CloseArray()
}

func decodeRecipient(dec *qcbor.Decoder, specials map[int64]SpecialDecoder) (RecipientEntry, error) {
	item, err := dec.Next()
	if err != nil {
		return RecipientEntry{}, err
	}
	if item.Type != qcbor.TypeArray || (item.Count != 3 && item.Count != 4) {
		return RecipientEntry{}, ErrMalformedMessage
	}

	h, _, err := DecodeHeaders(dec, specials)
	if err != nil {
		return RecipientEntry{}, err
	}

	ctItem, err := dec.Next()
	if err != nil {
		return RecipientEntry{}, err
	}
	var ciphertext []byte
	switch ctItem.Type {
	case qcbor.TypeByteString:
		ciphertext = ctItem.Bytes
	case qcbor.TypeNull:
	default:
		return RecipientEntry{}, ErrMalformedMessage
	}

	var nested []RecipientEntry
	if item.Count == 4 {
		count, err := dec.EnterArray()
		if err != nil {
			return RecipientEntry{}, err
		}
		nested = make([]RecipientEntry, 0, count)
		for {
			more, err := dec.MoreInContainer()
			if err != nil {
				return RecipientEntry{}, err
			}
			if !more {
				break
			}
			child, err := decodeRecipient(dec, specials)
			if err != nil {
				return RecipientEntry{}, err
			}
			nested = append(nested, child)
		}
		if err := dec.ExitArray(); err != nil {
			return RecipientEntry{}, err
		}
	}
	if err := dec.ExitArray(); err != nil {
		return RecipientEntry{}, err
	}
	return RecipientEntry{Headers: h, Ciphertext: ciphertext, Recipients: nested}, nil
}
