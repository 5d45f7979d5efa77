package cose

import (
	"strings"

	qcbor "github.com/qcbor-go/qcbor"
)

// CWT claim keys (RFC 8392 section 9.1), used as CWTClaims map keys.
const (
	CWTClaimIss   int64 = 1
	CWTClaimSub   int64 = 2
	CWTClaimAud   int64 = 3
	CWTClaimExp   int64 = 4
	CWTClaimNbf   int64 = 5
	CWTClaimIat   int64 = 6
	CWTClaimCti   int64 = 7
)

// CWTClaims is the value of the CWT Claims header (label 15, RFC 9597),
// usable as a protected-header special value alongside SpecialParam.
// Each entry is an int64 (exp/nbf/iat), a string (iss/sub/aud), or a
// []byte (cti); other claim keys may carry any of the three shapes.
type CWTClaims map[int64]any

// CWTClaimsEncoder is the SpecialEncoder for the CWT Claims header.
func CWTClaimsEncoder(enc *qcbor.Encoder, v any) error {
	claims, ok := v.(CWTClaims)
	if !ok {
		return ErrParameterCBOR
	}
	if err := enc.OpenMap(len(claims)); err != nil {
		return err
	}
	for k, val := range claims {
		if err := enc.WriteInt64(k); err != nil {
			return err
		}
		switch x := val.(type) {
		case int64:
			if err := enc.WriteInt64(x); err != nil {
				return err
			}
		case string:
			if err := enc.WriteTextString(x); err != nil {
				return err
			}
		case []byte:
			if err := enc.WriteByteString(x); err != nil {
				return err
			}
		default:
			return ErrParameterCBOR
		}
	}
	return enc.CloseMap()
}

// CWTClaimsDecoder is the SpecialDecoder for the CWT Claims header.
func CWTClaimsDecoder(dec *qcbor.Decoder, opened qcbor.Item) (any, error) {
	if opened.Type != qcbor.TypeMap {
		return nil, ErrParameterCBOR
	}
	claims := make(CWTClaims)
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
		key, ok := int64FromItem(keyItem)
		if !ok {
			return nil, ErrParameterCBOR
		}
		valItem, err := dec.Next()
		if err != nil {
			return nil, err
		}
		switch valItem.Type {
		case qcbor.TypeInt64:
			claims[key] = valItem.Int64
		case qcbor.TypeUint64:
			claims[key] = int64(valItem.Uint64)
		case qcbor.TypeTextString:
			claims[key] = valItem.Text
		case qcbor.TypeByteString:
			claims[key] = valItem.Bytes
		default:
			if err := drainContainer(dec, valItem); err != nil {
				return nil, err
			}
		}
	}
	if err := dec.ExitMap(); err != nil {
		return nil, err
	}
	return claims, nil
}

// ValidateTypeHeader checks the "typ" header (label 16), when present,
// against RFC 9052's type/subtype shape for its text-string form
// (grounded in veraison/go-cose's HeaderLabelType validation); a uint
// value is accepted without shape checking since it refers to a
// separately registered content-type identifier.
func ValidateTypeHeader(h *Headers) error {
	typ, ok := h.Find(HeaderLabelType)
	if !ok {
		return nil
	}
	switch typ.Kind {
	case KindInt64:
		if typ.Int64 < 0 {
			return ErrParameterCBOR
		}
		return nil
	case KindText:
		parts := strings.SplitN(typ.Text, "/", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return ErrParameterCBOR
		}
		return nil
	default:
		return ErrParameterCBOR
	}
}
