package cose

// CommonParams is the flat projection of a Headers' well-known
// parameters (spec.md section 4.9, "common-parameter extraction").
type CommonParams struct {
	Algorithm    int64
	HasAlgorithm bool

	KeyID []byte

	IV        []byte
	PartialIV []byte

	ContentTypeUint   uint64
	ContentTypeText   string
	ContentTypeIsText bool
	HasContentType    bool
}

// ExtractCommon projects h into a CommonParams record, applying the
// validation rules spec.md names: alg must be protected and an integer
// other than the reserved value 0; iv and partial-iv are mutually
// exclusive; content-type is either an unsigned integer at most 0xFFFF or
// a text string.
func ExtractCommon(h *Headers) (CommonParams, error) {
	var cp CommonParams

	if alg, ok := h.Find(HeaderLabelAlgorithm); ok {
		if !alg.InProtected || alg.Kind != KindInt64 {
			return CommonParams{}, ErrParameterCBOR
		}
		if alg.Int64 == AlgorithmReserved {
			return CommonParams{}, ErrParameterCBOR
		}
		cp.Algorithm, cp.HasAlgorithm = alg.Int64, true
	}

	if kid, ok := h.Find(HeaderLabelKeyID); ok {
		if kid.Kind != KindBytes {
			return CommonParams{}, ErrParameterCBOR
		}
		cp.KeyID = kid.Bytes
	}

	_, hasIV := h.Find(HeaderLabelIV)
	_, hasPartialIV := h.Find(HeaderLabelPartialIV)
	if hasIV && hasPartialIV {
		return CommonParams{}, ErrDuplicateParameter
	}
	if iv, ok := h.Find(HeaderLabelIV); ok {
		if iv.Kind != KindBytes {
			return CommonParams{}, ErrParameterCBOR
		}
		cp.IV = iv.Bytes
	}
	if piv, ok := h.Find(HeaderLabelPartialIV); ok {
		if piv.Kind != KindBytes {
			return CommonParams{}, ErrParameterCBOR
		}
		cp.PartialIV = piv.Bytes
	}

	if ct, ok := h.Find(HeaderLabelContentType); ok {
		switch ct.Kind {
		case KindInt64:
			if ct.Int64 < 0 || ct.Int64 > 0xFFFF {
				return CommonParams{}, ErrParameterCBOR
			}
			cp.ContentTypeUint, cp.HasContentType = uint64(ct.Int64), true
		case KindText:
			cp.ContentTypeText, cp.ContentTypeIsText, cp.HasContentType = ct.Text, true, true
		default:
			return CommonParams{}, ErrParameterCBOR
		}
	}

	return cp, nil
}

// RequireAlgorithm is a convenience for message flows that cannot proceed
// without knowing which algorithm signed/MACed the message.
func (cp CommonParams) RequireAlgorithm() (int64, error) {
	if !cp.HasAlgorithm {
		return 0, ErrMissingAlgorithm
	}
	return cp.Algorithm, nil
}
