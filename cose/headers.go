package cose

import (
	"math"

	qcbor "github.com/qcbor-go/qcbor"
)

// Well-known header labels (RFC 9052 section 3.1, RFC 9597).
const (
	HeaderLabelAlgorithm         int64 = 1
	HeaderLabelCritical          int64 = 2
	HeaderLabelContentType       int64 = 3
	HeaderLabelKeyID            int64 = 4
	HeaderLabelIV                int64 = 5
	HeaderLabelPartialIV         int64 = 6
	HeaderLabelCounterSignature  int64 = 7
	HeaderLabelCWTClaims         int64 = 15
	HeaderLabelType              int64 = 16

	// Hash-envelope labels (spec.md section 12 supplement), grounded in
	// tradeverifyd-transparency-service's pkg/cose/hash_envelope.go.
	HeaderLabelPayloadHashAlgorithm            int64 = 258
	HeaderLabelPayloadPreimageContentType      int64 = 259
	HeaderLabelPayloadLocation                 int64 = 260
)

// Algorithm identifiers (RFC 9053).
const (
	AlgorithmReserved int64 = 0
	AlgorithmES256    int64 = -7
	AlgorithmES384    int64 = -35
	AlgorithmES512    int64 = -36
	AlgorithmEdDSA    int64 = -8
	AlgorithmHMAC256  int64 = 5
)

// ParamKind tags which field of Parameter is meaningful.
type ParamKind int

const (
	KindInt64 ParamKind = iota
	KindBytes
	KindText
	KindSpecial
)

// Location describes where in a COSE message a parameter's bucket sits
// (spec.md section 4.9, "location" tag).
type Location int

const (
	LocationBody Location = iota
	LocationSigner
	LocationRecipient
	LocationCounterSignature
)

// Parameter is one decoded or to-be-encoded header entry. Exactly one of
// Int64/Bytes/Text/Special is meaningful, selected by Kind.
type Parameter struct {
	Label       int64
	Kind        ParamKind
	Int64       int64
	Bytes       []byte
	Text        string
	Special     any

	InProtected   bool
	Critical      bool
	Location      Location
	LocationIndex int
}

// Int64Param builds a scalar integer-valued parameter.
func Int64Param(label int64, v int64, inProtected, critical bool) Parameter {
	return Parameter{Label: label, Kind: KindInt64, Int64: v, InProtected: inProtected, Critical: critical}
}

// BytesParam builds a byte-string-valued parameter.
func BytesParam(label int64, v []byte, inProtected, critical bool) Parameter {
	return Parameter{Label: label, Kind: KindBytes, Bytes: v, InProtected: inProtected, Critical: critical}
}

// TextParam builds a text-string-valued parameter.
func TextParam(label int64, v string, inProtected, critical bool) Parameter {
	return Parameter{Label: label, Kind: KindText, Text: v, InProtected: inProtected, Critical: critical}
}

// SpecialParam builds a parameter whose wire representation is delegated
// to a caller-supplied SpecialEncoder/SpecialDecoder pair (spec.md
// section 4.9, "special" variant) — used for nested structures like the
// ECDH-ES ephemeral key map.
func SpecialParam(label int64, v any, inProtected, critical bool) Parameter {
	return Parameter{Label: label, Kind: KindSpecial, Special: v, InProtected: inProtected, Critical: critical}
}

// Headers is the flat parameter list for one message/signer/recipient
// header-bucket pair (spec.md section 4.9, "parameter record" storage).
type Headers struct {
	Params []Parameter
}

// Find returns the first parameter with the given label, searching both
// buckets.
func (h *Headers) Find(label int64) (*Parameter, bool) {
	for i := range h.Params {
		if h.Params[i].Label == label {
			return &h.Params[i], true
		}
	}
	return nil, false
}

// Add appends p to the header list.
func (h *Headers) Add(p Parameter) {
	h.Params = append(h.Params, p)
}

// SpecialDecoder parses a non-scalar header value. opened is the
// array/map-open Item Next already returned (with its frame pushed); the
// callback must fully drain that frame (via dec.ExitArray/dec.ExitMap or
// equivalent) before returning, mirroring tags.go's tag-handler contract.
type SpecialDecoder func(dec *qcbor.Decoder, opened qcbor.Item) (any, error)

// SpecialEncoder writes a special parameter's value, including opening
// and closing whatever container it needs.
type SpecialEncoder func(enc *qcbor.Encoder, v any) error

// DecodeHeaders implements spec.md section 4.9's headers_decode contract:
// the byte-string-wrapped protected map followed by the inline
// unprotected map. It returns the combined parameter list and the raw
// (unwrapped) protected bytes, needed verbatim by the Sig_structure /
// MAC_structure builders.
func DecodeHeaders(dec *qcbor.Decoder, specials map[int64]SpecialDecoder) (*Headers, []byte, error) {
	protItem, err := dec.Next()
	if err != nil {
		return nil, nil, err
	}
	if protItem.Type != qcbor.TypeByteString {
		return nil, nil, ErrParameterCBOR
	}
	rawProtected := protItem.Bytes

	var protParams []Parameter
	var critList []int64
	if len(rawProtected) > 0 {
		sub, err := qcbor.NewDecoder(rawProtected)
		if err != nil {
			return nil, nil, err
		}
		protParams, critList, err = decodeHeaderMap(sub, true, specials)
		if err != nil {
			return nil, nil, err
		}
		if !sub.Finished() {
			return nil, nil, ErrParameterCBOR
		}
	}

	unprotParams, unprotCrit, err := decodeHeaderMap(dec, false, specials)
	if err != nil {
		return nil, nil, err
	}
	if len(unprotCrit) > 0 {
		return nil, nil, ErrCritParameterInUnprotected
	}

	all := make([]Parameter, 0, len(protParams)+len(unprotParams))
	all = append(all, protParams...)
	all = append(all, unprotParams...)

	markCritical(all, critList)
	if err := checkDuplicateLabels(all); err != nil {
		return nil, nil, err
	}
	if err := checkCriticalParametersPresent(all, critList); err != nil {
		return nil, nil, err
	}
	return &Headers{Params: all}, rawProtected, nil
}

// decodeHeaderMap reads one header bucket already positioned at its
// map-open item's parent frame (i.e. dec.Next() has not yet been called
// for the map itself), applying the crit/duplicate/special-dispatch rules
// of spec.md section 4.9 step 3.
func decodeHeaderMap(dec *qcbor.Decoder, inProtected bool, specials map[int64]SpecialDecoder) ([]Parameter, []int64, error) {
	if _, err := dec.EnterMap(); err != nil {
		return nil, nil, err
	}

	var params []Parameter
	var crit []int64
	var declined []int64

	for {
		more, err := dec.MoreInContainer()
		if err != nil {
			return nil, nil, err
		}
		if !more {
			break
		}

		keyItem, err := dec.Next()
		if err != nil {
			return nil, nil, err
		}
		label, ok := int64FromItem(keyItem)
		if !ok {
			return nil, nil, ErrParameterCBOR
		}

		if label == HeaderLabelCritical {
			if !inProtected {
				return nil, nil, ErrCritParameterInUnprotected
			}
			list, err := decodeCritList(dec)
			if err != nil {
				return nil, nil, err
			}
			crit = list
			continue
		}

		valItem, err := dec.Next()
		if err != nil {
			return nil, nil, err
		}

		p := Parameter{Label: label, InProtected: inProtected}
		switch valItem.Type {
		case qcbor.TypeInt64:
			p.Kind, p.Int64 = KindInt64, valItem.Int64
		case qcbor.TypeUint64:
			if valItem.Uint64 > math.MaxInt64 {
				return nil, nil, ErrParameterCBOR
			}
			p.Kind, p.Int64 = KindInt64, int64(valItem.Uint64)
		case qcbor.TypeByteString:
			p.Kind, p.Bytes = KindBytes, valItem.Bytes
		case qcbor.TypeTextString:
			p.Kind, p.Text = KindText, valItem.Text
		default:
			sd, ok := specials[label]
			if !ok {
				if err := drainContainer(dec, valItem); err != nil {
					return nil, nil, err
				}
				declined = append(declined, label)
				continue
			}
			special, err := sd(dec, valItem)
			if err != nil {
				return nil, nil, err
			}
			p.Kind, p.Special = KindSpecial, special
		}
		params = append(params, p)
	}

	if err := dec.ExitMap(); err != nil {
		return nil, nil, err
	}

	for _, dl := range declined {
		if containsInt64(crit, dl) {
			return nil, nil, ErrUnknownCriticalParameter
		}
	}
	return params, crit, nil
}

// decodeCritList reads crit's value: a non-empty array of at most
// qcbor.MaxCriticalParams integer labels (RFC 9052 section 3.1; an empty
// array is invalid).
func decodeCritList(dec *qcbor.Decoder) ([]int64, error) {
	n, err := dec.EnterArray()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrParameterCBOR
	}
	labels := make([]int64, 0, n)
	for {
		more, err := dec.MoreInContainer()
		if err != nil {
			return nil, err
		}
		if !more {
			break
		}
		item, err := dec.Next()
		if err != nil {
			return nil, err
		}
		label, ok := int64FromItem(item)
		if !ok {
			return nil, ErrParameterCBOR
		}
		labels = append(labels, label)
	}
	if err := dec.ExitArray(); err != nil {
		return nil, err
	}
	if len(labels) == 0 || len(labels) > qcbor.MaxCriticalParams {
		return nil, ErrParameterCBOR
	}
	return labels, nil
}

// drainContainer consumes the remainder of an already-opened array/map
// item without interpreting its content, for header labels this decoder
// has no special-decoder registered for.
func drainContainer(dec *qcbor.Decoder, opened qcbor.Item) error {
	switch opened.Type {
	case qcbor.TypeArray:
		return dec.ExitArray()
	case qcbor.TypeMap:
		return dec.ExitMap()
	default:
		return nil
	}
}

func int64FromItem(it qcbor.Item) (int64, bool) {
	switch it.Type {
	case qcbor.TypeInt64:
		return it.Int64, true
	case qcbor.TypeUint64:
		if it.Uint64 > math.MaxInt64 {
			return 0, false
		}
		return int64(it.Uint64), true
	default:
		return 0, false
	}
}

func containsInt64(xs []int64, v int64) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

func markCritical(params []Parameter, crit []int64) {
	if len(crit) == 0 {
		return
	}
	for i := range params {
		if params[i].InProtected && containsInt64(crit, params[i].Label) {
			params[i].Critical = true
		}
	}
}

// checkCriticalParametersPresent enforces RFC 9052 section 3.1's crit
// contract: every label crit lists must actually appear, and it must
// appear in the protected bucket. A label missing from both buckets
// fails ErrParameterNotProtected; one present only in the unprotected
// bucket fails ErrUnknownCriticalParameter, since crit (itself always
// protected) cannot make an unprotected parameter critical.
func checkCriticalParametersPresent(params []Parameter, crit []int64) error {
	for _, label := range crit {
		present, protected := false, false
		for _, p := range params {
			if p.Label == label {
				present = true
				if p.InProtected {
					protected = true
				}
			}
		}
		switch {
		case !present:
			return ErrParameterNotProtected
		case !protected:
			return ErrUnknownCriticalParameter
		}
	}
	return nil
}

func checkDuplicateLabels(params []Parameter) error {
	seen := make(map[int64]bool, len(params))
	for _, p := range params {
		if seen[p.Label] {
			return ErrDuplicateParameter
		}
		seen[p.Label] = true
	}
	return nil
}

// EncodeHeaders implements spec.md section 4.9's headers_encode contract:
// the protected bucket is written byte-string-wrapped via
// OpenBstrWrap/CloseBstrWrap (its serialized length isn't known until the
// map is written), followed by the inline unprotected map. It returns the
// raw protected bytes for reuse in a Sig_structure/MAC_structure.
func EncodeHeaders(enc *qcbor.Encoder, h *Headers, specials map[int64]SpecialEncoder) ([]byte, error) {
	var critLabels []int64
	for _, p := range h.Params {
		if p.Critical {
			if !p.InProtected {
				return nil, ErrCritParameterInUnprotected
			}
			critLabels = append(critLabels, p.Label)
		}
	}

	if err := enc.OpenBstrWrap(); err != nil {
		return nil, err
	}
	contentStart := len(enc.Bytes())
	if err := encodeParamsToMap(enc, h.Params, true, critLabels, specials); err != nil {
		return nil, err
	}
	contentLen := len(enc.Bytes()) - contentStart
	if err := enc.CloseBstrWrap(); err != nil {
		return nil, err
	}
	buf := enc.Bytes()
	protectedBytes := append([]byte(nil), buf[len(buf)-contentLen:]...)

	if err := encodeParamsToMap(enc, h.Params, false, nil, specials); err != nil {
		return nil, err
	}
	return protectedBytes, nil
}

func encodeParamsToMap(enc *qcbor.Encoder, params []Parameter, inProtected bool, critLabels []int64, specials map[int64]SpecialEncoder) error {
	n := 0
	for _, p := range params {
		if p.InProtected == inProtected {
			n++
		}
	}
	if inProtected && len(critLabels) > 0 {
		n++
	}
	if err := enc.OpenMap(n); err != nil {
		return err
	}
	if inProtected && len(critLabels) > 0 {
		if err := enc.WriteInt64(HeaderLabelCritical); err != nil {
			return err
		}
		if err := enc.OpenArray(len(critLabels)); err != nil {
			return err
		}
		for _, l := range critLabels {
			if err := enc.WriteInt64(l); err != nil {
				return err
			}
		}
		if err := enc.CloseArray(); err != nil {
			return err
		}
	}
	for _, p := range params {
		if p.InProtected != inProtected {
			continue
		}
		if err := enc.WriteInt64(p.Label); err != nil {
			return err
		}
		switch p.Kind {
		case KindInt64:
			if err := enc.WriteInt64(p.Int64); err != nil {
				return err
			}
		case KindBytes:
			if err := enc.WriteByteString(p.Bytes); err != nil {
				return err
			}
		case KindText:
			if err := enc.WriteTextString(p.Text); err != nil {
				return err
			}
		case KindSpecial:
			se, ok := specials[p.Label]
			if !ok {
				return ErrParameterCBOR
			}
			if err := se(enc, p.Special); err != nil {
				return err
			}
		}
	}
	return enc.CloseMap()
}
