package cose_test

import (
	"testing"

	qcbor "github.com/qcbor-go/qcbor"
	"github.com/qcbor-go/qcbor/cose"
)

func encodeDecodeHeaders(t *testing.T, h *cose.Headers, specialsEnc map[int64]cose.SpecialEncoder, specialsDec map[int64]cose.SpecialDecoder) (*cose.Headers, []byte) {
	t.Helper()
	enc := qcbor.NewEncoder()
	if err := enc.OpenArray(2); err != nil {
		t.Fatalf("open array: %v", err)
	}
	if _, err := cose.EncodeHeaders(enc, h, specialsEnc); err != nil {
		t.Fatalf("encode headers: %v", err)
	}
	if err := enc.CloseArray(); err != nil {
		t.Fatalf("close array: %v", err)
	}
	data, err := enc.Finish()
	if err != nil {
		t.Fatalf("finish: %v", err)
	}

	dec, err := qcbor.NewDecoder(data)
	if err != nil {
		t.Fatalf("new decoder: %v", err)
	}
	if _, err := dec.EnterArray(); err != nil {
		t.Fatalf("enter array: %v", err)
	}
	decoded, rawProtected, err := cose.DecodeHeaders(dec, specialsDec)
	if err != nil {
		t.Fatalf("decode headers: %v", err)
	}
	return decoded, rawProtected
}

func TestHeadersRoundTrip(t *testing.T) {
	t.Run("scalar parameters survive round trip", func(t *testing.T) {
		h := &cose.Headers{}
		h.Add(cose.Int64Param(cose.HeaderLabelAlgorithm, cose.AlgorithmES256, true, false))
		h.Add(cose.BytesParam(cose.HeaderLabelKeyID, []byte("kid-1"), false, false))
		h.Add(cose.TextParam(cose.HeaderLabelContentType, "application/json", false, false))

		decoded, _ := encodeDecodeHeaders(t, h, nil, nil)

		alg, ok := decoded.Find(cose.HeaderLabelAlgorithm)
		if !ok || alg.Int64 != cose.AlgorithmES256 || !alg.InProtected {
			t.Errorf("alg parameter not round-tripped correctly: %+v", alg)
		}
		kid, ok := decoded.Find(cose.HeaderLabelKeyID)
		if !ok || string(kid.Bytes) != "kid-1" || kid.InProtected {
			t.Errorf("kid parameter not round-tripped correctly: %+v", kid)
		}
		ct, ok := decoded.Find(cose.HeaderLabelContentType)
		if !ok || ct.Text != "application/json" {
			t.Errorf("content-type parameter not round-tripped correctly: %+v", ct)
		}
	})

	t.Run("critical parameters are recorded and emitted as crit", func(t *testing.T) {
		h := &cose.Headers{}
		h.Add(cose.Int64Param(cose.HeaderLabelAlgorithm, cose.AlgorithmES256, true, false))
		h.Add(cose.TextParam(260, "s3://bucket/key", true, true))

		decoded, _ := encodeDecodeHeaders(t, h, nil, nil)

		loc, ok := decoded.Find(260)
		if !ok || !loc.Critical {
			t.Errorf("expected label 260 to round-trip as critical: %+v", loc)
		}
	})

	t.Run("critical parameter in unprotected bucket is rejected", func(t *testing.T) {
		h := &cose.Headers{}
		h.Add(cose.Int64Param(cose.HeaderLabelAlgorithm, cose.AlgorithmES256, true, false))
		h.Add(cose.TextParam(260, "oops", false, true))

		enc := qcbor.NewEncoder()
		enc.OpenArray(2)
		if _, err := cose.EncodeHeaders(enc, h, nil); err != cose.ErrCritParameterInUnprotected {
			t.Errorf("expected ErrCritParameterInUnprotected, got %v", err)
		}
	})

	t.Run("duplicate label across buckets is rejected on decode", func(t *testing.T) {
		enc := qcbor.NewEncoder()
		enc.OpenArray(2)
		enc.OpenBstrWrap()
		enc.OpenMap(1)
		enc.WriteInt64(cose.HeaderLabelKeyID)
		enc.WriteByteString([]byte("a"))
		enc.CloseMap()
		enc.CloseBstrWrap()
		enc.OpenMap(1)
		enc.WriteInt64(cose.HeaderLabelKeyID)
		enc.WriteByteString([]byte("b"))
		enc.CloseMap()
		enc.CloseArray()
		data, err := enc.Finish()
		if err != nil {
			t.Fatalf("finish: %v", err)
		}

		dec, err := qcbor.NewDecoder(data)
		if err != nil {
			t.Fatalf("new decoder: %v", err)
		}
		dec.EnterArray()
		if _, _, err := cose.DecodeHeaders(dec, nil); err != cose.ErrDuplicateParameter {
			t.Errorf("expected ErrDuplicateParameter, got %v", err)
		}
	})

	t.Run("empty crit array is rejected", func(t *testing.T) {
		enc := qcbor.NewEncoder()
		enc.OpenArray(2)
		enc.OpenBstrWrap()
		enc.OpenMap(1)
		enc.WriteInt64(cose.HeaderLabelCritical)
		enc.OpenArray(0)
		enc.CloseArray()
		enc.CloseMap()
		enc.CloseBstrWrap()
		enc.OpenMap(0)
		enc.CloseMap()
		enc.CloseArray()
		data, err := enc.Finish()
		if err != nil {
			t.Fatalf("finish: %v", err)
		}

		dec, err := qcbor.NewDecoder(data)
		if err != nil {
			t.Fatalf("new decoder: %v", err)
		}
		dec.EnterArray()
		if _, _, err := cose.DecodeHeaders(dec, nil); err != cose.ErrParameterCBOR {
			t.Errorf("expected ErrParameterCBOR for empty crit array, got %v", err)
		}
	})

	t.Run("special parameter dispatches through registered callback", func(t *testing.T) {
		h := &cose.Headers{}
		h.Add(cose.Int64Param(cose.HeaderLabelAlgorithm, cose.AlgorithmES256, true, false))
		h.Add(cose.SpecialParam(cose.HeaderLabelEphemeralKey, cose.EphemeralKey{
			Kty: cose.KeyTypeEC2,
			Crv: 1,
			X:   []byte{1, 2, 3},
		}, false, false))

		specialsEnc := map[int64]cose.SpecialEncoder{cose.HeaderLabelEphemeralKey: cose.EphemeralKeyEncoder}
		specialsDec := map[int64]cose.SpecialDecoder{cose.HeaderLabelEphemeralKey: cose.EphemeralKeyDecoder(cose.KeyTypeEC2)}

		decoded, _ := encodeDecodeHeaders(t, h, specialsEnc, specialsDec)
		epk, ok := decoded.Find(cose.HeaderLabelEphemeralKey)
		if !ok {
			t.Fatal("expected epk parameter to round-trip")
		}
		ek, ok := epk.Special.(cose.EphemeralKey)
		if !ok || ek.Kty != cose.KeyTypeEC2 {
			t.Errorf("unexpected decoded epk: %+v", epk.Special)
		}
	})

	t.Run("critical label absent from the message is rejected", func(t *testing.T) {
		enc := qcbor.NewEncoder()
		enc.OpenArray(2)
		enc.OpenBstrWrap()
		enc.OpenMap(2)
		enc.WriteInt64(cose.HeaderLabelCritical)
		enc.OpenArray(1)
		enc.WriteInt64(99)
		enc.CloseArray()
		enc.WriteInt64(cose.HeaderLabelAlgorithm)
		enc.WriteInt64(cose.AlgorithmES256)
		enc.CloseMap()
		enc.CloseBstrWrap()
		enc.OpenMap(0)
		enc.CloseMap()
		enc.CloseArray()
		data, err := enc.Finish()
		if err != nil {
			t.Fatalf("finish: %v", err)
		}

		dec, err := qcbor.NewDecoder(data)
		if err != nil {
			t.Fatalf("new decoder: %v", err)
		}
		dec.EnterArray()
		if _, _, err := cose.DecodeHeaders(dec, nil); err != cose.ErrParameterNotProtected {
			t.Errorf("expected ErrParameterNotProtected, got %v", err)
		}
	})

	t.Run("critical label present only in the unprotected bucket is rejected", func(t *testing.T) {
		enc := qcbor.NewEncoder()
		enc.OpenArray(2)
		enc.OpenBstrWrap()
		enc.OpenMap(2)
		enc.WriteInt64(cose.HeaderLabelCritical)
		enc.OpenArray(1)
		enc.WriteInt64(99)
		enc.CloseArray()
		enc.WriteInt64(cose.HeaderLabelAlgorithm)
		enc.WriteInt64(cose.AlgorithmES256)
		enc.CloseMap()
		enc.CloseBstrWrap()
		enc.OpenMap(1)
		enc.WriteInt64(99)
		enc.WriteInt64(7)
		enc.CloseMap()
		enc.CloseArray()
		data, err := enc.Finish()
		if err != nil {
			t.Fatalf("finish: %v", err)
		}

		dec, err := qcbor.NewDecoder(data)
		if err != nil {
			t.Fatalf("new decoder: %v", err)
		}
		dec.EnterArray()
		if _, _, err := cose.DecodeHeaders(dec, nil); err != cose.ErrUnknownCriticalParameter {
			t.Errorf("expected ErrUnknownCriticalParameter, got %v", err)
		}
	})

	t.Run("declined critical special parameter fails with UnknownCriticalParameter", func(t *testing.T) {
		h := &cose.Headers{}
		h.Add(cose.Int64Param(cose.HeaderLabelAlgorithm, cose.AlgorithmES256, true, false))
		h.Add(cose.SpecialParam(cose.HeaderLabelEphemeralKey, cose.EphemeralKey{Kty: cose.KeyTypeEC2, Crv: 1}, true, true))

		specialsEnc := map[int64]cose.SpecialEncoder{cose.HeaderLabelEphemeralKey: cose.EphemeralKeyEncoder}

		enc := qcbor.NewEncoder()
		enc.OpenArray(2)
		if _, err := cose.EncodeHeaders(enc, h, specialsEnc); err != nil {
			t.Fatalf("encode: %v", err)
		}
		enc.CloseArray()
		data, err := enc.Finish()
		if err != nil {
			t.Fatalf("finish: %v", err)
		}

		dec, err := qcbor.NewDecoder(data)
		if err != nil {
			t.Fatalf("new decoder: %v", err)
		}
		dec.EnterArray()
		// No special decoder registered, so the map value is declined.
		if _, _, err := cose.DecodeHeaders(dec, nil); err != cose.ErrUnknownCriticalParameter {
			t.Errorf("expected ErrUnknownCriticalParameter, got %v", err)
		}
	})
}
