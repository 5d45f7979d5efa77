package cbor_test

import (
	"bytes"
	"math/big"
	"testing"
	"time"

	qcbor "github.com/qcbor-go/qcbor"
)

func TestEncodeAppendixAScalars(t *testing.T) {
	cases := []struct {
		name string
		want []byte
		fn   func(e *qcbor.Encoder) error
	}{
		{"uint 0", []byte{0x00}, func(e *qcbor.Encoder) error { return e.WriteUint64(0) }},
		{"uint 25", []byte{0x18, 0x19}, func(e *qcbor.Encoder) error { return e.WriteUint64(25) }},
		{"uint 1000000", []byte{0x1a, 0x00, 0x0f, 0x42, 0x40}, func(e *qcbor.Encoder) error { return e.WriteUint64(1000000) }},
		{"int -1", []byte{0x20}, func(e *qcbor.Encoder) error { return e.WriteInt64(-1) }},
		{"int -500", []byte{0x39, 0x01, 0xf3}, func(e *qcbor.Encoder) error { return e.WriteInt64(-500) }},
		{"bool true", []byte{0xf5}, func(e *qcbor.Encoder) error { return e.WriteBool(true) }},
		{"null", []byte{0xf6}, func(e *qcbor.Encoder) error { return e.WriteNull() }},
		{`text "IETF"`, []byte{0x64, 0x49, 0x45, 0x54, 0x46}, func(e *qcbor.Encoder) error { return e.WriteTextString("IETF") }},
		{"bstr h'01020304'", []byte{0x44, 0x01, 0x02, 0x03, 0x04}, func(e *qcbor.Encoder) error {
			return e.WriteByteString([]byte{0x01, 0x02, 0x03, 0x04})
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := qcbor.NewEncoder()
			if err := tc.fn(e); err != nil {
				t.Fatalf("write: %v", err)
			}
			got, err := e.Finish()
			if err != nil {
				t.Fatalf("Finish: %v", err)
			}
			if !bytes.Equal(got, tc.want) {
				t.Errorf("got % x, want % x", got, tc.want)
			}
		})
	}
}

func TestEncodeFloatChoosesShortestForm(t *testing.T) {
	e := qcbor.NewEncoder()
	if err := e.WriteFloat(1.5); err != nil {
		t.Fatalf("WriteFloat: %v", err)
	}
	got, err := e.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	// 1.5 round-trips exactly through half precision: 0xf9 3e 00
	want := []byte{0xf9, 0x3e, 0x00}
	if !bytes.Equal(got, want) {
		t.Errorf("got % x, want % x", got, want)
	}
}

func TestEncodeArrayMapRoundTripThroughDecoder(t *testing.T) {
	e := qcbor.NewEncoder()
	if err := e.OpenArray(3); err != nil {
		t.Fatalf("OpenArray: %v", err)
	}
	for i := int64(1); i <= 3; i++ {
		if err := e.WriteInt64(i); err != nil {
			t.Fatalf("WriteInt64: %v", err)
		}
	}
	if err := e.CloseArray(); err != nil {
		t.Fatalf("CloseArray: %v", err)
	}
	data, err := e.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}

	dec, err := qcbor.NewDecoder(data)
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	count, err := dec.EnterArray()
	if err != nil {
		t.Fatalf("EnterArray: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3, got %d", count)
	}
	for i := int64(1); i <= 3; i++ {
		it, err := dec.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if it.Int64 != i {
			t.Errorf("element: got %d want %d", it.Int64, i)
		}
	}
	if err := dec.ExitArray(); err != nil {
		t.Fatalf("ExitArray: %v", err)
	}
}

func TestEncodeBstrWrapPatchesHeaderToShortestForm(t *testing.T) {
	e := qcbor.NewEncoder()
	if err := e.OpenBstrWrap(); err != nil {
		t.Fatalf("OpenBstrWrap: %v", err)
	}
	if err := e.WriteTextString("IETF"); err != nil {
		t.Fatalf("WriteTextString: %v", err)
	}
	if err := e.CloseBstrWrap(); err != nil {
		t.Fatalf("CloseBstrWrap: %v", err)
	}
	data, err := e.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	// The wrapped content is the 5-byte encoding of "IETF"; the outer
	// byte string header must shrink to the 1-byte immediate form (0x45),
	// not the 9-byte placeholder OpenBstrWrap reserves.
	want := []byte{0x45, 0x64, 0x49, 0x45, 0x54, 0x46}
	if !bytes.Equal(data, want) {
		t.Errorf("got % x, want % x", data, want)
	}

	dec, err := qcbor.NewDecoder(data)
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	if err := dec.EnterBstrWrapped(); err != nil {
		t.Fatalf("EnterBstrWrapped: %v", err)
	}
	it, err := dec.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if it.Text != "IETF" {
		t.Errorf("got %q", it.Text)
	}
	if err := dec.ExitBstrWrapped(); err != nil {
		t.Fatalf("ExitBstrWrapped: %v", err)
	}
}

func TestEncodeUnclosedContainerFailsFinish(t *testing.T) {
	e := qcbor.NewEncoder()
	if err := e.OpenArray(1); err != nil {
		t.Fatalf("OpenArray: %v", err)
	}
	if err := e.WriteInt64(1); err != nil {
		t.Fatalf("WriteInt64: %v", err)
	}
	if _, err := e.Finish(); err != qcbor.ErrArrayOrMapStillOpen {
		t.Errorf("expected ErrArrayOrMapStillOpen, got %v", err)
	}
}

func TestEncodeBigIntUsesBignumTagOnlyWhenNeeded(t *testing.T) {
	e := qcbor.NewEncoder()
	if err := e.WriteBigInt(big.NewInt(42)); err != nil {
		t.Fatalf("WriteBigInt: %v", err)
	}
	data, err := e.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if !bytes.Equal(data, []byte{0x18, 0x2a}) {
		t.Errorf("expected plain integer encoding, got % x", data)
	}

	huge := new(big.Int)
	huge.SetString("18446744073709551616", 10) // 2^64, doesn't fit uint64
	e = qcbor.NewEncoder()
	if err := e.WriteBigInt(huge); err != nil {
		t.Fatalf("WriteBigInt: %v", err)
	}
	data, err = e.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	dec, err := qcbor.NewDecoder(data)
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	it, err := dec.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if it.Type != qcbor.TypePositiveBignum {
		t.Errorf("expected TypePositiveBignum, got %v", it.Type)
	}
}

func TestEncodeDateTimeRoundTrip(t *testing.T) {
	e := qcbor.NewEncoder()
	ts := time.Date(2013, 3, 21, 20, 4, 0, 0, time.UTC)
	if err := e.WriteDateTimeString(ts); err != nil {
		t.Fatalf("WriteDateTimeString: %v", err)
	}
	data, err := e.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	dec, err := qcbor.NewDecoder(data)
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	it, err := dec.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if it.Type != qcbor.TypeDateString || !it.Time.Equal(ts) {
		t.Errorf("got %+v", it)
	}
}
