package cbor_test

import (
	"testing"

	qcbor "github.com/qcbor-go/qcbor"
)

// Vectors drawn from RFC 8949 Appendix A.
func TestDecodeAppendixAScalars(t *testing.T) {
	cases := []struct {
		name  string
		input []byte
		check func(t *testing.T, it qcbor.Item)
	}{
		{"uint 0", []byte{0x00}, func(t *testing.T, it qcbor.Item) {
			if it.Type != qcbor.TypeInt64 || it.Int64 != 0 {
				t.Errorf("got %+v", it)
			}
		}},
		{"uint 10", []byte{0x0a}, func(t *testing.T, it qcbor.Item) {
			if it.Int64 != 10 {
				t.Errorf("got %+v", it)
			}
		}},
		{"uint 25 (1 byte arg)", []byte{0x18, 0x19}, func(t *testing.T, it qcbor.Item) {
			if it.Int64 != 25 {
				t.Errorf("got %+v", it)
			}
		}},
		{"uint 1000 (2 byte arg)", []byte{0x19, 0x03, 0xe8}, func(t *testing.T, it qcbor.Item) {
			if it.Int64 != 1000 {
				t.Errorf("got %+v", it)
			}
		}},
		{"uint 1000000 (4 byte arg)", []byte{0x1a, 0x00, 0x0f, 0x42, 0x40}, func(t *testing.T, it qcbor.Item) {
			if it.Int64 != 1000000 {
				t.Errorf("got %+v", it)
			}
		}},
		{"negative -1", []byte{0x20}, func(t *testing.T, it qcbor.Item) {
			if it.Type != qcbor.TypeInt64 || it.Int64 != -1 {
				t.Errorf("got %+v", it)
			}
		}},
		{"negative -500", []byte{0x39, 0x01, 0xf3}, func(t *testing.T, it qcbor.Item) {
			if it.Int64 != -500 {
				t.Errorf("got %+v", it)
			}
		}},
		{"bool false", []byte{0xf4}, func(t *testing.T, it qcbor.Item) {
			if it.Type != qcbor.TypeFalse {
				t.Errorf("got %+v", it)
			}
		}},
		{"bool true", []byte{0xf5}, func(t *testing.T, it qcbor.Item) {
			if it.Type != qcbor.TypeTrue {
				t.Errorf("got %+v", it)
			}
		}},
		{"null", []byte{0xf6}, func(t *testing.T, it qcbor.Item) {
			if it.Type != qcbor.TypeNull {
				t.Errorf("got %+v", it)
			}
		}},
		{"byte string h'01020304'", []byte{0x44, 0x01, 0x02, 0x03, 0x04}, func(t *testing.T, it qcbor.Item) {
			if it.Type != qcbor.TypeByteString || len(it.Bytes) != 4 {
				t.Errorf("got %+v", it)
			}
		}},
		{`text "IETF"`, []byte{0x64, 0x49, 0x45, 0x54, 0x46}, func(t *testing.T, it qcbor.Item) {
			if it.Type != qcbor.TypeTextString || it.Text != "IETF" {
				t.Errorf("got %+v", it)
			}
		}},
		{"double 1.1", []byte{0xfb, 0x3f, 0xf1, 0x99, 0x99, 0x99, 0x99, 0x99, 0x9a}, func(t *testing.T, it qcbor.Item) {
			if it.Type != qcbor.TypeDouble || it.Float64 != 1.1 {
				t.Errorf("got %+v", it)
			}
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dec, err := qcbor.NewDecoder(tc.input)
			if err != nil {
				t.Fatalf("NewDecoder: %v", err)
			}
			it, err := dec.Next()
			if err != nil {
				t.Fatalf("Next: %v", err)
			}
			tc.check(t, it)
			if !dec.Finished() {
				t.Errorf("expected decoder to be finished")
			}
		})
	}
}

func TestDecodeArrayAndMap(t *testing.T) {
	// [1, 2, 3]
	dec, err := qcbor.NewDecoder([]byte{0x83, 0x01, 0x02, 0x03})
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	count, err := dec.EnterArray()
	if err != nil {
		t.Fatalf("EnterArray: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected count 3, got %d", count)
	}
	for i := 1; i <= 3; i++ {
		it, err := dec.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if it.Int64 != int64(i) {
			t.Errorf("element %d: got %v", i, it.Int64)
		}
	}
	if err := dec.ExitArray(); err != nil {
		t.Fatalf("ExitArray: %v", err)
	}
	if !dec.Finished() {
		t.Error("expected finished")
	}

	// {"a": 1, "b": 2}
	dec, err = qcbor.NewDecoder([]byte{0xa2, 0x61, 0x61, 0x01, 0x61, 0x62, 0x02})
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	mc, err := dec.EnterMap()
	if err != nil {
		t.Fatalf("EnterMap: %v", err)
	}
	if mc != 2 {
		t.Fatalf("expected 2 pairs, got %d", mc)
	}
	if err := dec.ExitMap(); err != nil {
		t.Fatalf("ExitMap: %v", err)
	}
}

func TestDecodeIndefiniteLengthRequiresConfigOrAllocator(t *testing.T) {
	// Indefinite-length array open: 0x9f ... 0xff ; here just the open byte
	// followed immediately by a break.
	dec, err := qcbor.NewDecoder([]byte{0x9f, 0xff})
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	count, err := dec.EnterArray()
	if err != nil {
		t.Fatalf("EnterArray: %v", err)
	}
	if count != -1 {
		t.Errorf("expected indefinite count -1, got %d", count)
	}
	if err := dec.ExitArray(); err != nil {
		t.Fatalf("ExitArray: %v", err)
	}

	dec, err = qcbor.NewDecoder([]byte{0x9f, 0xff}, qcbor.WithConfig(qcbor.NoIndefLength))
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	if _, err := dec.EnterArray(); err != qcbor.ErrIndefiniteLengthNotAllowed {
		t.Errorf("expected ErrIndefiniteLengthNotAllowed, got %v", err)
	}

	// Indefinite-length text string without an allocator configured.
	dec, err = qcbor.NewDecoder([]byte{0x7f, 0x61, 0x61, 0xff})
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	if _, err := dec.Next(); err != qcbor.ErrNoStringAllocator {
		t.Errorf("expected ErrNoStringAllocator, got %v", err)
	}
}

func TestDecodeTruncatedInputIsUnexpectedEndOfData(t *testing.T) {
	dec, err := qcbor.NewDecoder([]byte{0x1a, 0x00, 0x0f}) // uint32 header but only 2 bytes
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	if _, err := dec.Next(); err != qcbor.ErrUnexpectedEndOfData {
		t.Errorf("expected ErrUnexpectedEndOfData, got %v", err)
	}
}

func TestDecodeStickyErrorAndRewind(t *testing.T) {
	dec, err := qcbor.NewDecoder([]byte{0x01, 0x02})
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	mark := dec.Mark()
	if _, err := dec.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}

	// Force a sticky error by entering a container when the next item is
	// a plain integer.
	if _, err := dec.EnterArray(); err == nil {
		t.Fatal("expected type mismatch error")
	}
	if _, err := dec.Next(); err == nil {
		t.Error("expected the sticky error to persist")
	}

	if err := dec.Rewind(mark); err != nil {
		t.Fatalf("Rewind: %v", err)
	}
	it, err := dec.Next()
	if err != nil {
		t.Fatalf("Next after rewind: %v", err)
	}
	if it.Int64 != 1 {
		t.Errorf("expected first item after rewind, got %+v", it)
	}
}

func TestDecodeOnlyPreferredNumbersRejectsOverlongEncoding(t *testing.T) {
	// 0 encoded with a wasteful 1-byte argument (0x18 0x00) instead of
	// the immediate form (0x00).
	dec, err := qcbor.NewDecoder([]byte{0x18, 0x00}, qcbor.WithConfig(qcbor.OnlyPreferredNumbers))
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	if _, err := dec.Next(); err != qcbor.ErrNotPreferred {
		t.Errorf("expected ErrNotPreferred, got %v", err)
	}
}

func TestDecodeOnlySortedMapsAcceptsSortedLabels(t *testing.T) {
	// {1: 2, 3: 4}, already in canonical key order.
	data := []byte{0xa2, 0x01, 0x02, 0x03, 0x04}
	dec, err := qcbor.NewDecoder(data, qcbor.WithConfig(qcbor.OnlySortedMaps))
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	if _, err := dec.EnterMap(); err != nil {
		t.Fatalf("EnterMap: %v", err)
	}
	if err := dec.ExitMap(); err != nil {
		t.Fatalf("ExitMap: %v", err)
	}
}

func TestDecodeOnlySortedMapsRejectsUnsortedLabels(t *testing.T) {
	// {3: 4, 1: 2}, the pairs swapped out of canonical order.
	data := []byte{0xa2, 0x03, 0x04, 0x01, 0x02}
	dec, err := qcbor.NewDecoder(data, qcbor.WithConfig(qcbor.OnlySortedMaps))
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	if _, err := dec.EnterMap(); err != nil {
		t.Fatalf("EnterMap: %v", err)
	}
	if _, err := dec.Next(); err != nil { // first key, 3, always accepted
		t.Fatalf("Next (first key): %v", err)
	}
	if _, err := dec.Next(); err != nil { // first value
		t.Fatalf("Next (first value): %v", err)
	}
	if _, err := dec.Next(); err != qcbor.ErrUnsorted {
		t.Errorf("expected ErrUnsorted, got %v", err)
	}
}

func TestDecodeOnlySortedMapsRejectsDuplicateLabels(t *testing.T) {
	// {1: 2, 1: 4}, a repeated label.
	data := []byte{0xa2, 0x01, 0x02, 0x01, 0x04}
	dec, err := qcbor.NewDecoder(data, qcbor.WithConfig(qcbor.OnlySortedMaps))
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	if _, err := dec.EnterMap(); err != nil {
		t.Fatalf("EnterMap: %v", err)
	}
	if _, err := dec.Next(); err != nil { // first key
		t.Fatalf("Next (first key): %v", err)
	}
	if _, err := dec.Next(); err != nil { // first value
		t.Fatalf("Next (first value): %v", err)
	}
	if _, err := dec.Next(); err != qcbor.ErrDuplicateLabel {
		t.Errorf("expected ErrDuplicateLabel, got %v", err)
	}
}

func TestDecodeOnlySortedMapsIgnoredWithoutConfig(t *testing.T) {
	// The same unsorted map decodes fine without OnlySortedMaps set.
	data := []byte{0xa2, 0x03, 0x04, 0x01, 0x02}
	dec, err := qcbor.NewDecoder(data)
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	if _, err := dec.EnterMap(); err != nil {
		t.Fatalf("EnterMap: %v", err)
	}
	if err := dec.ExitMap(); err != nil {
		t.Fatalf("ExitMap: %v", err)
	}
}
