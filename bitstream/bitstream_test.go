package bitstream

import (
	"bytes"
	"testing"
)

func TestWriteReadRoundTripLSB(t *testing.T) {
	values := []struct {
		bits uint
		v    uint32
	}{
		{3, 0x5}, {5, 0x1b}, {1, 1}, {13, 0x1a2b}, {8, 0xff}, {7, 0x3d},
	}

	var buf bytes.Buffer
	bw := NewBitWriter(&buf, true)
	for _, tc := range values {
		if err := bw.WriteBits(tc.bits, tc.v); err != nil {
			t.Fatalf("WriteBits: %v", err)
		}
	}
	if err := bw.FlushBits(); err != nil {
		t.Fatalf("FlushBits: %v", err)
	}

	br := NewBitReader(bytes.NewReader(buf.Bytes()), true)
	for _, tc := range values {
		got, err := br.ReadBits(tc.bits)
		if err != nil {
			t.Fatalf("ReadBits(%d): %v", tc.bits, err)
		}
		want := tc.v & (uint32(1<<tc.bits) - 1)
		if got != want {
			t.Errorf("ReadBits(%d) = %#x, want %#x", tc.bits, got, want)
		}
	}
}

func TestWriteReadRoundTripMSB(t *testing.T) {
	values := []struct {
		bits uint
		v    uint32
	}{
		{3, 0x5}, {5, 0x1b}, {1, 1}, {13, 0x1a2b}, {8, 0xff}, {7, 0x3d},
	}

	var buf bytes.Buffer
	bw := NewBitWriter(&buf, false)
	for _, tc := range values {
		if err := bw.WriteBits(tc.bits, tc.v); err != nil {
			t.Fatalf("WriteBits: %v", err)
		}
	}
	if err := bw.FlushBits(); err != nil {
		t.Fatalf("FlushBits: %v", err)
	}

	br := NewBitReader(bytes.NewReader(buf.Bytes()), false)
	for _, tc := range values {
		got, err := br.ReadBits(tc.bits)
		if err != nil {
			t.Fatalf("ReadBits(%d): %v", tc.bits, err)
		}
		want := tc.v & (uint32(1<<tc.bits) - 1)
		if got != want {
			t.Errorf("ReadBits(%d) = %#x, want %#x", tc.bits, got, want)
		}
	}
}

func TestReadBitsReturnsErrorOnShortStream(t *testing.T) {
	br := NewBitReader(bytes.NewReader(nil), true)
	if _, err := br.ReadBits(4); err == nil {
		t.Fatal("expected an error reading bits from an empty stream")
	}
}

func TestConsumeBufBitsClearsPartialByte(t *testing.T) {
	var buf bytes.Buffer
	bw := NewBitWriter(&buf, true)
	if err := bw.WriteBits(3, 0x5); err != nil {
		t.Fatalf("WriteBits: %v", err)
	}
	if err := bw.FlushBits(); err != nil {
		t.Fatalf("FlushBits: %v", err)
	}

	br := NewBitReader(bytes.NewReader(buf.Bytes()), true)
	if _, err := br.ReadBits(2); err != nil {
		t.Fatalf("ReadBits: %v", err)
	}
	if br.BitCount() == 0 {
		t.Fatal("expected some bits still buffered")
	}
	if _, ok := br.ConsumeBufBits(); !ok {
		t.Fatal("expected ConsumeBufBits to report buffered bits")
	}
	if br.BitCount() != 0 {
		t.Fatalf("expected buffer cleared after consume, got %d bits", br.BitCount())
	}
}

func TestBitBufDirectionMismatchIsIndependent(t *testing.T) {
	var lsbBuf, msbBuf bytes.Buffer
	lw := NewBitWriter(&lsbBuf, true)
	mw := NewBitWriter(&msbBuf, false)
	if err := lw.WriteBits(4, 0xa); err != nil {
		t.Fatalf("WriteBits: %v", err)
	}
	if err := mw.WriteBits(4, 0xa); err != nil {
		t.Fatalf("WriteBits: %v", err)
	}
	if err := lw.FlushBits(); err != nil {
		t.Fatalf("FlushBits: %v", err)
	}
	if err := mw.FlushBits(); err != nil {
		t.Fatalf("FlushBits: %v", err)
	}
	if bytes.Equal(lsbBuf.Bytes(), msbBuf.Bytes()) {
		t.Fatal("expected LSB and MSB encodings of the same value to differ in byte layout")
	}
}
